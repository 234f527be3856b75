package vault

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// fakeCaller answers contract calls from a calldata->returndata table.
type fakeCaller struct {
	responses map[string][]byte
}

func (f *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	resp, ok := f.responses[common.Bytes2Hex(msg.Data)]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return resp, nil
}

func registerCall(t *testing.T, caller *fakeCaller, method string, outputs ...any) {
	t.Helper()
	parsed, err := metaABIStringInstance()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	calldata, err := parsed.Pack(method)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	returndata, err := parsed.Methods[method].Outputs.Pack(outputs...)
	if err != nil {
		t.Fatalf("pack outputs %s: %v", method, err)
	}
	caller.responses[common.Bytes2Hex(calldata)] = returndata
}

func TestFetchMetadata(t *testing.T) {
	vaultAddr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	asset := common.HexToAddress("0x2222222222222222222222222222222222222222")

	caller := &fakeCaller{responses: make(map[string][]byte)}
	registerCall(t, caller, "decimals", uint8(18))
	registerCall(t, caller, "symbol", "vTEST")
	registerCall(t, caller, "name", "Test Vault")
	registerCall(t, caller, "asset", asset)
	registerCall(t, caller, "totalAssets", big.NewInt(5_000_000))
	registerCall(t, caller, "totalSupply", big.NewInt(4_900_000))

	meta, err := FetchMetadata(context.Background(), caller, vaultAddr, nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if meta.Decimals != 18 || meta.Symbol != "vTEST" || meta.Name != "Test Vault" {
		t.Fatalf("token fields mismatch: %+v", meta)
	}
	if meta.Asset != asset.Hex() {
		t.Fatalf("asset mismatch: %+v", meta)
	}
	if meta.TotalAssets != "5000000" || meta.TotalSupply != "4900000" {
		t.Fatalf("totals mismatch: %+v", meta)
	}
}

func TestFetchMetadataNonERC4626(t *testing.T) {
	vaultAddr := common.HexToAddress("0x1111111111111111111111111111111111111111")

	caller := &fakeCaller{responses: make(map[string][]byte)}
	registerCall(t, caller, "decimals", uint8(8))

	meta, err := FetchMetadata(context.Background(), caller, vaultAddr, nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if meta.Decimals != 8 {
		t.Fatalf("decimals mismatch: %+v", meta)
	}
	if meta.Asset != "" || meta.TotalAssets != "" {
		t.Fatalf("optional fields should stay empty: %+v", meta)
	}
}

func TestAsUint8RejectsOverflow(t *testing.T) {
	valid := []any{uint8(18), uint16(18), uint32(255), uint64(0), big.NewInt(8)}
	for _, v := range valid {
		got, err := asUint8(v)
		if err != nil {
			t.Fatalf("asUint8(%v): %v", v, err)
		}
		if got > 255 {
			t.Fatalf("asUint8(%v) = %d", v, got)
		}
	}

	invalid := []any{uint16(300), uint32(1 << 16), uint64(256), big.NewInt(300), big.NewInt(-1), "18"}
	for _, v := range invalid {
		if _, err := asUint8(v); err == nil {
			t.Fatalf("asUint8(%v) should fail", v)
		}
	}
}

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		value    int64
		decimals uint8
		want     string
	}{
		{0, 18, "0.000000000000000000"},
		{1_500_000, 6, "1.500000"},
		{-2_500_000, 6, "-2.500000"},
		{42, 0, "42"},
	}
	for _, tc := range cases {
		got := FormatUnits(big.NewInt(tc.value), tc.decimals)
		if got != tc.want {
			t.Fatalf("FormatUnits(%d, %d) = %s, want %s", tc.value, tc.decimals, got, tc.want)
		}
	}
	if FormatUnits(nil, 18) != "0" {
		t.Fatalf("nil value should render as 0")
	}
}
