package vault

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const metaABIStringJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "asset", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "totalAssets", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "totalSupply", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

const metaABIBytes32JSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

var (
	metaABIString      abi.ABI
	metaABIStringOnce  sync.Once
	metaABIStringErr   error
	metaABIBytes32     abi.ABI
	metaABIBytes32Once sync.Once
	metaABIBytes32Err  error
)

func metaABIStringInstance() (abi.ABI, error) {
	metaABIStringOnce.Do(func() {
		metaABIString, metaABIStringErr = abi.JSON(strings.NewReader(metaABIStringJSON))
	})
	return metaABIString, metaABIStringErr
}

func metaABIBytes32Instance() (abi.ABI, error) {
	metaABIBytes32Once.Do(func() {
		metaABIBytes32, metaABIBytes32Err = abi.JSON(strings.NewReader(metaABIBytes32JSON))
	})
	return metaABIBytes32, metaABIBytes32Err
}

// ContractCaller is the read-only call surface needed for metadata.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Metadata describes the vault share token. Name, symbol and the
// ERC-4626 fields are best effort; Decimals is required.
type Metadata struct {
	Address     string `json:"address"`
	Name        string `json:"name,omitempty"`
	Symbol      string `json:"symbol,omitempty"`
	Decimals    uint8  `json:"decimals"`
	Asset       string `json:"asset,omitempty"`
	TotalAssets string `json:"total_assets,omitempty"`
	TotalSupply string `json:"total_supply,omitempty"`
}

// FetchMetadata loads vault token metadata via contract calls. Vaults
// that are not ERC-4626 simply lack asset and totalAssets.
func FetchMetadata(ctx context.Context, caller ContractCaller, vaultAddr common.Address, logger *zap.Logger) (Metadata, error) {
	meta := Metadata{Address: vaultAddr.Hex()}
	if caller == nil {
		return meta, fmt.Errorf("contract caller is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	stringABI, err := metaABIStringInstance()
	if err != nil {
		return meta, fmt.Errorf("parse metadata abi: %w", err)
	}
	bytes32ABI, err := metaABIBytes32Instance()
	if err != nil {
		return meta, fmt.Errorf("parse bytes32 metadata abi: %w", err)
	}

	call := func(method string, parsed abi.ABI) ([]interface{}, error) {
		data, err := parsed.Pack(method)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", method, err)
		}
		msg := ethereum.CallMsg{To: &vaultAddr, Data: data}
		resp, err := caller.CallContract(ctx, msg, nil)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", method, err)
		}
		values, err := parsed.Unpack(method, resp)
		if err != nil {
			return nil, fmt.Errorf("unpack %s: %w", method, err)
		}
		return values, nil
	}

	values, err := call("decimals", stringABI)
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if values, err := call("symbol", stringABI); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := call("symbol", bytes32ABI); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.Symbol = symbol
		}
	} else {
		logger.Debug("symbol call failed", zap.String("vault", vaultAddr.Hex()), zap.Error(err))
	}

	if values, err := call("name", stringABI); err == nil {
		if name, ok := values[0].(string); ok {
			meta.Name = name
		}
	} else if values, err := call("name", bytes32ABI); err == nil {
		if name, ok := bytes32ToString(values[0]); ok {
			meta.Name = name
		}
	} else {
		logger.Debug("name call failed", zap.String("vault", vaultAddr.Hex()), zap.Error(err))
	}

	if values, err := call("asset", stringABI); err == nil {
		if asset, err := asAddress(values[0]); err == nil {
			meta.Asset = asset.Hex()
		}
	} else {
		logger.Debug("asset call failed", zap.String("vault", vaultAddr.Hex()), zap.Error(err))
	}

	if values, err := call("totalAssets", stringABI); err == nil {
		if total, err := asBigInt(values[0]); err == nil {
			meta.TotalAssets = total.String()
		}
	} else {
		logger.Debug("totalAssets call failed", zap.String("vault", vaultAddr.Hex()), zap.Error(err))
	}

	if values, err := call("totalSupply", stringABI); err == nil {
		if total, err := asBigInt(values[0]); err == nil {
			meta.TotalSupply = total.String()
		}
	} else {
		logger.Debug("totalSupply call failed", zap.String("vault", vaultAddr.Hex()), zap.Error(err))
	}

	return meta, nil
}

// FormatUnits renders a raw token amount as a decimal string using the
// token's decimals.
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat := new(big.Rat).SetFrac(abs, denom)
	text := rat.FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		if v > 255 {
			return 0, fmt.Errorf("uint8 overflow: %d", v)
		}
		return uint8(v), nil
	case uint32:
		if v > 255 {
			return 0, fmt.Errorf("uint8 overflow: %d", v)
		}
		return uint8(v), nil
	case uint64:
		if v > 255 {
			return 0, fmt.Errorf("uint8 overflow: %d", v)
		}
		return uint8(v), nil
	case *big.Int:
		if v.Sign() < 0 || v.Cmp(big.NewInt(255)) > 0 {
			return 0, fmt.Errorf("uint8 overflow: %s", v.String())
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
