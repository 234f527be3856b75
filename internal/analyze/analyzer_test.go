package analyze

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"vaultScope/internal/chain"
	"vaultScope/internal/scan"
	"vaultScope/internal/vault"
)

var (
	vaultAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	alice     = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob       = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

// fakeProvider serves packed logs keyed by block number and enforces an
// optional provider span cap, mirroring capped public RPC endpoints.
type fakeProvider struct {
	head    uint64
	spanCap uint64
	logs    map[uint64][]types.Log

	mu sync.Mutex
}

func (f *fakeProvider) CurrentBlockHeight(ctx context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeProvider) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	return number * 10, nil
}

func (f *fakeProvider) QueryLogs(ctx context.Context, address common.Address, from, to uint64, topic0 []common.Hash) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.spanCap > 0 && to-from+1 > f.spanCap {
		return nil, &chain.RangeTooLargeError{From: from, To: to, Err: errors.New("query returned more than cap")}
	}

	var out []types.Log
	for block, logs := range f.logs {
		if block >= from && block <= to {
			out = append(out, logs...)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockNumber != out[j].BlockNumber {
			return out[i].BlockNumber < out[j].BlockNumber
		}
		return out[i].Index < out[j].Index
	})
	return out, nil
}

type fakeBlockSource struct {
	blocks []uint64
	err    error
}

func (f *fakeBlockSource) FetchEventBlocks(ctx context.Context, vault string) ([]uint64, error) {
	return f.blocks, f.err
}

func packedLog(t *testing.T, event string, block uint64, index uint, topics []common.Hash, args ...any) types.Log {
	t.Helper()
	vaultABI, err := vault.VaultABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	data, err := vaultABI.Events[event].Inputs.NonIndexed().Pack(args...)
	if err != nil {
		t.Fatalf("pack %s: %v", event, err)
	}
	return types.Log{
		Address:     vaultAddr,
		BlockNumber: block,
		Index:       index,
		TxHash:      common.BigToHash(big.NewInt(int64(block))),
		Topics:      append([]common.Hash{vaultABI.Events[event].ID}, topics...),
		Data:        data,
	}
}

func depositLog(t *testing.T, block uint64, owner common.Address, assets, shares int64) types.Log {
	ownerTopic := common.BytesToHash(owner.Bytes())
	return packedLog(t, "Deposit", block, 0, []common.Hash{ownerTopic, ownerTopic},
		big.NewInt(assets), big.NewInt(shares))
}

func withdrawLog(t *testing.T, block uint64, owner common.Address, assets, shares int64) types.Log {
	ownerTopic := common.BytesToHash(owner.Bytes())
	return packedLog(t, "Withdraw", block, 0, []common.Hash{ownerTopic, ownerTopic, ownerTopic},
		big.NewInt(assets), big.NewInt(shares))
}

func transferLog(t *testing.T, block uint64, from, to common.Address, value int64) types.Log {
	return packedLog(t, "Transfer", block, 0,
		[]common.Hash{common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		big.NewInt(value))
}

// A burst of activity deep inside a huge empty interval must be found by
// the boundary search and reduced to one correct position.
func TestRunDiscoversBurst(t *testing.T) {
	provider := &fakeProvider{
		head:    1_000_000,
		spanCap: 100_000,
		logs: map[uint64][]types.Log{
			800_000: {depositLog(t, 800_000, alice, 100, 100)},
			800_050: {withdrawLog(t, 800_050, alice, 30, 30)},
		},
	}

	analyzer, err := NewAnalyzer(Config{
		Vault:      vaultAddr,
		ProbeWidth: 10_000,
		Scan:       scan.Config{ChunkSize: 2000},
	}, provider, nil, nil)
	if err != nil {
		t.Fatalf("analyzer: %v", err)
	}

	report, err := analyzer.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.FallbackWindow {
		t.Fatalf("discovery should have found the burst")
	}
	if len(report.Ranges) == 0 {
		t.Fatalf("no ranges reported")
	}
	if report.Ranges[0].Start != 800_000 || report.Ranges[len(report.Ranges)-1].End < 800_050 {
		t.Fatalf("ranges miss the burst: %+v", report.Ranges)
	}

	if len(report.Positions) != 1 {
		t.Fatalf("position count mismatch: %+v", report.Positions)
	}
	position := report.Positions[0]
	if position.Address != alice {
		t.Fatalf("address mismatch: %s", position.Address.Hex())
	}
	if position.TotalDeposits.Int64() != 100 || position.TotalWithdrawals.Int64() != 30 {
		t.Fatalf("totals mismatch: %+v", position)
	}
	if position.NetPosition().Int64() != 70 || position.NetShares.Int64() != 70 {
		t.Fatalf("net mismatch: %+v", position)
	}
	if position.FirstActivity != 8_000_000 || position.LastActivity != 8_000_500 {
		t.Fatalf("activity window mismatch: %+v", position)
	}
}

// When discovery produces nothing the analyzer scans a recent window
// instead of failing.
func TestRunFallbackWindow(t *testing.T) {
	provider := &fakeProvider{
		head: 1_000_000,
		logs: map[uint64][]types.Log{
			999_900: {depositLog(t, 999_900, alice, 50, 50)},
		},
	}
	source := &fakeBlockSource{} // indexed source knows nothing

	analyzer, err := NewAnalyzer(Config{
		Vault:            vaultAddr,
		ScanWindowBlocks: 1000,
		Scan:             scan.Config{ChunkSize: 500},
	}, provider, source, nil)
	if err != nil {
		t.Fatalf("analyzer: %v", err)
	}

	report, err := analyzer.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !report.FallbackWindow {
		t.Fatalf("fallback window not used")
	}
	if len(report.Ranges) != 1 || report.Ranges[0].Start != 999_000 || report.Ranges[0].End != 1_000_000 {
		t.Fatalf("fallback range mismatch: %+v", report.Ranges)
	}
	if len(report.Positions) != 1 || report.Positions[0].TotalDeposits.Int64() != 50 {
		t.Fatalf("position mismatch: %+v", report.Positions)
	}
}

func TestRunEmptyLedger(t *testing.T) {
	provider := &fakeProvider{
		head: 10_000,
		logs: map[uint64][]types.Log{},
	}

	analyzer, err := NewAnalyzer(Config{
		Vault:            vaultAddr,
		ScanWindowBlocks: 1000,
		Scan:             scan.Config{ChunkSize: 500},
	}, provider, nil, nil)
	if err != nil {
		t.Fatalf("analyzer: %v", err)
	}

	report, err := analyzer.Run(context.Background())
	if !errors.Is(err, ErrEmptyLedger) {
		t.Fatalf("expected ErrEmptyLedger, got %v", err)
	}
	if report == nil {
		t.Fatalf("report must accompany the empty-ledger error")
	}
	if !report.FallbackWindow {
		t.Fatalf("fallback window not flagged: %+v", report)
	}
	if len(report.Positions) != 0 {
		t.Fatalf("positions should be empty: %+v", report.Positions)
	}
}

// A vault that only ever emits transfers is analyzed through mint/burn
// inference.
func TestRunInfersFromTransfers(t *testing.T) {
	provider := &fakeProvider{
		head: 10_000,
		logs: map[uint64][]types.Log{
			500: {transferLog(t, 500, common.Address{}, alice, 100)},
			600: {transferLog(t, 600, alice, bob, 40)},
			700: {transferLog(t, 700, bob, common.Address{}, 60)},
		},
	}

	analyzer, err := NewAnalyzer(Config{
		Vault:      vaultAddr,
		ProbeWidth: 100,
		Scan:       scan.Config{ChunkSize: 500},
	}, provider, nil, nil)
	if err != nil {
		t.Fatalf("analyzer: %v", err)
	}

	report, err := analyzer.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !report.Inferred {
		t.Fatalf("inference not flagged")
	}
	if len(report.Positions) != 2 {
		t.Fatalf("position count mismatch: %+v", report.Positions)
	}

	for _, position := range report.Positions {
		switch position.Address {
		case alice:
			if position.TotalDeposits.Int64() != 100 || position.TotalWithdrawals.Int64() != 0 {
				t.Fatalf("alice mismatch: %+v", position)
			}
		case bob:
			if position.TotalDeposits.Int64() != 0 || position.TotalWithdrawals.Int64() != 60 {
				t.Fatalf("bob mismatch: %+v", position)
			}
		default:
			t.Fatalf("unexpected address: %s", position.Address.Hex())
		}
	}
}

// An indexed block source short-circuits RPC boundary search entirely.
func TestRunIndexedDiscovery(t *testing.T) {
	provider := &fakeProvider{
		head: 1_000_000,
		// Any wide query would blow this cap; only the clustered range
		// around the indexed blocks stays under it.
		spanCap: 5000,
		logs: map[uint64][]types.Log{
			120: {depositLog(t, 120, alice, 10, 10)},
		},
	}
	source := &fakeBlockSource{blocks: []uint64{120, 150}}

	analyzer, err := NewAnalyzer(Config{
		Vault:             vaultAddr,
		MergeGapThreshold: 1000,
		Scan:              scan.Config{ChunkSize: 500},
	}, provider, source, nil)
	if err != nil {
		t.Fatalf("analyzer: %v", err)
	}

	report, err := analyzer.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.FallbackWindow {
		t.Fatalf("indexed discovery should have produced ranges")
	}
	if len(report.Ranges) != 1 || report.Ranges[0].Start != 120 || report.Ranges[0].End != 150 {
		t.Fatalf("clustered range mismatch: %+v", report.Ranges)
	}
	if len(report.Positions) != 1 || report.Positions[0].TotalDeposits.Int64() != 10 {
		t.Fatalf("position mismatch: %+v", report.Positions)
	}
}
