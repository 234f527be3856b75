// Package analyze drives one end-to-end vault analysis: discover the
// active block ranges, scan and decode the logs, fall back to transfer
// inference for vaults without canonical events, and fold everything
// into per-address positions.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"vaultScope/internal/chain"
	"vaultScope/internal/discover"
	"vaultScope/internal/infer"
	"vaultScope/internal/ledger"
	"vaultScope/internal/model"
	"vaultScope/internal/scan"
	"vaultScope/internal/vault"
)

// ErrEmptyLedger is returned when a run completes without attributing a
// single deposit or withdrawal to any address.
var ErrEmptyLedger = errors.New("no depositor activity found")

// Config holds run parameters. Zero values fall back to defaults in
// NewAnalyzer.
type Config struct {
	Vault     common.Address
	ChainID   uint64
	FromBlock uint64
	ToBlock   uint64 // 0 means current head

	ProbeWidth        uint64
	ScanWindowBlocks  uint64
	MergeGapThreshold uint64
	Topic0Map         map[string]string

	Scan scan.Config
}

// BlockSource is an indexed alternative to RPC boundary search: it
// returns the block numbers of known vault events, typically from a
// subgraph.
type BlockSource interface {
	FetchEventBlocks(ctx context.Context, vault string) ([]uint64, error)
}

// Analyzer runs vault analyses against one provider.
type Analyzer struct {
	cfg      Config
	provider chain.Provider
	decoder  *vault.Decoder
	blocks   BlockSource
	logger   *zap.Logger
}

// NewAnalyzer builds an analyzer. blocks may be nil, in which case
// discovery always uses RPC boundary search.
func NewAnalyzer(cfg Config, provider chain.Provider, blocks BlockSource, logger *zap.Logger) (*Analyzer, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Vault == (common.Address{}) {
		return nil, fmt.Errorf("vault address is required")
	}
	if cfg.ProbeWidth == 0 {
		cfg.ProbeWidth = 10_000
	}
	if cfg.ScanWindowBlocks == 0 {
		cfg.ScanWindowBlocks = 100_000
	}
	if cfg.Scan.ChunkSize == 0 {
		cfg.Scan.ChunkSize = 2000
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	decoder, err := vault.NewDecoder(vault.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}

	return &Analyzer{
		cfg:      cfg,
		provider: provider,
		decoder:  decoder,
		blocks:   blocks,
		logger:   logger,
	}, nil
}

// Run executes one analysis and returns the report. When the run
// completes but no address has any activity, the report is returned
// together with ErrEmptyLedger so callers still see the scan accounting.
func (a *Analyzer) Run(ctx context.Context) (*Report, error) {
	head, err := a.provider.CurrentBlockHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("current block height: %w", err)
	}

	from := a.cfg.FromBlock
	to := a.cfg.ToBlock
	if to == 0 || to > head {
		to = head
	}
	if from > to {
		return nil, fmt.Errorf("from block %d is beyond to block %d", from, to)
	}

	topics := a.decoder.TopicSet()
	a.logger.Info("analysis started",
		zap.String("vault", a.cfg.Vault.Hex()),
		zap.Uint64("from", from),
		zap.Uint64("to", to),
		zap.Uint64("head", head),
	)

	ranges, err := a.discoverRanges(ctx, from, to, topics)
	if err != nil {
		return nil, err
	}

	fallback := false
	if len(ranges) == 0 {
		ranges = a.fallbackWindow(head)
		fallback = true
		a.logger.Warn("no activity discovered, scanning recent window",
			zap.Uint64("from", ranges[0].Start),
			zap.Uint64("to", ranges[0].End),
		)
	}

	scanner := scan.NewScanner(a.cfg.Scan, a.provider, a.cfg.Vault, a.decoder, a.logger)
	batch, err := scanner.Scan(ctx, ranges, topics)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	deposits := batch.Deposits
	withdraws := batch.Withdraws
	inferred := false
	if infer.Applicable(len(deposits), len(withdraws), len(batch.Transfers)) {
		result := infer.FromTransfers(batch.Transfers)
		deposits = result.Deposits
		withdraws = result.Withdraws
		inferred = true
		a.logger.Info("no canonical events, inferred from transfers",
			zap.Int("deposits", len(deposits)),
			zap.Int("withdraws", len(withdraws)),
			zap.Int("ignored", result.Ignored),
		)
	}

	led := ledger.New()
	if err := a.applyEvents(ctx, led, deposits, withdraws); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:          uuid.New(),
		GeneratedAt:    time.Now().UTC(),
		Vault:          a.cfg.Vault,
		ChainID:        a.cfg.ChainID,
		Head:           head,
		FromBlock:      from,
		ToBlock:        to,
		Ranges:         ranges,
		FallbackWindow: fallback,
		Inferred:       inferred,
		Truncated:      batch.Truncated,
		ScannedChunks:  batch.ScannedChunks,
		SkippedChunks:  batch.SkippedChunks,
		UnknownCount:   batch.UnknownCount,
		DecodeErrors:   batch.DecodeErrors,
		Positions:      led.Snapshot(),
	}

	if led.Len() == 0 {
		return report, ErrEmptyLedger
	}

	a.logger.Info("analysis complete",
		zap.Int("addresses", led.Len()),
		zap.Int("deposits", len(deposits)),
		zap.Int("withdraws", len(withdraws)),
		zap.Bool("inferred", inferred),
	)
	return report, nil
}

// discoverRanges produces the active ranges for [from, to], preferring
// the indexed source when one is configured. An indexed-source failure
// degrades to RPC boundary search rather than aborting the run.
func (a *Analyzer) discoverRanges(ctx context.Context, from, to uint64, topics []common.Hash) ([]discover.ActiveRange, error) {
	if a.blocks != nil {
		blocks, err := a.blocks.FetchEventBlocks(ctx, a.cfg.Vault.Hex())
		if err == nil {
			inWindow := blocks[:0:0]
			for _, block := range blocks {
				if block >= from && block <= to {
					inWindow = append(inWindow, block)
				}
			}
			return discover.ClusterBlocks(inWindow, a.cfg.MergeGapThreshold), nil
		}
		a.logger.Warn("indexed discovery failed, falling back to RPC search", zap.Error(err))
	}

	probe := discover.NewProbe(a.provider, a.cfg.Vault, a.logger)
	finder, err := discover.NewBoundaryFinder(probe, a.cfg.ProbeWidth, a.logger)
	if err != nil {
		return nil, err
	}

	iv := discover.BlockInterval{Start: from, End: to}
	bounds, found, err := finder.FindBounds(ctx, iv, topics)
	if err != nil {
		return nil, fmt.Errorf("find bounds: %w", err)
	}
	if !found {
		return nil, nil
	}

	subdivider := discover.NewSubdivider(probe, a.cfg.Scan.ChunkSize, a.logger)
	ranges, err := subdivider.Confirm(ctx, bounds, topics)
	if err != nil {
		return nil, fmt.Errorf("confirm ranges: %w", err)
	}
	return ranges, nil
}

// fallbackWindow is the recent-blocks window scanned when discovery
// finds nothing, clamped at genesis.
func (a *Analyzer) fallbackWindow(head uint64) []discover.ActiveRange {
	start := uint64(0)
	if head > a.cfg.ScanWindowBlocks {
		start = head - a.cfg.ScanWindowBlocks
	}
	return []discover.ActiveRange{{Start: start, End: head, BlockCount: head - start + 1}}
}

// applyEvents folds events into the ledger, resolving each block number
// to its timestamp through the provider.
func (a *Analyzer) applyEvents(ctx context.Context, led *ledger.Ledger, deposits []model.DepositEvent, withdraws []model.WithdrawEvent) error {
	for _, event := range deposits {
		ts, err := a.blockTimestamp(ctx, event.BlockNumber)
		if err != nil {
			return err
		}
		led.ApplyDeposit(event, ts)
	}
	for _, event := range withdraws {
		ts, err := a.blockTimestamp(ctx, event.BlockNumber)
		if err != nil {
			return err
		}
		led.ApplyWithdraw(event, ts)
	}
	return nil
}

func (a *Analyzer) blockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	var ts uint64
	err := chain.WithRetry(ctx, a.cfg.Scan.MaxRetries, a.cfg.Scan.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = a.provider.BlockTimestamp(ctx, number)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("block %d timestamp: %w", number, err)
	}
	return ts, nil
}
