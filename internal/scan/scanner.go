package scan

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vaultScope/internal/chain"
	"vaultScope/internal/discover"
	"vaultScope/internal/model"
	"vaultScope/internal/vault"
)

// Config controls scanner behavior.
type Config struct {
	ChunkSize      uint64
	Concurrency    int
	ChunkDelay     time.Duration
	MaxEventBudget int // 0 disables the budget
	MaxRetries     int
	RetryBackoff   time.Duration
}

// Batch is the classified output of a scan. Event slices are ordered by
// (block number, log index).
type Batch struct {
	Deposits     []model.DepositEvent
	Withdraws    []model.WithdrawEvent
	Transfers    []model.TransferEvent
	VaultUpdates []model.VaultUpdateEvent

	UnknownCount  int
	DecodeErrors  []model.DecodeError
	ScannedChunks int
	SkippedChunks int
	Truncated     bool
}

// EventCount returns the number of classified events in the batch.
func (b *Batch) EventCount() int {
	return len(b.Deposits) + len(b.Withdraws) + len(b.Transfers) + len(b.VaultUpdates)
}

// Scanner walks active ranges in provider-safe chunks and decodes every
// log against the vault signature table. Chunk failures degrade to
// skipped sub-chunks; partial data is preferable to aborting the scan.
type Scanner struct {
	cfg      Config
	provider chain.Provider
	address  common.Address
	decoder  *vault.Decoder
	logger   *zap.Logger
}

// NewScanner builds a scanner for one vault contract.
func NewScanner(cfg Config, provider chain.Provider, address common.Address, decoder *vault.Decoder, logger *zap.Logger) *Scanner {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 2000
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		cfg:      cfg,
		provider: provider,
		address:  address,
		decoder:  decoder,
		logger:   logger,
	}
}

type chunkResult struct {
	logs    []types.Log
	skipped int
}

// Scan extracts and classifies logs from all ranges. Chunks are scanned
// by a bounded worker pool; decoded events are merged under a single
// mutex, so the returned batch is consistent even on cancellation.
func (s *Scanner) Scan(ctx context.Context, ranges []discover.ActiveRange, topics []common.Hash) (*Batch, error) {
	chunks := make([]discover.BlockInterval, 0)
	for _, r := range ranges {
		split, err := r.Interval().SplitChunks(s.cfg.ChunkSize)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, split...)
	}

	batch := &Batch{}
	var mu sync.Mutex
	var classified atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			if s.budgetExhausted(&classified) {
				mu.Lock()
				batch.Truncated = true
				mu.Unlock()
				return nil
			}
			if s.cfg.ChunkDelay > 0 {
				timer := time.NewTimer(s.cfg.ChunkDelay)
				select {
				case <-gctx.Done():
					timer.Stop()
					return gctx.Err()
				case <-timer.C:
				}
			}

			result := s.fetchChunk(gctx, chunk, topics)
			if gctx.Err() != nil {
				return gctx.Err()
			}

			local := &Batch{}
			for _, log := range result.logs {
				s.decodeLog(log, local)
			}
			classified.Add(int64(local.EventCount()))

			mu.Lock()
			batch.Deposits = append(batch.Deposits, local.Deposits...)
			batch.Withdraws = append(batch.Withdraws, local.Withdraws...)
			batch.Transfers = append(batch.Transfers, local.Transfers...)
			batch.VaultUpdates = append(batch.VaultUpdates, local.VaultUpdates...)
			batch.UnknownCount += local.UnknownCount
			batch.DecodeErrors = append(batch.DecodeErrors, local.DecodeErrors...)
			batch.ScannedChunks++
			batch.SkippedChunks += result.skipped
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	sortBatch(batch)
	if err != nil {
		return batch, err
	}

	s.logger.Info("scan complete",
		zap.Int("chunks", batch.ScannedChunks),
		zap.Int("skipped_sub_chunks", batch.SkippedChunks),
		zap.Int("deposits", len(batch.Deposits)),
		zap.Int("withdraws", len(batch.Withdraws)),
		zap.Int("transfers", len(batch.Transfers)),
		zap.Int("unknown", batch.UnknownCount),
		zap.Bool("truncated", batch.Truncated),
	)
	return batch, nil
}

func (s *Scanner) budgetExhausted(classified *atomic.Int64) bool {
	return s.cfg.MaxEventBudget > 0 && classified.Load() >= int64(s.cfg.MaxEventBudget)
}

// fetchChunk queries one chunk, splitting exactly once at the midpoint on
// failure. A half that still fails is skipped, not fatal.
func (s *Scanner) fetchChunk(ctx context.Context, chunk discover.BlockInterval, topics []common.Hash) chunkResult {
	logs, err := s.query(ctx, chunk, topics)
	if err == nil {
		return chunkResult{logs: logs}
	}
	if chunk.Start == chunk.End {
		s.logger.Warn("single-block chunk failed, skipping",
			zap.Uint64("block", chunk.Start), zap.Error(err))
		return chunkResult{skipped: 1}
	}

	s.logger.Warn("chunk query failed, splitting once",
		zap.Uint64("from", chunk.Start), zap.Uint64("to", chunk.End), zap.Error(err))

	left, right := chunk.SplitMid()
	var result chunkResult
	for _, half := range []discover.BlockInterval{left, right} {
		halfLogs, err := s.query(ctx, half, topics)
		if err != nil {
			s.logger.Warn("chunk half failed, skipping",
				zap.Uint64("from", half.Start), zap.Uint64("to", half.End), zap.Error(err))
			result.skipped++
			continue
		}
		result.logs = append(result.logs, halfLogs...)
	}
	return result
}

func (s *Scanner) query(ctx context.Context, iv discover.BlockInterval, topics []common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := chain.WithRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = s.provider.QueryLogs(ctx, s.address, iv.Start, iv.End, topics)
		return err
	})
	return logs, err
}

// decodeLog classifies one log into the local batch. Undecodable logs of
// a known kind are recorded as decode errors; unrecognized signatures are
// counted and dropped.
func (s *Scanner) decodeLog(log types.Log, local *Batch) {
	switch s.decoder.Kind(log) {
	case model.KindDeposit:
		event, err := s.decoder.DecodeDeposit(log)
		if err != nil {
			local.DecodeErrors = append(local.DecodeErrors, decodeError(log, err))
			return
		}
		local.Deposits = append(local.Deposits, event)
	case model.KindWithdraw:
		event, err := s.decoder.DecodeWithdraw(log)
		if err != nil {
			local.DecodeErrors = append(local.DecodeErrors, decodeError(log, err))
			return
		}
		local.Withdraws = append(local.Withdraws, event)
	case model.KindTransfer:
		event, err := s.decoder.DecodeTransfer(log)
		if err != nil {
			local.DecodeErrors = append(local.DecodeErrors, decodeError(log, err))
			return
		}
		local.Transfers = append(local.Transfers, event)
	case model.KindVaultUpdate:
		event, err := s.decoder.DecodeVaultUpdate(log)
		if err != nil {
			local.DecodeErrors = append(local.DecodeErrors, decodeError(log, err))
			return
		}
		local.VaultUpdates = append(local.VaultUpdates, event)
	default:
		local.UnknownCount++
	}
}

func decodeError(log types.Log, err error) model.DecodeError {
	topic0 := ""
	if len(log.Topics) > 0 {
		topic0 = log.Topics[0].Hex()
	}
	return model.DecodeError{
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Topic0:      topic0,
		Error:       err.Error(),
	}
}

func sortBatch(batch *Batch) {
	sort.Slice(batch.Deposits, func(i, j int) bool {
		a, b := batch.Deposits[i], batch.Deposits[j]
		return a.BlockNumber < b.BlockNumber || (a.BlockNumber == b.BlockNumber && a.LogIndex < b.LogIndex)
	})
	sort.Slice(batch.Withdraws, func(i, j int) bool {
		a, b := batch.Withdraws[i], batch.Withdraws[j]
		return a.BlockNumber < b.BlockNumber || (a.BlockNumber == b.BlockNumber && a.LogIndex < b.LogIndex)
	})
	sort.Slice(batch.Transfers, func(i, j int) bool {
		a, b := batch.Transfers[i], batch.Transfers[j]
		return a.BlockNumber < b.BlockNumber || (a.BlockNumber == b.BlockNumber && a.LogIndex < b.LogIndex)
	})
	sort.Slice(batch.VaultUpdates, func(i, j int) bool {
		a, b := batch.VaultUpdates[i], batch.VaultUpdates[j]
		return a.BlockNumber < b.BlockNumber || (a.BlockNumber == b.BlockNumber && a.LogIndex < b.LogIndex)
	})
}
