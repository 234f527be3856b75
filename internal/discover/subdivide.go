package discover

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Subdivider splits a confirmed boundary pair into fixed-size chunks and
// keeps only the chunks that actually contain activity. Vault activity is
// bursty, so re-confirming per chunk avoids fetching and decoding long
// silent stretches between the boundaries.
type Subdivider struct {
	probe     *Probe
	chunkSize uint64
	logger    *zap.Logger
}

// NewSubdivider builds a subdivider. chunkSize should not exceed the
// provider-safe probe width.
func NewSubdivider(probe *Probe, chunkSize uint64, logger *zap.Logger) *Subdivider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subdivider{probe: probe, chunkSize: chunkSize, logger: logger}
}

// Confirm walks [bounds.First, bounds.Last] in chunks and returns the
// active ones. A failed chunk probe keeps the chunk: scanning a possibly
// empty chunk is cheaper than silently dropping activity.
func (s *Subdivider) Confirm(ctx context.Context, bounds Bounds, topics []common.Hash) ([]ActiveRange, error) {
	iv := BlockInterval{Start: bounds.First, End: bounds.Last}
	chunks, err := iv.SplitChunks(s.chunkSize)
	if err != nil {
		return nil, err
	}

	active := make([]ActiveRange, 0, len(chunks))
	for _, chunk := range chunks {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		found, err := s.probe.HasActivity(ctx, chunk, topics)
		if err != nil {
			s.logger.Warn("chunk probe failed, keeping chunk",
				zap.Uint64("from", chunk.Start),
				zap.Uint64("to", chunk.End),
				zap.Error(err),
			)
			found = true
		}
		if found {
			active = append(active, ActiveRange{
				Start:      chunk.Start,
				End:        chunk.End,
				BlockCount: chunk.Width(),
			})
		}
	}

	s.logger.Info("subdivide complete",
		zap.Int("chunks", len(chunks)),
		zap.Int("active", len(active)),
	)
	return active, nil
}
