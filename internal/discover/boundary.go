package discover

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Bounds is a confirmed boundary pair: the first and last blocks in a
// searched interval that contain watched activity.
type Bounds struct {
	First uint64
	Last  uint64
}

// BoundaryFinder locates activity boundaries by bisection, using the
// probe as an oracle. Each step probes the half of the remaining interval
// that must contain the boundary, so the search issues O(log n) oracle
// calls; the probe absorbs provider range rejections underneath. Once the
// interval is at most probeWidth wide the finder fetches it outright and
// reads the exact boundary block off the logs.
type BoundaryFinder struct {
	probe      *Probe
	probeWidth uint64
	logger     *zap.Logger
}

// NewBoundaryFinder builds a finder. probeWidth is the provider-safe
// query span used for the final window fetch.
func NewBoundaryFinder(probe *Probe, probeWidth uint64, logger *zap.Logger) (*BoundaryFinder, error) {
	if probe == nil {
		return nil, fmt.Errorf("probe is required")
	}
	if probeWidth == 0 {
		return nil, fmt.Errorf("probe width must be greater than zero")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoundaryFinder{probe: probe, probeWidth: probeWidth, logger: logger}, nil
}

// FindFirst returns the lowest block in iv containing a watched event.
// The second return value is false when the entire interval is empty.
func (f *BoundaryFinder) FindFirst(ctx context.Context, iv BlockInterval, topics []common.Hash) (uint64, bool, error) {
	active, err := f.probe.HasActivity(ctx, iv, topics)
	if err != nil {
		return 0, false, fmt.Errorf("probe [%d,%d]: %w", iv.Start, iv.End, err)
	}
	if !active {
		return 0, false, nil
	}
	return f.descend(ctx, iv, topics, true)
}

// FindLast returns the highest block in iv containing a watched event.
func (f *BoundaryFinder) FindLast(ctx context.Context, iv BlockInterval, topics []common.Hash) (uint64, bool, error) {
	active, err := f.probe.HasActivity(ctx, iv, topics)
	if err != nil {
		return 0, false, fmt.Errorf("probe [%d,%d]: %w", iv.Start, iv.End, err)
	}
	if !active {
		return 0, false, nil
	}
	return f.descend(ctx, iv, topics, false)
}

// FindBounds runs both searches. FindLast is restarted from the first
// active block, so the two searches share a confirmed-active interval.
func (f *BoundaryFinder) FindBounds(ctx context.Context, iv BlockInterval, topics []common.Hash) (Bounds, bool, error) {
	first, found, err := f.FindFirst(ctx, iv, topics)
	if err != nil || !found {
		return Bounds{}, false, err
	}

	last, found, err := f.FindLast(ctx, BlockInterval{Start: first, End: iv.End}, topics)
	if err != nil {
		return Bounds{}, false, err
	}
	if !found {
		// first is itself confirmed active.
		last = first
	}

	f.logger.Info("activity bounds",
		zap.Uint64("first", first),
		zap.Uint64("last", last),
		zap.Uint64("searched_from", iv.Start),
		zap.Uint64("searched_to", iv.End),
	)
	return Bounds{First: first, Last: last}, true, nil
}

// descend narrows a known-active interval to the boundary block. The
// invariant at every step: iv contains at least one watched event.
func (f *BoundaryFinder) descend(ctx context.Context, iv BlockInterval, topics []common.Hash, lowest bool) (uint64, bool, error) {
	for iv.Width() > f.probeWidth {
		select {
		case <-ctx.Done():
			return 0, false, ctx.Err()
		default:
		}

		left, right := iv.SplitMid()
		near := left
		if !lowest {
			near = right
		}

		active, err := f.probe.HasActivity(ctx, near, topics)
		if err != nil {
			return 0, false, fmt.Errorf("probe [%d,%d]: %w", near.Start, near.End, err)
		}
		if active {
			iv = near
		} else if lowest {
			iv = right
		} else {
			iv = left
		}
	}

	logs, err := f.probe.FetchLogs(ctx, iv, topics)
	if err != nil {
		return 0, false, fmt.Errorf("fetch window [%d,%d]: %w", iv.Start, iv.End, err)
	}
	if len(logs) == 0 {
		return 0, false, nil
	}

	boundary := logs[0].BlockNumber
	for _, log := range logs[1:] {
		if lowest && log.BlockNumber < boundary {
			boundary = log.BlockNumber
		}
		if !lowest && log.BlockNumber > boundary {
			boundary = log.BlockNumber
		}
	}
	return boundary, true, nil
}
