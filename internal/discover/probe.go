package discover

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"vaultScope/internal/chain"
)

// Probe issues bounded log queries for a single contract. When the
// provider rejects a query for range size, the probe halves the interval
// and recurses; the rejection never escapes the probe unless the interval
// has collapsed to a single block. Non-range errors propagate as-is.
type Probe struct {
	provider chain.Provider
	address  common.Address
	logger   *zap.Logger
}

// NewProbe builds a probe for the given contract address.
func NewProbe(provider chain.Provider, address common.Address, logger *zap.Logger) *Probe {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Probe{provider: provider, address: address, logger: logger}
}

// HasActivity reports whether any log matching topics exists in iv.
func (p *Probe) HasActivity(ctx context.Context, iv BlockInterval, topics []common.Hash) (bool, error) {
	logs, err := p.provider.QueryLogs(ctx, p.address, iv.Start, iv.End, topics)
	if err == nil {
		return len(logs) > 0, nil
	}
	if !chain.IsRangeTooLarge(err) || iv.Start == iv.End {
		return false, err
	}

	left, right := iv.SplitMid()
	p.logger.Debug("probe split", zap.Uint64("from", iv.Start), zap.Uint64("to", iv.End))

	found, err := p.HasActivity(ctx, left, topics)
	if err != nil {
		return false, err
	}
	if found {
		return true, nil
	}
	return p.HasActivity(ctx, right, topics)
}

// FetchLogs returns all logs matching topics in iv, subdividing as needed.
// The result is ordered by ascending block number regardless of how the
// interval was partitioned.
func (p *Probe) FetchLogs(ctx context.Context, iv BlockInterval, topics []common.Hash) ([]types.Log, error) {
	logs, err := p.provider.QueryLogs(ctx, p.address, iv.Start, iv.End, topics)
	if err == nil {
		return logs, nil
	}
	if !chain.IsRangeTooLarge(err) || iv.Start == iv.End {
		return nil, err
	}

	left, right := iv.SplitMid()
	p.logger.Debug("fetch split", zap.Uint64("from", iv.Start), zap.Uint64("to", iv.End))

	leftLogs, err := p.FetchLogs(ctx, left, topics)
	if err != nil {
		return nil, err
	}
	rightLogs, err := p.FetchLogs(ctx, right, topics)
	if err != nil {
		return nil, err
	}
	return append(leftLogs, rightLogs...), nil
}
