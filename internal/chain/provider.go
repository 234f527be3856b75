package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Provider is the query-provider capability consumed by discovery and
// scanning. QueryLogs fails with a *RangeTooLargeError when the block
// span or result count exceeds the provider's limits; any other failure
// is treated as transient by callers.
type Provider interface {
	CurrentBlockHeight(ctx context.Context) (uint64, error)
	QueryLogs(ctx context.Context, address common.Address, fromBlock, toBlock uint64, topic0 []common.Hash) ([]types.Log, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}
