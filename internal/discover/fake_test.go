package discover

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"vaultScope/internal/chain"
)

// fakeProvider serves synthetic logs for a set of active blocks and
// enforces span/result caps the way a capped RPC endpoint would.
type fakeProvider struct {
	head      uint64
	spanCap   uint64 // reject when to-from+1 exceeds this (0 = no cap)
	resultCap int    // reject when matches exceed this (0 = no cap)
	active    map[uint64]int
	failAll   bool

	mu      sync.Mutex
	queries int
}

func newFakeProvider(head uint64, activeBlocks ...uint64) *fakeProvider {
	active := make(map[uint64]int, len(activeBlocks))
	for _, block := range activeBlocks {
		active[block]++
	}
	return &fakeProvider{head: head, active: active}
}

func (f *fakeProvider) CurrentBlockHeight(ctx context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeProvider) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	return number * 10, nil
}

func (f *fakeProvider) QueryLogs(ctx context.Context, address common.Address, from, to uint64, topic0 []common.Hash) ([]types.Log, error) {
	f.mu.Lock()
	f.queries++
	f.mu.Unlock()

	if f.failAll {
		return nil, errors.New("connection refused")
	}
	if to < from {
		return nil, fmt.Errorf("invalid range [%d,%d]", from, to)
	}
	if f.spanCap > 0 && to-from+1 > f.spanCap {
		return nil, &chain.RangeTooLargeError{From: from, To: to, Err: errors.New("block range is too wide")}
	}

	topic := common.Hash{0x01}
	if len(topic0) > 0 {
		topic = topic0[0]
	}

	var logs []types.Log
	for block, count := range f.active {
		if block < from || block > to {
			continue
		}
		for i := 0; i < count; i++ {
			logs = append(logs, types.Log{
				Address:     address,
				BlockNumber: block,
				Topics:      []common.Hash{topic},
				TxHash:      common.BigToHash(common.Big1),
				Index:       uint(i),
			})
		}
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].BlockNumber < logs[j].BlockNumber })

	if f.resultCap > 0 && len(logs) > f.resultCap {
		return nil, &chain.RangeTooLargeError{From: from, To: to, Err: errors.New("query returned more than allowed results")}
	}
	return logs, nil
}

func (f *fakeProvider) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}
