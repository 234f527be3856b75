// Package ledger folds classified vault events into per-address running
// positions. Events may arrive in any order; all arithmetic is over
// big integers, and NetShares may go transiently negative under
// out-of-order replay without that being an error.
package ledger

import (
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"vaultScope/internal/model"
)

// Ledger is the mutable address position mapping for one analysis run.
// Apply operations are mutually exclusive; the zero value is not usable,
// construct with New.
type Ledger struct {
	mu        sync.Mutex
	positions map[common.Address]*model.AddressPosition
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{positions: make(map[common.Address]*model.AddressPosition)}
}

// ApplyDeposit credits the owner with a deposit at timestamp ts.
func (l *Ledger) ApplyDeposit(event model.DepositEvent, ts uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	position := l.position(event.Owner, ts)
	position.TotalDeposits.Add(position.TotalDeposits, event.Assets)
	position.NetShares.Add(position.NetShares, event.Shares)
	position.DepositCount++
	if ts < position.FirstActivity {
		position.FirstActivity = ts
	}
	if ts > position.LastActivity {
		position.LastActivity = ts
	}
}

// ApplyWithdraw debits the owner with a withdrawal at timestamp ts.
// Withdrawals never move FirstActivity backward.
func (l *Ledger) ApplyWithdraw(event model.WithdrawEvent, ts uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	position := l.position(event.Owner, ts)
	position.TotalWithdrawals.Add(position.TotalWithdrawals, event.Assets)
	position.NetShares.Sub(position.NetShares, event.Shares)
	position.WithdrawalCount++
	if ts > position.LastActivity {
		position.LastActivity = ts
	}
}

// position returns the entry for address, creating it at ts if absent.
// Callers must hold l.mu.
func (l *Ledger) position(address common.Address, ts uint64) *model.AddressPosition {
	if existing, ok := l.positions[address]; ok {
		return existing
	}
	created := model.NewAddressPosition(address, ts)
	l.positions[address] = created
	return created
}

// Len returns the number of tracked addresses.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.positions)
}

// Get returns a copy of the position for address, if present.
func (l *Ledger) Get(address common.Address) (*model.AddressPosition, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	position, ok := l.positions[address]
	if !ok {
		return nil, false
	}
	return position.Clone(), true
}

// Merge folds every position of other into l. Counters and totals add;
// FirstActivity takes the minimum, LastActivity the maximum.
func (l *Ledger) Merge(other *Ledger) {
	if other == nil || other == l {
		return
	}

	other.mu.Lock()
	defer other.mu.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()

	for address, incoming := range other.positions {
		existing, ok := l.positions[address]
		if !ok {
			l.positions[address] = incoming.Clone()
			continue
		}
		existing.TotalDeposits.Add(existing.TotalDeposits, incoming.TotalDeposits)
		existing.TotalWithdrawals.Add(existing.TotalWithdrawals, incoming.TotalWithdrawals)
		existing.NetShares.Add(existing.NetShares, incoming.NetShares)
		existing.DepositCount += incoming.DepositCount
		existing.WithdrawalCount += incoming.WithdrawalCount
		if incoming.FirstActivity < existing.FirstActivity {
			existing.FirstActivity = incoming.FirstActivity
		}
		if incoming.LastActivity > existing.LastActivity {
			existing.LastActivity = incoming.LastActivity
		}
	}
}

// Snapshot returns deep copies of all positions ordered by address, so
// output is deterministic regardless of insertion order.
func (l *Ledger) Snapshot() []model.AddressPosition {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.AddressPosition, 0, len(l.positions))
	for _, position := range l.positions {
		out = append(out, *position.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.Hex() < out[j].Address.Hex()
	})
	return out
}
