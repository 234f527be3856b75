// Package infer reclassifies plain share-token transfers as synthetic
// deposit and withdrawal events when a vault emits no canonical event
// set. Mints (from the zero address) become deposits, burns (to the zero
// address) become withdrawals, and the share quantity stands in for the
// asset quantity as an explicit approximation.
package infer

import (
	"math/big"

	"vaultScope/internal/model"
)

// Result holds the synthetic events derived from a transfer set.
type Result struct {
	Deposits  []model.DepositEvent
	Withdraws []model.WithdrawEvent
	// Ignored counts transfers between two non-zero addresses; they do
	// not change aggregate vault assets and are dropped.
	Ignored int
}

// FromTransfers derives synthetic deposit/withdraw events from mint and
// burn transfers. The function is pure: the same transfer set always
// produces the same result, and the input is never mutated.
func FromTransfers(transfers []model.TransferEvent) Result {
	var out Result
	for _, transfer := range transfers {
		fromZero := transfer.From == model.ZeroAddress
		toZero := transfer.To == model.ZeroAddress

		switch {
		case fromZero && !toZero:
			out.Deposits = append(out.Deposits, model.DepositEvent{
				Sender:      transfer.From,
				Owner:       transfer.To,
				Assets:      new(big.Int).Set(transfer.Value),
				Shares:      new(big.Int).Set(transfer.Value),
				BlockNumber: transfer.BlockNumber,
				TxHash:      transfer.TxHash,
				LogIndex:    transfer.LogIndex,
			})
		case !fromZero && toZero:
			out.Withdraws = append(out.Withdraws, model.WithdrawEvent{
				Sender:      transfer.From,
				Receiver:    transfer.From,
				Owner:       transfer.From,
				Assets:      new(big.Int).Set(transfer.Value),
				Shares:      new(big.Int).Set(transfer.Value),
				BlockNumber: transfer.BlockNumber,
				TxHash:      transfer.TxHash,
				LogIndex:    transfer.LogIndex,
			})
		default:
			out.Ignored++
		}
	}
	return out
}

// Applicable reports whether inference should run: canonical decode
// yielded nothing and at least one transfer exists.
func Applicable(depositCount, withdrawCount, transferCount int) bool {
	return depositCount == 0 && withdrawCount == 0 && transferCount > 0
}
