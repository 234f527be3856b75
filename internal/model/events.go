package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind classifies a decoded vault log.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindDeposit
	KindWithdraw
	KindTransfer
	KindVaultUpdate
)

// String returns the lowercase event kind name.
func (k EventKind) String() string {
	switch k {
	case KindDeposit:
		return "deposit"
	case KindWithdraw:
		return "withdraw"
	case KindTransfer:
		return "transfer"
	case KindVaultUpdate:
		return "vaultupdate"
	default:
		return "unknown"
	}
}

// DepositEvent is a decoded canonical Deposit log.
type DepositEvent struct {
	Sender      common.Address
	Owner       common.Address
	Assets      *big.Int
	Shares      *big.Int
	BlockNumber uint64
	TxHash      string
	LogIndex    uint64
}

// WithdrawEvent is a decoded canonical Withdraw log.
type WithdrawEvent struct {
	Sender      common.Address
	Receiver    common.Address
	Owner       common.Address
	Assets      *big.Int
	Shares      *big.Int
	BlockNumber uint64
	TxHash      string
	LogIndex    uint64
}

// TransferEvent is a decoded share-token Transfer log.
type TransferEvent struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	BlockNumber uint64
	TxHash      string
	LogIndex    uint64
}

// VaultUpdateEvent is a decoded vault accounting snapshot log. It is
// collected for reporting and does not affect position accounting.
type VaultUpdateEvent struct {
	TotalAssets *big.Int
	TotalShares *big.Int
	BlockNumber uint64
	TxHash      string
	LogIndex    uint64
}

// ZeroAddress is the mint/burn sentinel address.
var ZeroAddress = common.Address{}
