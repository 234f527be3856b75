package model

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AddressPosition is the running ledger entry for one depositor address.
// Big-integer fields are never nil once the entry is constructed.
type AddressPosition struct {
	Address          common.Address
	TotalDeposits    *big.Int
	TotalWithdrawals *big.Int
	NetShares        *big.Int
	FirstActivity    uint64
	LastActivity     uint64
	DepositCount     uint64
	WithdrawalCount  uint64
}

// NewAddressPosition seeds an empty position first seen at timestamp ts.
func NewAddressPosition(address common.Address, ts uint64) *AddressPosition {
	return &AddressPosition{
		Address:          address,
		TotalDeposits:    big.NewInt(0),
		TotalWithdrawals: big.NewInt(0),
		NetShares:        big.NewInt(0),
		FirstActivity:    ts,
		LastActivity:     ts,
	}
}

// NetPosition returns totalDeposits - totalWithdrawals. The result is
// signed and may be negative when withdrawals of appreciated value exceed
// nominal deposits.
func (p *AddressPosition) NetPosition() *big.Int {
	return new(big.Int).Sub(p.TotalDeposits, p.TotalWithdrawals)
}

// Clone returns a deep copy of the position.
func (p *AddressPosition) Clone() *AddressPosition {
	return &AddressPosition{
		Address:          p.Address,
		TotalDeposits:    new(big.Int).Set(p.TotalDeposits),
		TotalWithdrawals: new(big.Int).Set(p.TotalWithdrawals),
		NetShares:        new(big.Int).Set(p.NetShares),
		FirstActivity:    p.FirstActivity,
		LastActivity:     p.LastActivity,
		DepositCount:     p.DepositCount,
		WithdrawalCount:  p.WithdrawalCount,
	}
}

type positionWire struct {
	Address          string `json:"address"`
	TotalDeposits    string `json:"total_deposits"`
	TotalWithdrawals string `json:"total_withdrawals"`
	NetPosition      string `json:"net_position"`
	NetShares        string `json:"net_shares"`
	FirstActivity    uint64 `json:"first_activity"`
	LastActivity     uint64 `json:"last_activity"`
	DepositCount     uint64 `json:"deposit_count"`
	WithdrawalCount  uint64 `json:"withdrawal_count"`
}

// MarshalJSON encodes big-integer fields as decimal strings.
func (p AddressPosition) MarshalJSON() ([]byte, error) {
	return json.Marshal(positionWire{
		Address:          p.Address.Hex(),
		TotalDeposits:    p.TotalDeposits.String(),
		TotalWithdrawals: p.TotalWithdrawals.String(),
		NetPosition:      p.NetPosition().String(),
		NetShares:        p.NetShares.String(),
		FirstActivity:    p.FirstActivity,
		LastActivity:     p.LastActivity,
		DepositCount:     p.DepositCount,
		WithdrawalCount:  p.WithdrawalCount,
	})
}

// UnmarshalJSON decodes an AddressPosition from its wire form.
func (p *AddressPosition) UnmarshalJSON(data []byte) error {
	var w positionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if !common.IsHexAddress(w.Address) {
		return fmt.Errorf("invalid address: %s", w.Address)
	}
	deposits, err := parseBigInt(w.TotalDeposits)
	if err != nil {
		return err
	}
	withdrawals, err := parseBigInt(w.TotalWithdrawals)
	if err != nil {
		return err
	}
	shares, err := parseBigInt(w.NetShares)
	if err != nil {
		return err
	}
	*p = AddressPosition{
		Address:          common.HexToAddress(w.Address),
		TotalDeposits:    deposits,
		TotalWithdrawals: withdrawals,
		NetShares:        shares,
		FirstActivity:    w.FirstActivity,
		LastActivity:     w.LastActivity,
		DepositCount:     w.DepositCount,
		WithdrawalCount:  w.WithdrawalCount,
	}
	return nil
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}
