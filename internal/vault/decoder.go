package vault

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"vaultScope/internal/model"
)

// DecoderConfig configures decoder behavior. Topic0Map adds extra topic0
// signatures for the canonical event kinds, for vault implementations
// that emit the same payload layout under a different signature.
type DecoderConfig struct {
	Topic0Map map[string]string
}

// Decoder classifies raw logs against the known vault signature table and
// decodes them into typed events.
type Decoder struct {
	vaultABI    abi.ABI
	topicToKind map[common.Hash]model.EventKind
	topicOrder  []common.Hash
}

// NewDecoder builds a decoder with the canonical topic set plus any
// configured extras.
func NewDecoder(cfg DecoderConfig) (*Decoder, error) {
	vaultABI, err := VaultABI()
	if err != nil {
		return nil, err
	}

	canonical := []struct {
		name string
		kind model.EventKind
	}{
		{"Deposit", model.KindDeposit},
		{"Withdraw", model.KindWithdraw},
		{"Transfer", model.KindTransfer},
		{"VaultUpdate", model.KindVaultUpdate},
	}

	topicToKind := make(map[common.Hash]model.EventKind, len(canonical))
	topicOrder := make([]common.Hash, 0, len(canonical))
	for _, entry := range canonical {
		id := vaultABI.Events[entry.name].ID
		topicToKind[id] = entry.kind
		topicOrder = append(topicOrder, id)
	}

	for topic0, name := range cfg.Topic0Map {
		kind := normalizeKind(name)
		if kind == model.KindUnknown {
			return nil, fmt.Errorf("unsupported event kind in topic0 map: %s", name)
		}
		data, err := hexutil.Decode(strings.TrimSpace(topic0))
		if err != nil || len(data) != 32 {
			return nil, fmt.Errorf("invalid topic0 in map: %s", topic0)
		}
		hash := common.BytesToHash(data)
		if _, exists := topicToKind[hash]; !exists {
			topicOrder = append(topicOrder, hash)
		}
		topicToKind[hash] = kind
	}

	return &Decoder{
		vaultABI:    vaultABI,
		topicToKind: topicToKind,
		topicOrder:  topicOrder,
	}, nil
}

// TopicSet returns the ordered watched topic0 set.
func (d *Decoder) TopicSet() []common.Hash {
	out := make([]common.Hash, len(d.topicOrder))
	copy(out, d.topicOrder)
	return out
}

// Kind classifies a log by its topic0. Logs with no topics or an
// unrecognized signature are KindUnknown.
func (d *Decoder) Kind(log types.Log) model.EventKind {
	if len(log.Topics) == 0 {
		return model.KindUnknown
	}
	return d.topicToKind[log.Topics[0]]
}

// DecodeDeposit decodes a canonical Deposit log.
func (d *Decoder) DecodeDeposit(log types.Log) (model.DepositEvent, error) {
	event := d.vaultABI.Events["Deposit"]

	var indexed struct {
		Sender common.Address
		Owner  common.Address
	}
	if err := parseIndexed(&indexed, event, log); err != nil {
		return model.DepositEvent{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.DepositEvent{}, err
	}
	if len(values) != 2 {
		return model.DepositEvent{}, fmt.Errorf("unexpected deposit values: %d", len(values))
	}
	assets, err := asBigInt(values[0])
	if err != nil {
		return model.DepositEvent{}, err
	}
	shares, err := asBigInt(values[1])
	if err != nil {
		return model.DepositEvent{}, err
	}

	return model.DepositEvent{
		Sender:      indexed.Sender,
		Owner:       indexed.Owner,
		Assets:      assets,
		Shares:      shares,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
	}, nil
}

// DecodeWithdraw decodes a canonical Withdraw log.
func (d *Decoder) DecodeWithdraw(log types.Log) (model.WithdrawEvent, error) {
	event := d.vaultABI.Events["Withdraw"]

	var indexed struct {
		Sender   common.Address
		Receiver common.Address
		Owner    common.Address
	}
	if err := parseIndexed(&indexed, event, log); err != nil {
		return model.WithdrawEvent{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.WithdrawEvent{}, err
	}
	if len(values) != 2 {
		return model.WithdrawEvent{}, fmt.Errorf("unexpected withdraw values: %d", len(values))
	}
	assets, err := asBigInt(values[0])
	if err != nil {
		return model.WithdrawEvent{}, err
	}
	shares, err := asBigInt(values[1])
	if err != nil {
		return model.WithdrawEvent{}, err
	}

	return model.WithdrawEvent{
		Sender:      indexed.Sender,
		Receiver:    indexed.Receiver,
		Owner:       indexed.Owner,
		Assets:      assets,
		Shares:      shares,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
	}, nil
}

// DecodeTransfer decodes a share-token Transfer log.
func (d *Decoder) DecodeTransfer(log types.Log) (model.TransferEvent, error) {
	event := d.vaultABI.Events["Transfer"]

	var indexed struct {
		From common.Address
		To   common.Address
	}
	if err := parseIndexed(&indexed, event, log); err != nil {
		return model.TransferEvent{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.TransferEvent{}, err
	}
	if len(values) != 1 {
		return model.TransferEvent{}, fmt.Errorf("unexpected transfer values: %d", len(values))
	}
	value, err := asBigInt(values[0])
	if err != nil {
		return model.TransferEvent{}, err
	}

	return model.TransferEvent{
		From:        indexed.From,
		To:          indexed.To,
		Value:       value,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
	}, nil
}

// DecodeVaultUpdate decodes a vault accounting snapshot log.
func (d *Decoder) DecodeVaultUpdate(log types.Log) (model.VaultUpdateEvent, error) {
	event := d.vaultABI.Events["VaultUpdate"]

	if len(log.Topics) != 1 {
		return model.VaultUpdateEvent{}, fmt.Errorf("expected 1 topic, got %d", len(log.Topics))
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.VaultUpdateEvent{}, err
	}
	if len(values) != 2 {
		return model.VaultUpdateEvent{}, fmt.Errorf("unexpected vault update values: %d", len(values))
	}
	totalAssets, err := asBigInt(values[0])
	if err != nil {
		return model.VaultUpdateEvent{}, err
	}
	totalShares, err := asBigInt(values[1])
	if err != nil {
		return model.VaultUpdateEvent{}, err
	}

	return model.VaultUpdateEvent{
		TotalAssets: totalAssets,
		TotalShares: totalShares,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
	}, nil
}

func normalizeKind(name string) model.EventKind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "deposit":
		return model.KindDeposit
	case "withdraw":
		return model.KindWithdraw
	case "transfer":
		return model.KindTransfer
	case "vaultupdate", "vault-update":
		return model.KindVaultUpdate
	default:
		return model.KindUnknown
	}
}

func parseIndexed(out interface{}, event abi.Event, log types.Log) error {
	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(log.Topics))
	}
	if err := abi.ParseTopics(out, indexed, log.Topics[1:]); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}
	return nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, data []byte) ([]interface{}, error) {
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	parsed, ok := value.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("expected big.Int, got %T", value)
	}
	return parsed, nil
}
