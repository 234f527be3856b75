package analyze

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"vaultScope/internal/discover"
	"vaultScope/internal/model"
	"vaultScope/internal/vault"
)

// Report is the full output of one analysis run: the discovered ranges,
// scan accounting, and the final per-address positions.
type Report struct {
	RunID       uuid.UUID      `json:"run_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Vault       common.Address `json:"vault"`
	ChainID     uint64         `json:"chain_id,omitempty"`

	// Meta is filled by callers with access to a contract caller; runs
	// against bare log providers leave it nil.
	Meta *vault.Metadata `json:"vault_meta,omitempty"`

	Head      uint64 `json:"head"`
	FromBlock uint64 `json:"from_block"`
	ToBlock   uint64 `json:"to_block"`

	Ranges         []discover.ActiveRange `json:"ranges"`
	FallbackWindow bool                   `json:"fallback_window"`
	Inferred       bool                   `json:"inferred"`
	Truncated      bool                   `json:"truncated"`

	ScannedChunks int                 `json:"scanned_chunks"`
	SkippedChunks int                 `json:"skipped_chunks"`
	UnknownCount  int                 `json:"unknown_count"`
	DecodeErrors  []model.DecodeError `json:"decode_errors,omitempty"`

	Positions []model.AddressPosition `json:"positions"`
}
