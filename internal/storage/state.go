package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RunState tracks the newest block an analysis has covered, so repeated
// runs against the same vault can skip re-searching settled history.
type RunState struct {
	Vault             string `json:"vault"`
	LastAnalyzedBlock uint64 `json:"last_analyzed_block"`
	LastRunID         string `json:"last_run_id"`
	UpdatedAt         string `json:"updated_at"`
}

// ResumeFrom returns the starting block for a run. An explicitly
// configured from-block always wins; otherwise the run resumes just
// past the last analyzed block recorded for the same vault.
func ResumeFrom(configured uint64, state RunState, found bool, vault string) uint64 {
	if configured != 0 || !found {
		return configured
	}
	if !strings.EqualFold(state.Vault, vault) {
		return configured
	}
	return state.LastAnalyzedBlock + 1
}

// StateStore persists run state to disk.
type StateStore struct {
	path    string
	enabled bool
}

func NewStateStore(path string, enabled bool) *StateStore {
	return &StateStore{path: path, enabled: enabled}
}

func (s *StateStore) Load() (RunState, bool, error) {
	if !s.enabled {
		return RunState{}, false, nil
	}

	stat, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunState{}, false, nil
		}
		return RunState{}, false, fmt.Errorf("stat state file: %w", err)
	}
	if stat.IsDir() {
		return RunState{}, false, fmt.Errorf("state path is a directory")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return RunState{}, false, fmt.Errorf("read state file: %w", err)
	}

	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return RunState{}, false, fmt.Errorf("parse state file: %w", err)
	}

	return state, true, nil
}

func (s *StateStore) Save(state RunState) error {
	if !s.enabled {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	state.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}

	return nil
}
