package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"vaultScope/internal/analyze"
)

// JsonlStorage writes analysis reports to a JSONL file: one summary line
// followed by one line per position.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// reportSummary is the per-run header line, without the position rows.
type reportSummary struct {
	RunID          string `json:"run_id"`
	GeneratedAt    string `json:"generated_at"`
	Vault          string `json:"vault"`
	Head           uint64 `json:"head"`
	FromBlock      uint64 `json:"from_block"`
	ToBlock        uint64 `json:"to_block"`
	RangeCount     int    `json:"range_count"`
	FallbackWindow bool   `json:"fallback_window"`
	Inferred       bool   `json:"inferred"`
	Truncated      bool   `json:"truncated"`
	PositionCount  int    `json:"position_count"`
}

// PutReport appends the report to the file.
func (s *JsonlStorage) PutReport(ctx context.Context, report *analyze.Report) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	writeLine := func(value any) error {
		line, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
		return nil
	}

	summary := reportSummary{
		RunID:          report.RunID.String(),
		GeneratedAt:    report.GeneratedAt.Format(time.RFC3339Nano),
		Vault:          report.Vault.Hex(),
		Head:           report.Head,
		FromBlock:      report.FromBlock,
		ToBlock:        report.ToBlock,
		RangeCount:     len(report.Ranges),
		FallbackWindow: report.FallbackWindow,
		Inferred:       report.Inferred,
		Truncated:      report.Truncated,
		PositionCount:  len(report.Positions),
	}
	if err := writeLine(summary); err != nil {
		return err
	}
	for _, position := range report.Positions {
		if err := writeLine(position); err != nil {
			return err
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
