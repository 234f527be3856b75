package storage

import (
	"context"

	"vaultScope/internal/analyze"
)

// ReportSink defines a sink for analysis reports.
type ReportSink interface {
	PutReport(ctx context.Context, report *analyze.Report) error
}
