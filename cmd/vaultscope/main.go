package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "vaultscope",
		Short:        "EVM vault depositor analyzer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze depositor positions for a vault",
		RunE:  runAnalyze,
	}

	analyzeCmd.Flags().String("rpc", "", "EVM RPC URL")
	analyzeCmd.Flags().String("vault", "", "vault contract address")
	analyzeCmd.Flags().Uint64("chain-id", 0, "chain id recorded in outputs, 0 means query the RPC")
	analyzeCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	analyzeCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	analyzeCmd.Flags().Uint64("probe-width", 10000, "provider-safe query span for boundary search")
	analyzeCmd.Flags().Uint64("chunk-size", 2000, "blocks per scan chunk")
	analyzeCmd.Flags().Uint64("scan-window-blocks", 100000, "recent window scanned when discovery finds nothing")
	analyzeCmd.Flags().Uint64("merge-gap-threshold", 1000, "max gap when clustering indexed blocks into ranges")
	analyzeCmd.Flags().Int("max-event-budget", 50000, "stop scanning after this many classified events, 0 disables")
	analyzeCmd.Flags().Duration("chunk-delay", 0, "pause between chunk queries")
	analyzeCmd.Flags().Int("concurrency", 4, "parallel chunk queries")
	analyzeCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	analyzeCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	analyzeCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	analyzeCmd.Flags().String("subgraph-url", "", "optional subgraph endpoint for indexed discovery")
	analyzeCmd.Flags().String("subgraph-key", "", "subgraph API key")
	analyzeCmd.Flags().String("out", "./data/positions.jsonl", "output JSONL path")
	analyzeCmd.Flags().String("state-file", "./data/state.json", "run state file path")
	analyzeCmd.Flags().Bool("state-file-enabled", true, "enable run state tracking")
	analyzeCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for persistence")
	analyzeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(analyzeCmd)

	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Report active block ranges without scanning them",
		RunE:  runDiscover,
	}

	discoverCmd.Flags().String("rpc", "", "EVM RPC URL")
	discoverCmd.Flags().String("vault", "", "vault contract address")
	discoverCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	discoverCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	discoverCmd.Flags().Uint64("probe-width", 10000, "provider-safe query span for boundary search")
	discoverCmd.Flags().Uint64("chunk-size", 2000, "blocks per confirmation chunk")
	discoverCmd.Flags().Uint64("merge-gap-threshold", 1000, "max gap when clustering indexed blocks into ranges")
	discoverCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	discoverCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	discoverCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	discoverCmd.Flags().String("subgraph-url", "", "optional subgraph endpoint for indexed discovery")
	discoverCmd.Flags().String("subgraph-key", "", "subgraph API key")
	discoverCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(discoverCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
