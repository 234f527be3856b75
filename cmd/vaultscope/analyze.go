package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultScope/internal/analyze"
	"vaultScope/internal/chain"
	"vaultScope/internal/config"
	"vaultScope/internal/scan"
	"vaultScope/internal/storage"
	"vaultScope/internal/storage/postgres"
	"vaultScope/internal/subgraph"
	"vaultScope/internal/vault"
)

func runAnalyze(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.Vault) {
		return fmt.Errorf("valid vault address is required")
	}
	vaultAddr := common.HexToAddress(cfg.Vault)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID := cfg.ChainID
	if chainID == 0 {
		id, err := chainClient.GetChainID(ctx)
		if err != nil {
			return fmt.Errorf("chain id: %w", err)
		}
		chainID = id.Uint64()
	}

	var blocks analyze.BlockSource
	if cfg.SubgraphURL != "" {
		blocks = subgraph.NewClient(cfg.SubgraphURL, cfg.SubgraphKey)
	}

	var pgStore *postgres.Store
	if cfg.PgDSN != "" {
		pgStore, err = postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pgStore.Close()
	}
	stateStore := storage.NewStateStore(cfg.StateFile, cfg.StateFileEnabled)

	fromBlock, err := resumeBlock(ctx, cfg, stateStore, pgStore, vaultAddr)
	if err != nil {
		return err
	}
	if fromBlock != cfg.FromBlock {
		logger.Info("resuming from recorded state", zap.Uint64("from", fromBlock))
	}

	analyzer, err := analyze.NewAnalyzer(analyze.Config{
		Vault:             vaultAddr,
		ChainID:           chainID,
		FromBlock:         fromBlock,
		ToBlock:           cfg.ToBlock,
		ProbeWidth:        cfg.ProbeWidth,
		ScanWindowBlocks:  cfg.ScanWindowBlocks,
		MergeGapThreshold: cfg.MergeGapThreshold,
		Topic0Map:         cfg.Topic0Map,
		Scan: scan.Config{
			ChunkSize:      cfg.ChunkSize,
			Concurrency:    cfg.Concurrency,
			ChunkDelay:     cfg.ChunkDelay,
			MaxEventBudget: cfg.MaxEventBudget,
			MaxRetries:     cfg.MaxRetries,
			RetryBackoff:   cfg.RetryBackoff,
		},
	}, chainClient, blocks, logger)
	if err != nil {
		return err
	}

	logger.Info("analyze start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("vault", vaultAddr.Hex()),
		zap.Uint64("chain_id", chainID),
		zap.Uint64("from", fromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.String("out", cfg.Out),
		zap.Bool("subgraph", blocks != nil),
	)

	report, runErr := analyzer.Run(ctx)
	if runErr != nil && !errors.Is(runErr, analyze.ErrEmptyLedger) {
		return runErr
	}
	if errors.Is(runErr, analyze.ErrEmptyLedger) {
		logger.Warn("run produced an empty ledger", zap.String("run_id", report.RunID.String()))
	}

	if meta, err := vault.FetchMetadata(ctx, chainClient, vaultAddr, logger); err == nil {
		report.Meta = &meta
		if meta.TotalAssets != "" {
			if total, ok := new(big.Int).SetString(meta.TotalAssets, 10); ok {
				logger.Info("vault metadata",
					zap.String("symbol", meta.Symbol),
					zap.String("asset", meta.Asset),
					zap.String("total_assets", vault.FormatUnits(total, meta.Decimals)),
				)
			}
		}
	} else {
		logger.Warn("vault metadata fetch failed", zap.Error(err))
	}

	sinks := []storage.ReportSink{storage.NewJsonlStorage(cfg.Out)}
	if pgStore != nil {
		sinks = append(sinks, pgStore)
	}
	for _, sink := range sinks {
		if err := sink.PutReport(ctx, report); err != nil {
			return fmt.Errorf("store report: %w", err)
		}
	}

	if err := stateStore.Save(storage.RunState{
		Vault:             vaultAddr.Hex(),
		LastAnalyzedBlock: report.ToBlock,
		LastRunID:         report.RunID.String(),
	}); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	if pgStore != nil {
		if err := pgStore.SaveState(ctx, vaultAddr.Hex(), report.ToBlock); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
	}

	logger.Info("analyze complete",
		zap.String("run_id", report.RunID.String()),
		zap.Int("positions", len(report.Positions)),
		zap.Bool("fallback_window", report.FallbackWindow),
		zap.Bool("inferred", report.Inferred),
		zap.Bool("truncated", report.Truncated),
	)
	return runErr
}

// resumeBlock picks the starting block: explicit --from wins, then the
// Postgres state row, then the local state file.
func resumeBlock(ctx context.Context, cfg config.Config, stateStore *storage.StateStore, pgStore *postgres.Store, vaultAddr common.Address) (uint64, error) {
	if cfg.FromBlock != 0 {
		return cfg.FromBlock, nil
	}

	if pgStore != nil {
		block, found, err := pgStore.LoadState(ctx, vaultAddr.Hex())
		if err != nil {
			return 0, fmt.Errorf("load state: %w", err)
		}
		if found {
			return storage.ResumeFrom(0, storage.RunState{
				Vault:             vaultAddr.Hex(),
				LastAnalyzedBlock: block,
			}, true, vaultAddr.Hex()), nil
		}
	}

	state, found, err := stateStore.Load()
	if err != nil {
		return 0, fmt.Errorf("load state: %w", err)
	}
	return storage.ResumeFrom(0, state, found, vaultAddr.Hex()), nil
}
