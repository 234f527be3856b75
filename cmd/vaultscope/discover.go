package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultScope/internal/chain"
	"vaultScope/internal/config"
	"vaultScope/internal/discover"
	"vaultScope/internal/subgraph"
	"vaultScope/internal/vault"
)

func runDiscover(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDiscover(cfgFile, cmd.Flags())
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

	head, err := chainClient.CurrentBlockHeight(ctx)
	if err != nil {
		return fmt.Errorf("current block height: %w", err)
	}

	from := cfg.FromBlock
	to := cfg.ToBlock
	if to == 0 || to > head {
		to = head
	}
	if from > to {
		return fmt.Errorf("from block %d is beyond to block %d", from, to)
	}

	decoder, err := vault.NewDecoder(vault.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return err
	}
	topics := decoder.TopicSet()

	logger.Info("discover start",
		zap.String("vault", vaultAddr.Hex()),
		zap.Uint64("from", from),
		zap.Uint64("to", to),
		zap.Bool("subgraph", cfg.SubgraphURL != ""),
	)

	var ranges []discover.ActiveRange
	if cfg.SubgraphURL != "" {
		client := subgraph.NewClient(cfg.SubgraphURL, cfg.SubgraphKey)
		blocks, err := client.FetchEventBlocks(ctx, vaultAddr.Hex())
		if err != nil {
			return fmt.Errorf("indexed discovery: %w", err)
		}
		inWindow := blocks[:0:0]
		for _, block := range blocks {
			if block >= from && block <= to {
				inWindow = append(inWindow, block)
			}
		}
		ranges = discover.ClusterBlocks(inWindow, cfg.MergeGapThreshold)
	} else {
		probe := discover.NewProbe(chainClient, vaultAddr, logger)
		finder, err := discover.NewBoundaryFinder(probe, cfg.ProbeWidth, logger)
		if err != nil {
			return err
		}

		iv := discover.BlockInterval{Start: from, End: to}
		bounds, found, err := finder.FindBounds(ctx, iv, topics)
		if err != nil {
			return fmt.Errorf("find bounds: %w", err)
		}
		if found {
			subdivider := discover.NewSubdivider(probe, cfg.ChunkSize, logger)
			ranges, err = subdivider.Confirm(ctx, bounds, topics)
			if err != nil {
				return fmt.Errorf("confirm ranges: %w", err)
			}
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(ranges); err != nil {
		return fmt.Errorf("encode ranges: %w", err)
	}

	logger.Info("discover complete", zap.Int("ranges", len(ranges)))
	return nil
}
