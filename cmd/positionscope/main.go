package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"positionscope/internal/chain"
	"positionscope/internal/config"
	"positionscope/internal/dex"
	"positionscope/internal/fetcher"
	"positionscope/internal/pipeline"
	"positionscope/internal/prices"
	"positionscope/internal/registry"
	"positionscope/internal/resolver"
	"positionscope/internal/storage"
	"positionscope/internal/storage/postgres"
	"positionscope/internal/subgraph"

	"github.com/ethereum/go-ethereum/common"
)

func main() {
	root := &cobra.Command{
		Use:          "positionscope",
		Short:        "CL position analytics for Slipstream pools",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	scanCmd := &cobra.Command{
		Use:   "scan <owner>",
		Short: "Scan one wallet and print its enriched positions",
		Args:  cobra.ExactArgs(1),
		RunE:  runScan,
	}
	addCommonFlags(scanCmd)
	root.AddCommand(scanCmd)

	watchCmd := &cobra.Command{
		Use:   "watch <owner>",
		Short: "Refresh a wallet's positions on an interval",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	}
	addCommonFlags(watchCmd)
	watchCmd.Flags().Duration("refresh-interval", 60*time.Second, "time between refreshes")
	root.AddCommand(watchCmd)

	poolsCmd := &cobra.Command{
		Use:   "pools",
		Short: "Refresh the discovery pool cache from the subgraph",
		RunE:  runPools,
	}
	poolsCmd.Flags().String("subgraph-url", "", "CL subgraph URL")
	poolsCmd.Flags().Int("top-pools", 100, "pools to fetch, by TVL")
	poolsCmd.Flags().String("pool-cache", "./data/pool-cache.json", "pool cache file path")
	poolsCmd.Flags().String("postgres-dsn", "", "Postgres DSN for the pool cache")
	poolsCmd.Flags().Duration("http-timeout", 30*time.Second, "HTTP timeout")
	poolsCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(poolsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "chain RPC URL")
	cmd.Flags().String("subgraph-url", "", "CL subgraph URL")
	cmd.Flags().String("price-api-url", "", "token price API URL")
	cmd.Flags().String("position-manager", "", "position manager address")
	cmd.Flags().String("factory", "", "CL factory address")
	cmd.Flags().String("helper", "", "helper contract address")
	cmd.Flags().String("multicall", "", "multicall3 address")
	cmd.Flags().StringSlice("whitelist-pool", nil, "allow-listed pools, token0:token1:tickSpacing")
	cmd.Flags().String("pool-cache", "./data/pool-cache.json", "pool cache file path")
	cmd.Flags().String("postgres-dsn", "", "Postgres DSN for the pool cache")
	cmd.Flags().Int("max-pools", 100, "candidate pool cap")
	cmd.Flags().Int("batch-size", 100, "calls per multicall batch")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().Duration("cooldown", 15*time.Second, "per-owner cooldown after success")
	cmd.Flags().Duration("fail-backoff", 30*time.Second, "per-owner backoff after failure")
	cmd.Flags().Int("price-workers", 8, "concurrent price lookups")
	cmd.Flags().Duration("http-timeout", 30*time.Second, "HTTP timeout")
	cmd.Flags().String("sort-by", "value", "sort order (value, apr, daily, pair)")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runScan(cmd *cobra.Command, args []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipe, cleanup, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := pipe.Run(ctx, args[0])
	if err != nil {
		return err
	}
	pipeline.Sort(result.Positions, pipeline.SortBy(cfg.SortBy), false)
	return printJSON(result)
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipe, cleanup, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("watch start", zap.String("owner", args[0]), zap.Duration("interval", interval))
	for {
		result, err := pipe.Run(ctx, args[0])
		switch {
		case err != nil:
			logger.Warn("refresh failed", zap.Error(err))
		default:
			pipeline.Sort(result.Positions, pipeline.SortBy(cfg.SortBy), false)
			if err := printJSON(result); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func runPools(cmd *cobra.Command, _ []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	client := subgraph.New(cfg.SubgraphURL, cfg.HTTPTimeout, logger)
	pools, err := client.TopPools(ctx, cfg.TopPools)
	if err != nil {
		return fmt.Errorf("fetch top pools: %w", err)
	}
	if err := store.SavePools(ctx, pools); err != nil {
		return fmt.Errorf("save pool cache: %w", err)
	}

	logger.Info("pool cache refreshed", zap.Int("pools", len(pools)))
	return nil
}

func buildPipeline(ctx context.Context, cfg config.Config, logger *zap.Logger) (*pipeline.Pipeline, func(), error) {
	if cfg.RPCURL == "" {
		return nil, nil, fmt.Errorf("rpc url is required")
	}
	for name, addr := range map[string]string{
		"position-manager": cfg.PositionManager,
		"factory":          cfg.Factory,
		"helper":           cfg.Helper,
		"multicall":        cfg.Multicall,
	} {
		if !common.IsHexAddress(addr) {
			return nil, nil, fmt.Errorf("%s address %q is invalid", name, addr)
		}
	}

	whitelist, err := cfg.WhitelistKeys()
	if err != nil {
		return nil, nil, err
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect rpc: %w", err)
	}

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		chainClient.Close()
		return nil, nil, fmt.Errorf("read chain id: %w", err)
	}
	if cfg.ChainID != 0 && chainID.Uint64() != cfg.ChainID {
		chainClient.Close()
		return nil, nil, fmt.Errorf("rpc serves chain %s, config expects %d", chainID, cfg.ChainID)
	}
	if head, err := chainClient.LatestBlockNumber(ctx); err == nil {
		logger.Info("rpc connected", zap.Stringer("chainId", chainID), zap.Uint64("head", head))
	}

	store, storeCleanup, err := buildStore(ctx, cfg)
	if err != nil {
		chainClient.Close()
		return nil, nil, err
	}
	cleanup := func() {
		storeCleanup()
		chainClient.Close()
	}

	batcher := chain.NewMulticall(chainClient, chain.MulticallConfig{
		Contract:     common.HexToAddress(cfg.Multicall),
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, logger)

	npm := common.HexToAddress(cfg.PositionManager)
	factory := common.HexToAddress(cfg.Factory)
	helper := common.HexToAddress(cfg.Helper)

	reg := registry.New(whitelist, store, cfg.MaxPools, logger)
	res := resolver.New(batcher, reg, npm, factory, logger)
	fet := fetcher.New(batcher, npm, factory, helper, dex.NewTokenMetaCache(), logger)

	var sub *subgraph.Client
	if cfg.SubgraphURL != "" {
		sub = subgraph.New(cfg.SubgraphURL, cfg.HTTPTimeout, logger)
	}
	var pri *prices.Client
	if cfg.PriceAPIURL != "" {
		pri = prices.New(cfg.PriceAPIURL, cfg.ChainID, cfg.PriceWorkers, cfg.HTTPTimeout, logger)
	}
	limiter := pipeline.NewLimiter(cfg.Cooldown, cfg.FailBackoff)

	return pipeline.New(res, fet, sub, pri, limiter, logger), cleanup, nil
}

func buildStore(ctx context.Context, cfg config.Config) (storage.Store, func(), error) {
	if cfg.PostgresDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return store, store.Close, nil
	}
	return storage.NewFileStore(cfg.PoolCachePath), func() {}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
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
