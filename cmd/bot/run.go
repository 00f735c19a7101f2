package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autoRepay/internal/chain"
	"autoRepay/internal/config"
	"autoRepay/internal/executor"
	"autoRepay/internal/indexer"
	"autoRepay/internal/metrics"
	"autoRepay/internal/monitor"
	"autoRepay/internal/protocol"
	"autoRepay/internal/rebalance"
	"autoRepay/internal/storage"
	"autoRepay/internal/storage/postgres"
)

func runBot(cmd *cobra.Command, _ []string) error {
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

	if cfg.Adapter == (common.Address{}) {
		return fmt.Errorf("adapter address is required on %s", cfg.Network)
	}

	ctx, stop := signalContext()
	defer stop()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	st, err := newStack(ctx, cfg, m, logger)
	if err != nil {
		return err
	}
	defer st.client.Close()
	cfg = st.cfg

	chainID, err := st.client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	transactor, err := chain.NewTransactor(st.client, cfg.PrivateKey, chainID, cfg.GasLimit)
	if err != nil {
		return err
	}
	if !transactor.CanSign() {
		return fmt.Errorf("private key is required (set AUTOREPAY_PRIVATE_KEY)")
	}

	controller := executor.NewController(protocol.NewAdapter(cfg.Adapter, transactor), executor.Options{
		MaxAttempts:   cfg.MaxAttempts,
		Decay:         executor.PolicyByName(cfg.Decay),
		DryRunRetries: cfg.DryRunRetries,
		DryRunDelay:   cfg.DryRunDelay,
	}, m, logger)

	engine := rebalance.NewEngine(st.registry, st.selector, st.allowances, rebalance.Params{
		SlippageBps:     cfg.SlippageBps,
		FeeBps:          cfg.FeeBps,
		FlashPremiumBps: cfg.FlashPremiumBps,
	}, logger)

	decoder, err := protocol.NewThresholdDecoder()
	if err != nil {
		return err
	}
	scanner := indexer.NewScanner(indexer.ScanConfig{
		Adapter:      cfg.Adapter,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, st.client, decoder, logger)

	state, sink, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	bot := monitor.New(monitor.Config{
		Assets:       cfg.Assets,
		StartBlock:   cfg.StartBlock,
		PollInterval: cfg.PollInterval,
		Concurrency:  cfg.Concurrency,
		RiskTopN:     cfg.RiskTopN,
	}, monitor.Deps{
		Scanner:   scanner,
		State:     state,
		Positions: st.fetcher,
		Prices:    st.oracle,
		Settings:  st.allowances,
		Flows:     engine,
		Executor:  controller,
		Sink:      sink,
		Metrics:   m,
		Logger:    logger,
	})
	if err := bot.Restore(ctx); err != nil {
		return err
	}

	logger.Info("bot start",
		zap.String("network", cfg.Network),
		zap.String("rpc", cfg.RPCURL),
		zap.String("bot", transactor.From().Hex()),
		zap.String("adapter", cfg.Adapter.Hex()),
		zap.String("lending_pool", st.fetcher.LendingPool().Hex()),
		zap.Int("assets", len(cfg.Assets)),
		zap.Int("hubs", len(cfg.Hubs)),
		zap.Uint64("from", bot.NextBlock()),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.String("decay", cfg.Decay),
	)

	err = bot.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("bot stopped")
		return nil
	}
	return err
}

// openStorage picks the state store and outcome sinks. Postgres, when
// configured, backs the state and receives outcomes next to the JSONL file.
func openStorage(ctx context.Context, cfg config.Config) (indexer.StateStore, storage.Sink, func(), error) {
	var sinks storage.Multi
	if cfg.OutcomesFile != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.OutcomesFile))
	}
	if cfg.PGDSN == "" {
		return &indexer.FileStateStore{Path: cfg.StateFile}, sinks, func() {}, nil
	}

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}
	sinks = append(sinks, store)
	state := &indexer.DBStateStore{Store: store, Name: "health_factor_set:" + cfg.Network + ":" + cfg.Adapter.Hex()}
	return state, sinks, store.Close, nil
}
