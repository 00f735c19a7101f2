package main

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autoRepay/internal/config"
	"autoRepay/internal/indexer"
	"autoRepay/internal/protocol"
)

func runScan(cmd *cobra.Command, _ []string) error {
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

	client, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	decoder, err := protocol.NewThresholdDecoder()
	if err != nil {
		return err
	}
	scanner := indexer.NewScanner(indexer.ScanConfig{
		Adapter:      cfg.Adapter,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, client, decoder, logger)

	logger.Info("scan start", zap.String("adapter", cfg.Adapter.Hex()), zap.Uint64("from", cfg.StartBlock))
	events, reached, err := scanner.Scan(ctx, cfg.StartBlock)
	if err != nil {
		return err
	}

	book := indexer.NewBook()
	book.Apply(events)
	logger.Info("scan complete", zap.Int("events", len(events)), zap.Int("users", book.Len()), zap.Uint64("reached", reached))

	store := &indexer.FileStateStore{Path: cfg.StateFile}
	if err := store.Save(ctx, indexer.State{LastBlock: reached, Thresholds: book.Settings()}); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, setting := range book.Settings() {
		if err := enc.Encode(setting); err != nil {
			return err
		}
	}
	return nil
}
