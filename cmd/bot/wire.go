package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"autoRepay/internal/chain"
	"autoRepay/internal/config"
	"autoRepay/internal/dex"
	"autoRepay/internal/metrics"
	"autoRepay/internal/protocol"
)

// stack is the read side shared by every command.
type stack struct {
	client     *chain.Client
	cfg        config.Config
	fetcher    *protocol.Fetcher
	oracle     *protocol.Oracle
	registry   *protocol.Registry
	allowances *protocol.Allowances
	router     *dex.Router
	enumerator *dex.Enumerator
	selector   *dex.Selector
}

func dial(ctx context.Context, cfg config.Config) (*chain.Client, error) {
	client, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{
		RequestsPerSecond: cfg.RPCRate,
		CallTimeout:       cfg.RPCTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	return client, nil
}

// newStack dials the RPC, checks the asset set against chain and resolves
// the lending pool. The caller closes s.client.
func newStack(ctx context.Context, cfg config.Config, m *metrics.Metrics, logger *zap.Logger) (*stack, error) {
	client, err := dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &stack{client: client}
	fail := func(err error) (*stack, error) {
		client.Close()
		return nil, err
	}

	assets, err := protocol.VerifyAssets(ctx, client, cfg.Assets, logger)
	if err != nil {
		return fail(fmt.Errorf("verify assets: %w", err))
	}
	cfg.Assets = assets
	s.cfg = cfg

	var batch protocol.BatchCaller
	if cfg.Multicall != (common.Address{}) {
		mc, err := chain.NewMulticaller(client, cfg.Multicall)
		if err != nil {
			return fail(err)
		}
		batch = mc
	}

	s.fetcher = protocol.NewFetcher(client, batch, cfg.AddressesProvider, cfg.DataProvider, assets, logger)
	if err := s.fetcher.Resolve(ctx); err != nil {
		return fail(fmt.Errorf("resolve lending pool: %w", err))
	}
	s.oracle = protocol.NewOracle(client, s.fetcher.PriceOracle)
	if s.registry, err = protocol.NewRegistry(client, cfg.DataProvider); err != nil {
		return fail(err)
	}
	s.allowances = protocol.NewAllowances(client, cfg.Adapter)
	s.router = dex.NewRouter(client, cfg.Router, logger)
	s.enumerator = dex.NewEnumerator(cfg.Hubs, cfg.Overrides)
	s.selector = dex.NewSelector(s.router, s.enumerator, m, logger)
	return s, nil
}
