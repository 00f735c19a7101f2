package main

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"autoRepay/internal/config"
	"autoRepay/internal/dex"
	"autoRepay/internal/model"
	"autoRepay/internal/protocol"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext()
	defer stop()

	client, err := dial(ctx, cfg.Config)
	if err != nil {
		return err
	}
	defer client.Close()

	registry, err := protocol.NewRegistry(client, cfg.DataProvider)
	if err != nil {
		return err
	}
	fromTokens, err := registry.ReserveTokens(ctx, cfg.From)
	if err != nil {
		return fmt.Errorf("from reserve: %w", err)
	}
	toTokens, err := registry.ReserveTokens(ctx, cfg.To)
	if err != nil {
		return fmt.Errorf("to reserve: %w", err)
	}

	router := dex.NewRouter(client, cfg.Router, logger)
	selector := dex.NewSelector(router, dex.NewEnumerator(cfg.Hubs, cfg.Overrides), nil, logger)
	out := cmd.OutOrStdout()

	if cfg.From == cfg.To {
		best, err := selector.Best(ctx, cfg.Amount, cfg.Direction, cfg.From, fromTokens.Wrapped, cfg.To, toTokens.Wrapped)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "same asset, no swap needed: %s\n", formatAmount(cfg.Config, cfg.From, best.Amount))
		return nil
	}

	candidates := dex.NewEnumerator(cfg.Hubs, cfg.Overrides).Enumerate(cfg.From, fromTokens.Wrapped, cfg.To, toTokens.Wrapped)
	candidates = filterWrapped(candidates, cfg.FromWrapped, cfg.ToWrapped)
	if len(candidates) == 0 {
		return fmt.Errorf("no candidate paths for %s -> %s", cfg.Assets.Label(cfg.From), cfg.Assets.Label(cfg.To))
	}

	quoted := cfg.From
	if cfg.Direction == model.ExactIn {
		quoted = cfg.To
	}
	fmt.Fprintf(out, "%s quotes for %s:\n", cfg.Direction, formatAmount(cfg.Config, amountAsset(cfg), cfg.Amount))
	quotes, err := selector.QuoteAll(ctx, cfg.Amount, cfg.Direction, candidates)
	if err != nil {
		return err
	}
	for _, q := range quotes {
		if !q.Result.Viable {
			fmt.Fprintf(out, "  %-60s  not viable\n", pathLabel(cfg.Config, q.Path))
			continue
		}
		fmt.Fprintf(out, "  %-60s  %s\n", pathLabel(cfg.Config, q.Path), formatAmount(cfg.Config, quoted, q.Result.Amount))
	}

	best, err := dex.Pick(cfg.Direction, quotes)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "best: %s  %s\n", pathLabel(cfg.Config, best.Path), formatAmount(cfg.Config, quoted, best.Amount))
	return nil
}

func filterWrapped(paths []model.SwapPath, fromWrapped, toWrapped bool) []model.SwapPath {
	if !fromWrapped && !toWrapped {
		return paths
	}
	out := paths[:0:0]
	for _, p := range paths {
		if fromWrapped && !p.UseATokenAsFrom {
			continue
		}
		if toWrapped && !p.UseATokenAsTo {
			continue
		}
		out = append(out, p)
	}
	return out
}

func amountAsset(cfg config.QuoteConfig) common.Address {
	if cfg.Direction == model.ExactIn {
		return cfg.From
	}
	return cfg.To
}

func pathLabel(cfg config.Config, path model.SwapPath) string {
	if path.IsNoop() {
		return "noop"
	}
	parts := make([]string, 0, len(path.Assets))
	for i, addr := range path.Assets {
		name := label(cfg, addr)
		if (i == 0 && path.UseATokenAsFrom) || (i == len(path.Assets)-1 && path.UseATokenAsTo) {
			name = "wrapped(" + name + ")"
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, " > ")
}

func label(cfg config.Config, addr common.Address) string {
	if asset, ok := cfg.Assets.Find(addr); ok {
		return asset.Symbol
	}
	for name, known := range config.Presets[cfg.Network].Labels {
		if known == addr {
			return name
		}
	}
	return addr.Hex()
}

func formatAmount(cfg config.Config, asset common.Address, amount *big.Int) string {
	if amount == nil {
		return "-"
	}
	decimals := int32(18)
	if a, ok := cfg.Assets.Find(asset); ok {
		decimals = int32(a.Decimals)
	}
	return decimal.NewFromBigInt(amount, -decimals).String() + " " + cfg.Assets.Label(asset)
}
