package main

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"autoRepay/internal/config"
	"autoRepay/internal/model"
	"autoRepay/internal/monitor"
	"autoRepay/internal/rebalance"
)

type positionReport struct {
	Asset             string `json:"asset"`
	WrappedBalance    string `json:"wrapped_balance"`
	StableDebt        string `json:"stable_debt"`
	VariableDebt      string `json:"variable_debt"`
	CollateralEnabled bool   `json:"collateral_enabled"`
}

type planReport struct {
	Direction  model.Direction `json:"direction"`
	Collateral string          `json:"collateral"`
	Debt       string          `json:"debt"`
	RateMode   string          `json:"rate_mode"`
	Amount     string          `json:"amount"`
	Error      string          `json:"error,omitempty"`
}

type inspectReport struct {
	User            string           `json:"user"`
	HealthFactor    string           `json:"health_factor"`
	TotalCollateral string           `json:"total_collateral"`
	TotalDebt       string           `json:"total_debt"`
	MinHealthFactor string           `json:"min_health_factor"`
	MaxHealthFactor string           `json:"max_health_factor"`
	RateMode        string           `json:"rate_mode"`
	Positions       []positionReport `json:"positions"`
	Plan            *planReport      `json:"plan,omitempty"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	userHex, _ := cmd.Flags().GetString("user")
	if !common.IsHexAddress(userHex) {
		return fmt.Errorf("invalid user address: %q", userHex)
	}
	user := common.HexToAddress(userHex)

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext()
	defer stop()

	st, err := newStack(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer st.client.Close()
	cfg = st.cfg

	snap, err := st.fetcher.Snapshot(ctx, user)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	prices, err := st.oracle.PriceMap(ctx, cfg.Assets.Addresses())
	if err != nil {
		return fmt.Errorf("prices: %w", err)
	}
	th, err := st.allowances.UserSettings(ctx, user)
	if err != nil {
		return fmt.Errorf("user settings: %w", err)
	}

	report := inspectReport{
		User:            user.Hex(),
		HealthFactor:    monitor.FormatHealthFactor(snap.Account.HealthFactor),
		TotalCollateral: bigString(snap.Account.TotalCollateral),
		TotalDebt:       bigString(snap.Account.TotalDebt),
		MinHealthFactor: monitor.FormatHealthFactor(th.Min),
		MaxHealthFactor: monitor.FormatHealthFactor(th.Max),
		RateMode:        th.RateMode.String(),
	}
	for _, pos := range snap.Positions {
		report.Positions = append(report.Positions, positionReport{
			Asset:             pos.Asset.Symbol,
			WrappedBalance:    formatAmount(cfg, pos.Asset.Address, pos.WrappedBalance),
			StableDebt:        formatAmount(cfg, pos.Asset.Address, pos.StableDebt),
			VariableDebt:      formatAmount(cfg, pos.Asset.Address, pos.VariableDebt),
			CollateralEnabled: pos.CollateralEnabled,
		})
	}

	switch {
	case rebalance.NeedsRepay(snap.Account, th):
		plan, err := rebalance.PlanRepay(snap, rebalance.Prices(prices))
		report.Plan = &planReport{Direction: model.DirectionRepay}
		if err != nil {
			report.Plan.Error = err.Error()
			break
		}
		fillPlan(report.Plan, cfg, plan.Collateral, plan.Debt, plan.RateMode, plan.Amount)
	case rebalance.NeedsBorrow(snap.Account, th):
		plan, err := rebalance.PlanBorrow(snap, rebalance.Prices(prices), th)
		report.Plan = &planReport{Direction: model.DirectionBorrow}
		if err != nil {
			report.Plan.Error = err.Error()
			break
		}
		fillPlan(report.Plan, cfg, plan.Collateral, plan.Debt, plan.RateMode, plan.Amount)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func fillPlan(r *planReport, cfg config.Config, collateral, debt model.Asset, mode model.RateMode, amount *big.Int) {
	r.Collateral = collateral.Symbol
	r.Debt = debt.Symbol
	r.RateMode = mode.String()
	r.Amount = formatAmount(cfg, debt.Address, amount)
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
