package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"autoRepay/internal/model"
)

// QuoteConfig holds configuration for the one-shot quote command.
type QuoteConfig struct {
	Config
	From        common.Address
	FromWrapped bool
	To          common.Address
	ToWrapped   bool
	Amount      *big.Int
	Direction   model.QuoteDirection
}

// LoadQuote merges the shared configuration with the quote request flags.
// The amount is given in whole tokens and scaled by the from asset's decimals
// for exact-in quotes, by the to asset's decimals for exact-out quotes.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return QuoteConfig{}, err
	}
	base, err := fromViper(v)
	if err != nil {
		return QuoteConfig{}, err
	}

	cfg := QuoteConfig{
		Config:      base,
		FromWrapped: v.GetBool("from-wrapped"),
		ToWrapped:   v.GetBool("to-wrapped"),
	}

	labels := Presets[base.Network].Labels
	if cfg.From, err = resolve(base.Assets, labels, v.GetString("from")); err != nil {
		return QuoteConfig{}, fmt.Errorf("from: %w", err)
	}
	if cfg.To, err = resolve(base.Assets, labels, v.GetString("to")); err != nil {
		return QuoteConfig{}, fmt.Errorf("to: %w", err)
	}

	switch strings.ToLower(v.GetString("direction")) {
	case "", "exact-out", "repay":
		cfg.Direction = model.ExactOut
	case "exact-in", "borrow":
		cfg.Direction = model.ExactIn
	default:
		return QuoteConfig{}, fmt.Errorf("unknown direction %q", v.GetString("direction"))
	}

	scaleAsset := cfg.To
	if cfg.Direction == model.ExactIn {
		scaleAsset = cfg.From
	}
	decimals := int32(18)
	if asset, ok := base.Assets.Find(scaleAsset); ok {
		decimals = int32(asset.Decimals)
	}
	cfg.Amount, err = ParseAmount(v.GetString("amount"), decimals)
	if err != nil {
		return QuoteConfig{}, err
	}
	return cfg, nil
}

// ParseAmount converts a decimal token amount into base units.
func ParseAmount(input string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(input))
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", input, err)
	}
	if !d.IsPositive() {
		return nil, fmt.Errorf("amount must be positive, got %s", input)
	}
	return d.Shift(decimals).BigInt(), nil
}
