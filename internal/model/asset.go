package model

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Asset is a reserve tracked by the lending protocol.
type Asset struct {
	Symbol   string         `json:"symbol" mapstructure:"symbol"`
	Address  common.Address `json:"address" mapstructure:"address"`
	Decimals uint8          `json:"decimals" mapstructure:"decimals"`
}

// ReserveTokens are the protocol tokens minted against a reserve.
type ReserveTokens struct {
	Wrapped      common.Address `json:"wrapped"`
	StableDebt   common.Address `json:"stable_debt"`
	VariableDebt common.Address `json:"variable_debt"`
}

// DebtToken returns the debt token that tracks the given rate mode.
func (r ReserveTokens) DebtToken(mode RateMode) common.Address {
	if mode == RateModeStable {
		return r.StableDebt
	}
	return r.VariableDebt
}

// AssetSet is an ordered, address-indexed list of assets.
type AssetSet []Asset

// Addresses returns the asset addresses in configured order.
func (s AssetSet) Addresses() []common.Address {
	out := make([]common.Address, 0, len(s))
	for _, asset := range s {
		out = append(out, asset.Address)
	}
	return out
}

// Find looks an asset up by address.
func (s AssetSet) Find(address common.Address) (Asset, bool) {
	for _, asset := range s {
		if asset.Address == address {
			return asset, true
		}
	}
	return Asset{}, false
}

// BySymbol looks an asset up by case-insensitive symbol.
func (s AssetSet) BySymbol(symbol string) (Asset, bool) {
	for _, asset := range s {
		if strings.EqualFold(asset.Symbol, symbol) {
			return asset, true
		}
	}
	return Asset{}, false
}

// Label returns the symbol for a known address, or its hex form.
func (s AssetSet) Label(address common.Address) string {
	if asset, ok := s.Find(address); ok && asset.Symbol != "" {
		return asset.Symbol
	}
	return address.Hex()
}
