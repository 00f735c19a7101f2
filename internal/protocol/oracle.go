package protocol

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Oracle reads asset prices in the protocol's common unit.
type Oracle struct {
	caller  Caller
	address func() common.Address
}

// NewOracle binds an oracle to an address getter, so it follows the address
// resolved by a Fetcher.
func NewOracle(caller Caller, address func() common.Address) *Oracle {
	return &Oracle{caller: caller, address: address}
}

// Prices returns prices parallel to assets.
func (o *Oracle) Prices(ctx context.Context, assets []common.Address) ([]*big.Int, error) {
	if len(assets) == 0 {
		return []*big.Int{}, nil
	}
	addr := o.address()
	if addr == (common.Address{}) {
		return nil, errors.New("price oracle not resolved")
	}
	parsed, err := priceOracleABI.get()
	if err != nil {
		return nil, fmt.Errorf("parse price oracle abi: %w", err)
	}
	values, err := callMethod(ctx, o.caller, addr, parsed, "getAssetsPrices", assets)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected getAssetsPrices output length %d", len(values))
	}
	raw, ok := values[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected getAssetsPrices output type %T", values[0])
	}
	if len(raw) != len(assets) {
		return nil, fmt.Errorf("oracle returned %d prices for %d assets", len(raw), len(assets))
	}
	out := make([]*big.Int, len(raw))
	for i, p := range raw {
		out[i] = new(big.Int).Set(p)
	}
	return out, nil
}

// PriceMap returns prices keyed by asset address.
func (o *Oracle) PriceMap(ctx context.Context, assets []common.Address) (map[common.Address]*big.Int, error) {
	prices, err := o.Prices(ctx, assets)
	if err != nil {
		return nil, err
	}
	out := make(map[common.Address]*big.Int, len(assets))
	for i, asset := range assets {
		out[asset] = prices[i]
	}
	return out, nil
}
