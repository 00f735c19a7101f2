package protocol

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"

	"autoRepay/internal/model"
)

const registryCacheSize = 64

// Registry resolves the wrapped and debt tokens of a reserve. Results are
// cached for the lifetime of the process.
type Registry struct {
	caller       Caller
	dataProvider common.Address
	cache        *lru.Cache
}

// NewRegistry builds a Registry backed by the protocol data provider.
func NewRegistry(caller Caller, dataProvider common.Address) (*Registry, error) {
	cache, err := lru.New(registryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create reserve cache: %w", err)
	}
	return &Registry{caller: caller, dataProvider: dataProvider, cache: cache}, nil
}

// ReserveTokens returns the protocol tokens for a reserve asset.
func (r *Registry) ReserveTokens(ctx context.Context, asset common.Address) (model.ReserveTokens, error) {
	if cached, ok := r.cache.Get(asset); ok {
		return cached.(model.ReserveTokens), nil
	}

	parsed, err := dataProviderABI.get()
	if err != nil {
		return model.ReserveTokens{}, fmt.Errorf("parse data provider abi: %w", err)
	}
	values, err := callMethod(ctx, r.caller, r.dataProvider, parsed, "getReserveTokensAddresses", asset)
	if err != nil {
		return model.ReserveTokens{}, err
	}
	if len(values) != 3 {
		return model.ReserveTokens{}, fmt.Errorf("unexpected getReserveTokensAddresses output length %d", len(values))
	}

	var tokens model.ReserveTokens
	if tokens.Wrapped, err = asAddress(values[0]); err != nil {
		return model.ReserveTokens{}, fmt.Errorf("wrapped token: %w", err)
	}
	if tokens.StableDebt, err = asAddress(values[1]); err != nil {
		return model.ReserveTokens{}, fmt.Errorf("stable debt token: %w", err)
	}
	if tokens.VariableDebt, err = asAddress(values[2]); err != nil {
		return model.ReserveTokens{}, fmt.Errorf("variable debt token: %w", err)
	}
	if tokens.Wrapped == (common.Address{}) {
		return model.ReserveTokens{}, fmt.Errorf("asset %s is not a reserve", asset.Hex())
	}

	r.cache.Add(asset, tokens)
	return tokens, nil
}
