package protocol

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"autoRepay/internal/chain"
	"autoRepay/internal/model"
)

// noDebtHealthFactor is the lower bound of the sentinel the lending pool
// reports for accounts without debt.
var noDebtHealthFactor = new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)

// IsNoDebtHealthFactor reports whether hf is the "no debt" sentinel.
func IsNoDebtHealthFactor(hf *big.Int) bool {
	return hf != nil && hf.Cmp(noDebtHealthFactor) >= 0
}

// BatchCaller executes multicall batches.
type BatchCaller interface {
	Execute(ctx context.Context, calls []chain.Call, blockNumber *big.Int) ([]chain.Result, error)
}

// Fetcher reads borrower positions from the lending protocol. It never caches.
type Fetcher struct {
	caller            Caller
	batch             BatchCaller
	addressesProvider common.Address
	dataProvider      common.Address
	assets            model.AssetSet
	logger            *zap.Logger

	lendingPool common.Address
	priceOracle common.Address
}

// NewFetcher builds a Fetcher. batch may be nil to read sequentially.
func NewFetcher(caller Caller, batch BatchCaller, addressesProvider, dataProvider common.Address, assets model.AssetSet, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		caller:            caller,
		batch:             batch,
		addressesProvider: addressesProvider,
		dataProvider:      dataProvider,
		assets:            assets,
		logger:            logger,
	}
}

// Resolve loads the lending pool and price oracle addresses.
func (f *Fetcher) Resolve(ctx context.Context) error {
	parsed, err := addressesProviderABI.get()
	if err != nil {
		return fmt.Errorf("parse addresses provider abi: %w", err)
	}

	values, err := callMethod(ctx, f.caller, f.addressesProvider, parsed, "getLendingPool")
	if err != nil {
		return err
	}
	if f.lendingPool, err = asAddress(values[0]); err != nil {
		return fmt.Errorf("lending pool: %w", err)
	}

	values, err = callMethod(ctx, f.caller, f.addressesProvider, parsed, "getPriceOracle")
	if err != nil {
		return err
	}
	if f.priceOracle, err = asAddress(values[0]); err != nil {
		return fmt.Errorf("price oracle: %w", err)
	}

	f.logger.Info("resolved protocol addresses",
		zap.String("lending_pool", f.lendingPool.Hex()),
		zap.String("price_oracle", f.priceOracle.Hex()),
	)
	return nil
}

// LendingPool returns the resolved lending pool address.
func (f *Fetcher) LendingPool() common.Address {
	return f.lendingPool
}

// PriceOracle returns the resolved price oracle address.
func (f *Fetcher) PriceOracle() common.Address {
	return f.priceOracle
}

// AccountData reads the aggregate account view of a borrower.
func (f *Fetcher) AccountData(ctx context.Context, user common.Address) (model.AccountData, error) {
	if f.lendingPool == (common.Address{}) {
		return model.AccountData{}, errors.New("lending pool not resolved")
	}
	parsed, err := lendingPoolABI.get()
	if err != nil {
		return model.AccountData{}, fmt.Errorf("parse lending pool abi: %w", err)
	}
	values, err := callMethod(ctx, f.caller, f.lendingPool, parsed, "getUserAccountData", user)
	if err != nil {
		return model.AccountData{}, err
	}
	return decodeAccountData(values)
}

// Snapshot reads every configured reserve for the borrower plus the
// aggregate account data.
func (f *Fetcher) Snapshot(ctx context.Context, user common.Address) (model.Snapshot, error) {
	if f.batch != nil {
		snap, err := f.snapshotBatched(ctx, user)
		if err == nil {
			return snap, nil
		}
		f.logger.Debug("batched snapshot failed, reading sequentially",
			zap.String("user", user.Hex()), zap.Error(err))
	}
	return f.snapshotSequential(ctx, user)
}

func (f *Fetcher) snapshotSequential(ctx context.Context, user common.Address) (model.Snapshot, error) {
	parsed, err := dataProviderABI.get()
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("parse data provider abi: %w", err)
	}

	snap := model.Snapshot{User: user, Positions: make([]model.Position, 0, len(f.assets))}
	for _, asset := range f.assets {
		values, err := callMethod(ctx, f.caller, f.dataProvider, parsed, "getUserReserveData", asset.Address, user)
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("reserve %s: %w", asset.Symbol, err)
		}
		pos, err := decodePosition(asset, values)
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("reserve %s: %w", asset.Symbol, err)
		}
		snap.Positions = append(snap.Positions, pos)
	}

	account, err := f.AccountData(ctx, user)
	if err != nil {
		return model.Snapshot{}, err
	}
	snap.Account = account
	return snap, nil
}

func (f *Fetcher) snapshotBatched(ctx context.Context, user common.Address) (model.Snapshot, error) {
	if f.lendingPool == (common.Address{}) {
		return model.Snapshot{}, errors.New("lending pool not resolved")
	}
	providerABI, err := dataProviderABI.get()
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("parse data provider abi: %w", err)
	}
	poolABI, err := lendingPoolABI.get()
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("parse lending pool abi: %w", err)
	}

	calls := make([]chain.Call, 0, len(f.assets)+1)
	for _, asset := range f.assets {
		data, err := providerABI.Pack("getUserReserveData", asset.Address, user)
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("pack getUserReserveData: %w", err)
		}
		calls = append(calls, chain.Call{Target: f.dataProvider, CallData: data})
	}
	data, err := poolABI.Pack("getUserAccountData", user)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("pack getUserAccountData: %w", err)
	}
	calls = append(calls, chain.Call{Target: f.lendingPool, CallData: data})

	results, err := f.batch.Execute(ctx, calls, nil)
	if err != nil {
		return model.Snapshot{}, err
	}
	if len(results) != len(calls) {
		return model.Snapshot{}, fmt.Errorf("expected %d results, got %d", len(calls), len(results))
	}

	snap := model.Snapshot{User: user, Positions: make([]model.Position, 0, len(f.assets))}
	for i, asset := range f.assets {
		values, err := unpackResult(providerABI, "getUserReserveData", results[i])
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("reserve %s: %w", asset.Symbol, err)
		}
		pos, err := decodePosition(asset, values)
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("reserve %s: %w", asset.Symbol, err)
		}
		snap.Positions = append(snap.Positions, pos)
	}

	values, err := unpackResult(poolABI, "getUserAccountData", results[len(results)-1])
	if err != nil {
		return model.Snapshot{}, err
	}
	if snap.Account, err = decodeAccountData(values); err != nil {
		return model.Snapshot{}, err
	}
	return snap, nil
}

func unpackResult(parsed abi.ABI, method string, result chain.Result) ([]interface{}, error) {
	if !result.Success {
		return nil, fmt.Errorf("%s failed in batch", method)
	}
	values, err := parsed.Unpack(method, result.ReturnData)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func decodeAccountData(values []interface{}) (model.AccountData, error) {
	ints, err := asBigInts(values, 6)
	if err != nil {
		return model.AccountData{}, fmt.Errorf("account data: %w", err)
	}
	return model.AccountData{
		TotalCollateral:      ints[0],
		TotalDebt:            ints[1],
		AvailableBorrows:     ints[2],
		LiquidationThreshold: ints[3],
		LTV:                  ints[4],
		HealthFactor:         ints[5],
	}, nil
}

func decodePosition(asset model.Asset, values []interface{}) (model.Position, error) {
	if len(values) < 9 {
		return model.Position{}, fmt.Errorf("expected 9 values, got %d", len(values))
	}
	ints, err := asBigInts(values, 6)
	if err != nil {
		return model.Position{}, err
	}
	enabled, ok := values[8].(bool)
	if !ok {
		return model.Position{}, fmt.Errorf("unsupported bool type %T", values[8])
	}
	return model.Position{
		Asset:             asset,
		WrappedBalance:    ints[0],
		StableDebt:        ints[1],
		VariableDebt:      ints[2],
		StableBorrowRate:  ints[5],
		CollateralEnabled: enabled,
	}, nil
}
