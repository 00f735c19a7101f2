package protocol

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"autoRepay/internal/model"
)

// Allowances reads what borrowers have delegated to the rebalancing adapter.
type Allowances struct {
	caller  Caller
	adapter common.Address
}

// NewAllowances binds allowance reads to the adapter as spender.
func NewAllowances(caller Caller, adapter common.Address) *Allowances {
	return &Allowances{caller: caller, adapter: adapter}
}

// CollateralAllowance returns the ERC20 allowance of a wrapped token.
func (a *Allowances) CollateralAllowance(ctx context.Context, token, user common.Address) (*big.Int, error) {
	return a.read(ctx, token, "allowance", user)
}

// BorrowAllowance returns the credit delegated on a debt token.
func (a *Allowances) BorrowAllowance(ctx context.Context, debtToken, user common.Address) (*big.Int, error) {
	return a.read(ctx, debtToken, "borrowAllowance", user)
}

func (a *Allowances) read(ctx context.Context, token common.Address, method string, user common.Address) (*big.Int, error) {
	parsed, err := tokenABI.get()
	if err != nil {
		return nil, fmt.Errorf("parse token abi: %w", err)
	}
	values, err := callMethod(ctx, a.caller, token, parsed, method, user, a.adapter)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// UserSettings reads the adapter's stored configuration for a borrower. It
// is the only source of the preferred rate mode.
func (a *Allowances) UserSettings(ctx context.Context, user common.Address) (model.UserThresholds, error) {
	parsed, err := adapterABI.get()
	if err != nil {
		return model.UserThresholds{}, fmt.Errorf("parse adapter abi: %w", err)
	}
	values, err := callMethod(ctx, a.caller, a.adapter, parsed, "userInfos", user)
	if err != nil {
		return model.UserThresholds{}, err
	}
	ints, err := asBigInts(values, 4)
	if err != nil {
		return model.UserThresholds{}, fmt.Errorf("userInfos: %w", err)
	}
	if len(values) < 6 {
		return model.UserThresholds{}, fmt.Errorf("userInfos: expected 6 values, got %d", len(values))
	}
	collateral, err := asAddress(values[4])
	if err != nil {
		return model.UserThresholds{}, fmt.Errorf("userInfos collateral: %w", err)
	}
	borrow, err := asAddress(values[5])
	if err != nil {
		return model.UserThresholds{}, fmt.Errorf("userInfos borrow: %w", err)
	}
	return model.UserThresholds{
		Min:             ints[0],
		Target:          ints[1],
		Max:             ints[2],
		RateMode:        model.RateMode(ints[3].Uint64()),
		CollateralAsset: collateral,
		BorrowAsset:     borrow,
	}, nil
}
