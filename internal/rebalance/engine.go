package rebalance

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"autoRepay/internal/model"
)

var (
	// ErrNoEligibleCollateral means no position can fund a repay.
	ErrNoEligibleCollateral = errors.New("no eligible collateral")
	// ErrNoDebt means the borrower owes nothing that can be repaid.
	ErrNoDebt = errors.New("no debt to repay")
	// ErrZeroPrice means the oracle returned zero for a priced asset.
	ErrZeroPrice = errors.New("zero asset price")
)

var wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Prices maps asset addresses to oracle prices.
type Prices map[common.Address]*big.Int

func (p Prices) of(asset common.Address) *big.Int {
	if v, ok := p[asset]; ok && v != nil {
		return v
	}
	return new(big.Int)
}

// NeedsRepay reports whether the borrower is below a configured minimum.
func NeedsRepay(account model.AccountData, th model.UserThresholds) bool {
	if !account.HasDebt() || isZero(th.Min) || account.HealthFactor == nil {
		return false
	}
	return account.HealthFactor.Cmp(th.Min) < 0
}

// NeedsBorrow reports whether the borrower is above a configured maximum.
func NeedsBorrow(account model.AccountData, th model.UserThresholds) bool {
	if isZero(th.Max) || account.HealthFactor == nil {
		return false
	}
	return account.HealthFactor.Cmp(th.Max) > 0
}

// BiggestBorrow returns the position with the largest debt value. Equal
// values keep the first position in order.
func BiggestBorrow(positions []model.Position, prices Prices) (model.Position, error) {
	var (
		best      model.Position
		bestValue *big.Int
	)
	for _, pos := range positions {
		value := new(big.Int).Mul(pos.TotalDebt(), prices.of(pos.Asset.Address))
		if value.Sign() <= 0 {
			continue
		}
		if bestValue == nil || value.Cmp(bestValue) > 0 {
			best, bestValue = pos, value
		}
	}
	if bestValue == nil {
		return model.Position{}, ErrNoDebt
	}
	return best, nil
}

// BiggestCollateral returns the collateral-enabled position with the
// largest wrapped balance value. Equal values keep the first position.
func BiggestCollateral(positions []model.Position, prices Prices) (model.Position, error) {
	var (
		best      model.Position
		bestValue *big.Int
	)
	for _, pos := range positions {
		if !pos.CollateralEnabled || pos.WrappedBalance == nil {
			continue
		}
		value := new(big.Int).Mul(pos.WrappedBalance, prices.of(pos.Asset.Address))
		if value.Sign() <= 0 {
			continue
		}
		if bestValue == nil || value.Cmp(bestValue) > 0 {
			best, bestValue = pos, value
		}
	}
	if bestValue == nil {
		return model.Position{}, ErrNoEligibleCollateral
	}
	return best, nil
}

// RepayRateMode picks the tranche to repay: stable when the variable
// balance is strictly smaller than the stable one, variable otherwise.
func RepayRateMode(pos model.Position) (model.RateMode, *big.Int) {
	stable, variable := orZero(pos.StableDebt), orZero(pos.VariableDebt)
	if variable.Cmp(stable) < 0 {
		return model.RateModeStable, new(big.Int).Set(stable)
	}
	return model.RateModeVariable, new(big.Int).Set(variable)
}

// BorrowCapacity converts the total collateral value into units of the
// borrow asset.
func BorrowCapacity(totalCollateral, borrowPrice *big.Int) (*big.Int, error) {
	if isZero(borrowPrice) {
		return nil, ErrZeroPrice
	}
	out := new(big.Int).Mul(orZero(totalCollateral), wad)
	return out.Quo(out, borrowPrice), nil
}

// RepayPlan is the repay decision for one borrower.
type RepayPlan struct {
	User       common.Address
	Collateral model.Asset
	Debt       model.Asset
	RateMode   model.RateMode
	Amount     *big.Int
}

// BorrowPlan is the borrow decision for one borrower.
type BorrowPlan struct {
	User            common.Address
	Collateral      model.Asset
	Debt            model.Asset
	RateMode        model.RateMode
	Amount          *big.Int
	BorrowPrice     *big.Int
	CollateralPrice *big.Int
}

// PlanRepay chooses the debt to repay and the collateral to fund it.
func PlanRepay(snap model.Snapshot, prices Prices) (RepayPlan, error) {
	debt, err := BiggestBorrow(snap.Positions, prices)
	if err != nil {
		return RepayPlan{}, err
	}
	collateral, err := BiggestCollateral(snap.Positions, prices)
	if err != nil {
		return RepayPlan{}, err
	}
	mode, amount := RepayRateMode(debt)
	if amount.Sign() == 0 {
		return RepayPlan{}, fmt.Errorf("%w: empty %s tranche of %s", ErrNoDebt, mode, debt.Asset.Symbol)
	}
	return RepayPlan{
		User:       snap.User,
		Collateral: collateral.Asset,
		Debt:       debt.Asset,
		RateMode:   mode,
		Amount:     amount,
	}, nil
}

// PlanBorrow sizes a borrow against the borrower's total collateral. The
// borrower's preferred pair is used when it names configured reserves;
// otherwise the biggest collateral and biggest borrow are used.
func PlanBorrow(snap model.Snapshot, prices Prices, th model.UserThresholds) (BorrowPlan, error) {
	collateral, ok := snap.Position(th.CollateralAsset)
	if !ok {
		pos, err := BiggestCollateral(snap.Positions, prices)
		if err != nil {
			return BorrowPlan{}, err
		}
		collateral = pos
	}
	debt, ok := snap.Position(th.BorrowAsset)
	if !ok {
		pos, err := BiggestBorrow(snap.Positions, prices)
		if err != nil {
			return BorrowPlan{}, err
		}
		debt = pos
	}

	borrowPrice := prices.of(debt.Asset.Address)
	collateralPrice := prices.of(collateral.Asset.Address)
	if collateralPrice.Sign() == 0 {
		return BorrowPlan{}, fmt.Errorf("%w: %s", ErrZeroPrice, collateral.Asset.Symbol)
	}
	amount, err := BorrowCapacity(snap.Account.TotalCollateral, borrowPrice)
	if err != nil {
		return BorrowPlan{}, fmt.Errorf("%w: %s", err, debt.Asset.Symbol)
	}
	if amount.Sign() == 0 {
		return BorrowPlan{}, ErrNoEligibleCollateral
	}

	mode := th.RateMode
	if mode != model.RateModeStable {
		mode = model.RateModeVariable
	}
	return BorrowPlan{
		User:            snap.User,
		Collateral:      collateral.Asset,
		Debt:            debt.Asset,
		RateMode:        mode,
		Amount:          amount,
		BorrowPrice:     new(big.Int).Set(borrowPrice),
		CollateralPrice: new(big.Int).Set(collateralPrice),
	}, nil
}

func isZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
