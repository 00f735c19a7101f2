package rebalance

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"autoRepay/internal/model"
)

const bpsDenominator = 10000

// PathSelector picks the best route between two reserves.
type PathSelector interface {
	Best(ctx context.Context, amount *big.Int, direction model.QuoteDirection, from, fromWrapped, to, toWrapped common.Address) (model.CandidateQuote, error)
}

// TokenRegistry resolves reserve tokens.
type TokenRegistry interface {
	ReserveTokens(ctx context.Context, asset common.Address) (model.ReserveTokens, error)
}

// AllowanceReader reads borrower approvals granted to the adapter.
type AllowanceReader interface {
	CollateralAllowance(ctx context.Context, token, user common.Address) (*big.Int, error)
	BorrowAllowance(ctx context.Context, debtToken, user common.Address) (*big.Int, error)
}

// Params are the economic knobs of both flows, in basis points.
type Params struct {
	SlippageBps     int64
	FeeBps          int64
	FlashPremiumBps int64
}

// Engine turns plans into executable flows.
type Engine struct {
	registry   TokenRegistry
	selector   PathSelector
	allowances AllowanceReader
	params     Params
	logger     *zap.Logger
}

// NewEngine builds an Engine.
func NewEngine(registry TokenRegistry, selector PathSelector, allowances AllowanceReader, params Params, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{registry: registry, selector: selector, allowances: allowances, params: params, logger: logger}
}

// RepayFlow resolves the reserve tokens of a repay plan.
func (e *Engine) RepayFlow(ctx context.Context, plan RepayPlan) (*RepayFlow, error) {
	collateral, err := e.registry.ReserveTokens(ctx, plan.Collateral.Address)
	if err != nil {
		return nil, fmt.Errorf("collateral reserve %s: %w", plan.Collateral.Symbol, err)
	}
	debt, err := e.registry.ReserveTokens(ctx, plan.Debt.Address)
	if err != nil {
		return nil, fmt.Errorf("debt reserve %s: %w", plan.Debt.Symbol, err)
	}
	return &RepayFlow{
		plan:             plan,
		collateralTokens: collateral,
		debtTokens:       debt,
		selector:         e.selector,
		allowances:       e.allowances,
		params:           e.params,
	}, nil
}

// BorrowFlow resolves the reserve tokens of a borrow plan.
func (e *Engine) BorrowFlow(ctx context.Context, plan BorrowPlan) (*BorrowFlow, error) {
	collateral, err := e.registry.ReserveTokens(ctx, plan.Collateral.Address)
	if err != nil {
		return nil, fmt.Errorf("collateral reserve %s: %w", plan.Collateral.Symbol, err)
	}
	debt, err := e.registry.ReserveTokens(ctx, plan.Debt.Address)
	if err != nil {
		return nil, fmt.Errorf("debt reserve %s: %w", plan.Debt.Symbol, err)
	}
	return &BorrowFlow{
		plan:             plan,
		collateralTokens: collateral,
		debtTokens:       debt,
		selector:         e.selector,
		allowances:       e.allowances,
		params:           e.params,
	}, nil
}

// RepayFlow swaps collateral into debt and repays it.
type RepayFlow struct {
	plan             RepayPlan
	collateralTokens model.ReserveTokens
	debtTokens       model.ReserveTokens
	selector         PathSelector
	allowances       AllowanceReader
	params           Params
}

// Plan returns the plan the flow executes.
func (f *RepayFlow) Plan() RepayPlan {
	return f.plan
}

// Build quotes the collateral needed to repay amount. The flash-loan
// variant must also cover the flash-loan premium.
func (f *RepayFlow) Build(ctx context.Context, amount *big.Int, useFlashloan bool) (model.RebalanceIntent, error) {
	amountOut := new(big.Int).Set(amount)
	if useFlashloan {
		amountOut = addBps(amount, f.params.FlashPremiumBps)
	}

	quote, err := f.selector.Best(ctx, amountOut, model.ExactOut,
		f.plan.Collateral.Address, f.collateralTokens.Wrapped,
		f.plan.Debt.Address, f.debtTokens.Wrapped)
	if err != nil {
		return model.RebalanceIntent{}, err
	}

	maxCollateral := addBps(quote.Amount, f.params.SlippageBps)
	return model.RebalanceIntent{
		Direction:         model.DirectionRepay,
		User:              f.plan.User,
		CollateralAsset:   f.plan.Collateral.Address,
		DebtAsset:         f.plan.Debt.Address,
		CollateralAmount:  maxCollateral,
		DebtAmount:        new(big.Int).Set(amount),
		RateMode:          f.plan.RateMode,
		Path:              quote.Path,
		UseFlashloan:      useFlashloan,
		AllowanceToken:    f.collateralTokens.Wrapped,
		RequiredAllowance: addBps(maxCollateral, f.params.FeeBps),
	}, nil
}

// Allowance reads the wrapped collateral allowance.
func (f *RepayFlow) Allowance(ctx context.Context, intent model.RebalanceIntent) (*big.Int, error) {
	return f.allowances.CollateralAllowance(ctx, intent.AllowanceToken, intent.User)
}

// BorrowFlow borrows debt and swaps it into collateral.
type BorrowFlow struct {
	plan             BorrowPlan
	collateralTokens model.ReserveTokens
	debtTokens       model.ReserveTokens
	selector         PathSelector
	allowances       AllowanceReader
	params           Params
}

// Plan returns the plan the flow executes.
func (f *BorrowFlow) Plan() BorrowPlan {
	return f.plan
}

// Build picks the route with the highest output for amount and bounds the
// collateral received by the oracle price less slippage.
func (f *BorrowFlow) Build(ctx context.Context, amount *big.Int, useFlashloan bool) (model.RebalanceIntent, error) {
	if isZero(f.plan.CollateralPrice) {
		return model.RebalanceIntent{}, ErrZeroPrice
	}

	quote, err := f.selector.Best(ctx, amount, model.ExactIn,
		f.plan.Debt.Address, f.debtTokens.Wrapped,
		f.plan.Collateral.Address, f.collateralTokens.Wrapped)
	if err != nil {
		return model.RebalanceIntent{}, err
	}

	minOut := new(big.Int).Mul(amount, f.plan.BorrowPrice)
	minOut.Quo(minOut, f.plan.CollateralPrice)
	minOut = subBps(minOut, f.params.SlippageBps)

	return model.RebalanceIntent{
		Direction:         model.DirectionBorrow,
		User:              f.plan.User,
		CollateralAsset:   f.plan.Collateral.Address,
		DebtAsset:         f.plan.Debt.Address,
		CollateralAmount:  minOut,
		DebtAmount:        new(big.Int).Set(amount),
		RateMode:          f.plan.RateMode,
		Path:              quote.Path,
		UseFlashloan:      useFlashloan,
		AllowanceToken:    f.debtTokens.DebtToken(f.plan.RateMode),
		RequiredAllowance: new(big.Int).Set(amount),
	}, nil
}

// Allowance reads the credit delegated on the debt token.
func (f *BorrowFlow) Allowance(ctx context.Context, intent model.RebalanceIntent) (*big.Int, error) {
	return f.allowances.BorrowAllowance(ctx, intent.AllowanceToken, intent.User)
}

func addBps(v *big.Int, bps int64) *big.Int {
	extra := new(big.Int).Mul(v, big.NewInt(bps))
	extra.Quo(extra, big.NewInt(bpsDenominator))
	return extra.Add(extra, v)
}

func subBps(v *big.Int, bps int64) *big.Int {
	cut := new(big.Int).Mul(v, big.NewInt(bps))
	cut.Quo(cut, big.NewInt(bpsDenominator))
	return cut.Sub(v, cut)
}
