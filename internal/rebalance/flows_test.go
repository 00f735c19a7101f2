package rebalance

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"autoRepay/internal/model"
)

type stubRegistry map[common.Address]model.ReserveTokens

func (s stubRegistry) ReserveTokens(_ context.Context, asset common.Address) (model.ReserveTokens, error) {
	tokens, ok := s[asset]
	if !ok {
		return model.ReserveTokens{}, errors.New("unknown reserve")
	}
	return tokens, nil
}

type selectorCall struct {
	amount    *big.Int
	direction model.QuoteDirection
	from, to  common.Address
}

type stubSelector struct {
	quote model.CandidateQuote
	err   error
	calls []selectorCall
}

func (s *stubSelector) Best(_ context.Context, amount *big.Int, direction model.QuoteDirection, from, _, to, _ common.Address) (model.CandidateQuote, error) {
	s.calls = append(s.calls, selectorCall{amount: new(big.Int).Set(amount), direction: direction, from: from, to: to})
	if s.err != nil {
		return model.CandidateQuote{}, s.err
	}
	return s.quote, nil
}

type stubAllowances struct {
	token common.Address
	user  common.Address
	kind  string
}

func (s *stubAllowances) CollateralAllowance(_ context.Context, token, user common.Address) (*big.Int, error) {
	s.token, s.user, s.kind = token, user, "collateral"
	return big.NewInt(42), nil
}

func (s *stubAllowances) BorrowAllowance(_ context.Context, token, user common.Address) (*big.Int, error) {
	s.token, s.user, s.kind = token, user, "borrow"
	return big.NewInt(7), nil
}

var (
	tokensX = model.ReserveTokens{
		Wrapped:      common.HexToAddress("0xa1"),
		StableDebt:   common.HexToAddress("0xa2"),
		VariableDebt: common.HexToAddress("0xa3"),
	}
	tokensZ = model.ReserveTokens{
		Wrapped:      common.HexToAddress("0xc1"),
		StableDebt:   common.HexToAddress("0xc2"),
		VariableDebt: common.HexToAddress("0xc3"),
	}
	testParams = Params{SlippageBps: 100, FeeBps: 10, FlashPremiumBps: 9}
)

func newTestEngine(t *testing.T, sel *stubSelector, allow *stubAllowances) *Engine {
	reg := stubRegistry{assetX.Address: tokensX, assetZ.Address: tokensZ}
	return NewEngine(reg, sel, allow, testParams, zaptest.NewLogger(t))
}

func TestRepayFlowBuild(t *testing.T) {
	path := model.SwapPath{Assets: []common.Address{assetZ.Address, assetX.Address}, UseATokenAsFrom: true}
	sel := &stubSelector{quote: model.CandidateQuote{Path: path, Amount: big.NewInt(20000)}}
	allow := &stubAllowances{}
	engine := newTestEngine(t, sel, allow)

	flow, err := engine.RepayFlow(context.Background(), RepayPlan{
		User: user, Collateral: assetZ, Debt: assetX, RateMode: model.RateModeStable, Amount: big.NewInt(10000),
	})
	require.NoError(t, err)

	intent, err := flow.Build(context.Background(), big.NewInt(10000), true)
	require.NoError(t, err)
	require.Len(t, sel.calls, 1)
	assert.Equal(t, model.ExactOut, sel.calls[0].direction)
	assert.Equal(t, big.NewInt(10009), sel.calls[0].amount, "flash premium added")
	assert.Equal(t, assetZ.Address, sel.calls[0].from)
	assert.Equal(t, assetX.Address, sel.calls[0].to)

	assert.Equal(t, model.DirectionRepay, intent.Direction)
	assert.Equal(t, big.NewInt(20200), intent.CollateralAmount)
	assert.Equal(t, big.NewInt(10000), intent.DebtAmount)
	assert.Equal(t, big.NewInt(20220), intent.RequiredAllowance)
	assert.Equal(t, tokensZ.Wrapped, intent.AllowanceToken)
	assert.Equal(t, model.RateModeStable, intent.RateMode)
	assert.True(t, intent.UseFlashloan)
	assert.Equal(t, path, intent.Path)

	direct, err := flow.Build(context.Background(), big.NewInt(10000), false)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10000), sel.calls[1].amount)
	assert.False(t, direct.UseFlashloan)

	got, err := flow.Allowance(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), got)
	assert.Equal(t, "collateral", allow.kind)
	assert.Equal(t, tokensZ.Wrapped, allow.token)
	assert.Equal(t, user, allow.user)
}

func TestBorrowFlowBuild(t *testing.T) {
	sel := &stubSelector{quote: model.CandidateQuote{Amount: big.NewInt(1)}}
	allow := &stubAllowances{}
	engine := newTestEngine(t, sel, allow)

	flow, err := engine.BorrowFlow(context.Background(), BorrowPlan{
		User:            user,
		Collateral:      assetZ,
		Debt:            assetX,
		RateMode:        model.RateModeVariable,
		Amount:          big.NewInt(10000),
		BorrowPrice:     big.NewInt(2),
		CollateralPrice: big.NewInt(1),
	})
	require.NoError(t, err)

	intent, err := flow.Build(context.Background(), big.NewInt(10000), true)
	require.NoError(t, err)
	require.Len(t, sel.calls, 1)
	assert.Equal(t, model.ExactIn, sel.calls[0].direction)
	assert.Equal(t, assetX.Address, sel.calls[0].from)
	assert.Equal(t, assetZ.Address, sel.calls[0].to)

	assert.Equal(t, model.DirectionBorrow, intent.Direction)
	assert.Equal(t, big.NewInt(19800), intent.CollateralAmount, "oracle value less slippage")
	assert.Equal(t, big.NewInt(10000), intent.DebtAmount)
	assert.Equal(t, tokensX.VariableDebt, intent.AllowanceToken)
	assert.Equal(t, big.NewInt(10000), intent.RequiredAllowance)

	_, err = flow.Allowance(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, "borrow", allow.kind)
	assert.Equal(t, tokensX.VariableDebt, allow.token)
}

func TestBorrowFlowStableDebtToken(t *testing.T) {
	sel := &stubSelector{quote: model.CandidateQuote{Amount: big.NewInt(1)}}
	engine := newTestEngine(t, sel, &stubAllowances{})
	flow, err := engine.BorrowFlow(context.Background(), BorrowPlan{
		User: user, Collateral: assetZ, Debt: assetX, RateMode: model.RateModeStable,
		Amount: big.NewInt(100), BorrowPrice: big.NewInt(1), CollateralPrice: big.NewInt(1),
	})
	require.NoError(t, err)
	intent, err := flow.Build(context.Background(), big.NewInt(100), false)
	require.NoError(t, err)
	assert.Equal(t, tokensX.StableDebt, intent.AllowanceToken)
}

func TestFlowPropagatesSelectorError(t *testing.T) {
	sel := &stubSelector{err: errors.New("no viable path")}
	engine := newTestEngine(t, sel, &stubAllowances{})
	flow, err := engine.RepayFlow(context.Background(), RepayPlan{
		User: user, Collateral: assetZ, Debt: assetX, RateMode: model.RateModeVariable, Amount: big.NewInt(1),
	})
	require.NoError(t, err)
	_, err = flow.Build(context.Background(), big.NewInt(1), true)
	require.Error(t, err)
}

func TestEngineUnknownReserve(t *testing.T) {
	engine := newTestEngine(t, &stubSelector{}, &stubAllowances{})
	_, err := engine.RepayFlow(context.Background(), RepayPlan{Collateral: assetY, Debt: assetX})
	require.Error(t, err)
}
