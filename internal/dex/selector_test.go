package dex

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"autoRepay/internal/model"
)

// stubQuoter quotes by path key; missing keys are not viable.
type stubQuoter struct {
	quotes map[string]int64
	calls  int
}

func (s *stubQuoter) Quote(_ context.Context, _ model.QuoteDirection, _ *big.Int, path model.SwapPath) QuoteResult {
	s.calls++
	v, ok := s.quotes[path.String()]
	if !ok {
		return QuoteResult{}
	}
	return QuoteResult{Amount: big.NewInt(v), Viable: true}
}

func pathOf(assets ...common.Address) model.SwapPath {
	return model.SwapPath{Assets: assets}
}

func TestSelectBestExactOutPicksMinimumInput(t *testing.T) {
	p1, p2, p3 := pathOf(cusd, ceur), pathOf(cusd, celo, ceur), pathOf(cusd, mcelo, ceur)
	q := &stubQuoter{quotes: map[string]int64{p1.String(): 120, p2.String(): 100}}
	s := NewSelector(q, testEnumerator(), nil, zaptest.NewLogger(t))

	best, err := s.SelectBest(context.Background(), big.NewInt(100), model.ExactOut, []model.SwapPath{p1, p2, p3})
	require.NoError(t, err)
	assert.Equal(t, p2, best.Path)
	assert.Equal(t, "100", best.Amount.String())
	assert.Equal(t, 3, q.calls)
}

func TestSelectBestExactInPicksMaximumOutput(t *testing.T) {
	p1, p2 := pathOf(cusd, ceur), pathOf(cusd, celo, ceur)
	q := &stubQuoter{quotes: map[string]int64{p1.String(): 120, p2.String(): 100}}
	s := NewSelector(q, testEnumerator(), nil, zaptest.NewLogger(t))

	best, err := s.SelectBest(context.Background(), big.NewInt(100), model.ExactIn, []model.SwapPath{p1, p2})
	require.NoError(t, err)
	assert.Equal(t, p1, best.Path)
}

func TestSelectBestTieKeepsEarlierCandidate(t *testing.T) {
	p1, p2 := pathOf(cusd, ceur), pathOf(cusd, celo, ceur)
	q := &stubQuoter{quotes: map[string]int64{p1.String(): 100, p2.String(): 100}}
	s := NewSelector(q, testEnumerator(), nil, zaptest.NewLogger(t))

	for _, dir := range []model.QuoteDirection{model.ExactIn, model.ExactOut} {
		best, err := s.SelectBest(context.Background(), big.NewInt(1), dir, []model.SwapPath{p1, p2})
		require.NoError(t, err)
		assert.Equal(t, p1, best.Path)
	}
}

func TestSelectBestNoViablePath(t *testing.T) {
	q := &stubQuoter{quotes: map[string]int64{}}
	s := NewSelector(q, testEnumerator(), nil, zaptest.NewLogger(t))

	best, err := s.SelectBest(context.Background(), big.NewInt(1), model.ExactOut, []model.SwapPath{pathOf(cusd, ceur)})
	require.ErrorIs(t, err, ErrNoViablePath)
	assert.Nil(t, best.Amount)
	assert.True(t, best.Path.IsNoop())
}

func TestBestSameAssetSkipsExchange(t *testing.T) {
	q := &stubQuoter{}
	s := NewSelector(q, testEnumerator(), nil, zaptest.NewLogger(t))

	best, err := s.Best(context.Background(), big.NewInt(55), model.ExactOut, cusd, mcusd, cusd, mcusd)
	require.NoError(t, err)
	assert.True(t, best.Path.IsNoop())
	assert.True(t, best.Path.UseATokenAsFrom)
	assert.Equal(t, "55", best.Amount.String())
	assert.Zero(t, q.calls)
}

func TestBestUsesOverride(t *testing.T) {
	override := pathOf(ceur, celo, cusd, creal)
	q := &stubQuoter{quotes: map[string]int64{override.String(): 10, pathOf(ceur, creal).String(): 1}}
	s := NewSelector(q, testEnumerator(), nil, zaptest.NewLogger(t))

	best, err := s.Best(context.Background(), big.NewInt(1), model.ExactOut, ceur, mceur, creal, mcreal)
	require.NoError(t, err)
	assert.Equal(t, override, best.Path)
	assert.Equal(t, 1, q.calls)
}

func TestBestSameAssetExactInHasNoPath(t *testing.T) {
	q := &stubQuoter{}
	s := NewSelector(q, NewEnumerator(nil, nil), nil, zaptest.NewLogger(t))
	_, err := s.Best(context.Background(), big.NewInt(55), model.ExactIn, cusd, mcusd, cusd, mcusd)
	require.ErrorIs(t, err, ErrNoViablePath)
	assert.Zero(t, q.calls)
}

func TestQuoteAllQuotesEachCandidateOnce(t *testing.T) {
	p1, p2 := pathOf(cusd, ceur), pathOf(cusd, celo, ceur)
	q := &stubQuoter{quotes: map[string]int64{p1.String(): 120, p2.String(): 110}}
	s := NewSelector(q, nil, nil, zaptest.NewLogger(t))

	quotes, err := s.QuoteAll(context.Background(), big.NewInt(100), model.ExactOut, []model.SwapPath{p1, p2})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, 2, q.calls)

	best, err := Pick(model.ExactOut, quotes)
	require.NoError(t, err)
	assert.Equal(t, p2, best.Path)
	assert.Equal(t, 2, q.calls)
}
