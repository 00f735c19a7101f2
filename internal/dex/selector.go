package dex

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"autoRepay/internal/metrics"
	"autoRepay/internal/model"
)

// ErrNoViablePath is returned when no candidate path can be quoted.
var ErrNoViablePath = errors.New("no viable swap path")

// Selector picks the best-priced candidate path.
type Selector struct {
	quoter     Quoter
	enumerator *Enumerator
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewSelector builds a Selector. m may be nil.
func NewSelector(quoter Quoter, enumerator *Enumerator, m *metrics.Metrics, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{quoter: quoter, enumerator: enumerator, metrics: m, logger: logger}
}

// PathQuote is the quote result for one candidate path.
type PathQuote struct {
	Path   model.SwapPath
	Result QuoteResult
}

// QuoteAll quotes every candidate once, in candidate order.
func (s *Selector) QuoteAll(ctx context.Context, amount *big.Int, direction model.QuoteDirection, candidates []model.SwapPath) ([]PathQuote, error) {
	quotes := make([]PathQuote, 0, len(candidates))
	for _, path := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := s.quoter.Quote(ctx, direction, amount, path)
		s.metrics.ObserveQuote(res.Viable)
		quotes = append(quotes, PathQuote{Path: path, Result: res})
	}
	return quotes, nil
}

// SelectBest quotes every candidate and returns the one needing the least
// input (ExactOut) or producing the most output (ExactIn). Ties keep the
// earlier candidate. Candidates that fail to quote are skipped.
func (s *Selector) SelectBest(ctx context.Context, amount *big.Int, direction model.QuoteDirection, candidates []model.SwapPath) (model.CandidateQuote, error) {
	quotes, err := s.QuoteAll(ctx, amount, direction, candidates)
	if err != nil {
		return model.CandidateQuote{}, err
	}
	return Pick(direction, quotes)
}

// Pick returns the best viable quote, or ErrNoViablePath.
func Pick(direction model.QuoteDirection, quotes []PathQuote) (model.CandidateQuote, error) {
	var (
		best  model.CandidateQuote
		found bool
	)
	for _, q := range quotes {
		if !q.Result.Viable {
			continue
		}
		if !found || better(direction, q.Result.Amount, best.Amount) {
			best = model.CandidateQuote{Path: q.Path, Amount: q.Result.Amount}
			found = true
		}
	}
	if !found {
		return model.CandidateQuote{}, ErrNoViablePath
	}
	return best, nil
}

// Best enumerates the candidates for a pair and selects among them. A
// same-asset ExactOut pair needs no swap and returns a no-op quote spending
// the wrapped token, without touching the exchange. A same-asset ExactIn pair
// swaps a freshly borrowed asset, never the wrapped token, so it has no
// viable path.
func (s *Selector) Best(ctx context.Context, amount *big.Int, direction model.QuoteDirection, from, fromWrapped, to, toWrapped common.Address) (model.CandidateQuote, error) {
	if from == to {
		if direction == model.ExactIn {
			return model.CandidateQuote{}, ErrNoViablePath
		}
		return model.CandidateQuote{
			Path:   model.SwapPath{UseATokenAsFrom: true},
			Amount: new(big.Int).Set(amount),
		}, nil
	}
	candidates := s.enumerator.Enumerate(from, fromWrapped, to, toWrapped)
	best, err := s.SelectBest(ctx, amount, direction, candidates)
	if err != nil {
		s.logger.Debug("path selection failed",
			zap.String("from", from.Hex()),
			zap.String("to", to.Hex()),
			zap.Int("candidates", len(candidates)),
			zap.Error(err),
		)
		return model.CandidateQuote{}, err
	}
	return best, nil
}

func better(direction model.QuoteDirection, candidate, current *big.Int) bool {
	if direction == model.ExactOut {
		return candidate.Cmp(current) < 0
	}
	return candidate.Cmp(current) > 0
}
