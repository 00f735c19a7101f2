package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"autoRepay/internal/model"
)

// Caller is the eth_call surface the router needs.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// QuoteResult is either a viable quote with its amount, or not viable.
type QuoteResult struct {
	Amount *big.Int
	Viable bool
}

// Quoter prices a path on the exchange.
type Quoter interface {
	Quote(ctx context.Context, direction model.QuoteDirection, amount *big.Int, path model.SwapPath) QuoteResult
}

// Router quotes through a Uniswap-v2 style router.
type Router struct {
	caller  Caller
	address common.Address
	logger  *zap.Logger
}

// NewRouter binds a router contract.
func NewRouter(caller Caller, address common.Address, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{caller: caller, address: address, logger: logger}
}

// Quote returns the input required for amount out (ExactOut) or the output
// produced by amount in (ExactIn). Any failure means the path is not viable.
func (r *Router) Quote(ctx context.Context, direction model.QuoteDirection, amount *big.Int, path model.SwapPath) QuoteResult {
	amounts, err := r.amounts(ctx, direction, amount, path)
	if err != nil {
		r.logger.Debug("path not viable",
			zap.String("path", path.String()),
			zap.String("direction", direction.String()),
			zap.Error(err),
		)
		return QuoteResult{}
	}

	var quoted *big.Int
	if direction == model.ExactOut {
		quoted = amounts[0]
	} else {
		quoted = amounts[len(amounts)-1]
	}
	if quoted == nil || quoted.Sign() <= 0 {
		return QuoteResult{}
	}
	return QuoteResult{Amount: new(big.Int).Set(quoted), Viable: true}
}

func (r *Router) amounts(ctx context.Context, direction model.QuoteDirection, amount *big.Int, path model.SwapPath) ([]*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	if len(path.Assets) < 2 {
		return nil, fmt.Errorf("path needs at least two assets")
	}

	parsed, err := RouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	method := "getAmountsOut"
	if direction == model.ExactOut {
		method = "getAmountsIn"
	}

	data, err := parsed.Pack(method, amount, path.Assets)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected %s output length %d", method, len(values))
	}
	amounts, ok := values[0].([]*big.Int)
	if !ok || len(amounts) != len(path.Assets) {
		return nil, fmt.Errorf("unexpected %s amounts", method)
	}
	return amounts, nil
}
