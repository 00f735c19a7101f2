package model

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// SwapPath is a multi-hop exchange route. The flags tell the adapter to
// spend or receive the wrapped reserve token at the route's ends.
type SwapPath struct {
	Assets          []common.Address `json:"assets"`
	UseATokenAsFrom bool             `json:"use_atoken_as_from"`
	UseATokenAsTo   bool             `json:"use_atoken_as_to"`
}

// IsNoop reports whether the path needs no swap at all.
func (p SwapPath) IsNoop() bool {
	return len(p.Assets) == 0
}

// Reversed returns the route traversed backwards, flags swapped.
func (p SwapPath) Reversed() SwapPath {
	assets := make([]common.Address, len(p.Assets))
	for i, addr := range p.Assets {
		assets[len(p.Assets)-1-i] = addr
	}
	return SwapPath{
		Assets:          assets,
		UseATokenAsFrom: p.UseATokenAsTo,
		UseATokenAsTo:   p.UseATokenAsFrom,
	}
}

func (p SwapPath) String() string {
	if p.IsNoop() {
		return "noop"
	}
	parts := make([]string, 0, len(p.Assets))
	for _, addr := range p.Assets {
		parts = append(parts, addr.Hex())
	}
	return strings.Join(parts, ">")
}

// QuoteDirection picks which side of a swap is fixed.
type QuoteDirection int

const (
	// ExactOut quotes the input required for a fixed output (repay flows).
	ExactOut QuoteDirection = iota
	// ExactIn quotes the output produced by a fixed input (borrow flows).
	ExactIn
)

func (d QuoteDirection) String() string {
	if d == ExactIn {
		return "exact_in"
	}
	return "exact_out"
}

// CandidateQuote is a path with its quoted amount: the required input for
// ExactOut, the resulting output for ExactIn.
type CandidateQuote struct {
	Path   SwapPath `json:"path"`
	Amount *big.Int `json:"amount"`
}

// PathOverride pins the route for a pair with thin generic liquidity. It
// also serves the reverse pair, traversed backwards.
type PathOverride struct {
	From common.Address `json:"from"`
	To   common.Address `json:"to"`
	Path SwapPath       `json:"path"`
}
