package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Position is a borrower's reserve state for a single asset.
type Position struct {
	Asset             Asset    `json:"asset"`
	WrappedBalance    *big.Int `json:"wrapped_balance"`
	StableDebt        *big.Int `json:"stable_debt"`
	VariableDebt      *big.Int `json:"variable_debt"`
	StableBorrowRate  *big.Int `json:"stable_borrow_rate"`
	CollateralEnabled bool     `json:"collateral_enabled"`
}

// TotalDebt returns stable plus variable debt.
func (p Position) TotalDebt() *big.Int {
	return new(big.Int).Add(orZero(p.StableDebt), orZero(p.VariableDebt))
}

// AccountData is the protocol's aggregate view of a borrower, in the
// protocol's common unit scaled by 1e18.
type AccountData struct {
	TotalCollateral      *big.Int `json:"total_collateral"`
	TotalDebt            *big.Int `json:"total_debt"`
	AvailableBorrows     *big.Int `json:"available_borrows"`
	LiquidationThreshold *big.Int `json:"liquidation_threshold"`
	LTV                  *big.Int `json:"ltv"`
	HealthFactor         *big.Int `json:"health_factor"`
}

// HasDebt reports whether the borrower owes anything.
func (a AccountData) HasDebt() bool {
	return a.TotalDebt != nil && a.TotalDebt.Sign() > 0
}

// Snapshot is everything the decision engine needs about one borrower.
type Snapshot struct {
	User      common.Address `json:"user"`
	Account   AccountData    `json:"account"`
	Positions []Position     `json:"positions"`
}

// Position returns the position for an asset address.
func (s Snapshot) Position(asset common.Address) (Position, bool) {
	for _, pos := range s.Positions {
		if pos.Asset.Address == asset {
			return pos, true
		}
	}
	return Position{}, false
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
