package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Direction of a rebalance.
type Direction string

const (
	DirectionRepay  Direction = "repay"
	DirectionBorrow Direction = "borrow"
)

// RebalanceIntent is a fully resolved adapter call. Build a new one per
// attempt rather than mutating.
//
// For repay, CollateralAmount is the maximum collateral the swap may spend
// and DebtAmount the debt to repay. For borrow, CollateralAmount is the
// minimum collateral the swap must return and DebtAmount the amount borrowed.
type RebalanceIntent struct {
	Direction         Direction      `json:"direction"`
	User              common.Address `json:"user"`
	CollateralAsset   common.Address `json:"collateral_asset"`
	DebtAsset         common.Address `json:"debt_asset"`
	CollateralAmount  *big.Int       `json:"collateral_amount"`
	DebtAmount        *big.Int       `json:"debt_amount"`
	RateMode          RateMode       `json:"rate_mode"`
	Path              SwapPath       `json:"path"`
	UseFlashloan      bool           `json:"use_flashloan"`
	AllowanceToken    common.Address `json:"allowance_token"`
	RequiredAllowance *big.Int       `json:"required_allowance"`
}
