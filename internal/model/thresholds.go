package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RateMode selects the stable or variable debt tranche.
type RateMode uint8

const (
	RateModeNone     RateMode = 0
	RateModeStable   RateMode = 1
	RateModeVariable RateMode = 2
)

func (m RateMode) String() string {
	switch m {
	case RateModeStable:
		return "stable"
	case RateModeVariable:
		return "variable"
	default:
		return "none"
	}
}

// UserThresholds is a borrower's on-chain rebalancing configuration.
// A zero Min or Max means that side is not configured.
type UserThresholds struct {
	Min             *big.Int       `json:"min"`
	Target          *big.Int       `json:"target"`
	Max             *big.Int       `json:"max"`
	RateMode        RateMode       `json:"rate_mode"`
	BorrowAsset     common.Address `json:"borrow_asset"`
	CollateralAsset common.Address `json:"collateral_asset"`
}

// IsZero reports whether the thresholds were cleared.
func (t UserThresholds) IsZero() bool {
	return isZero(t.Min) && isZero(t.Target) && isZero(t.Max) &&
		t.BorrowAsset == (common.Address{}) && t.CollateralAsset == (common.Address{})
}

// ThresholdEvent is a decoded HealthFactorSet log.
type ThresholdEvent struct {
	User        common.Address `json:"user"`
	Thresholds  UserThresholds `json:"thresholds"`
	BlockNumber uint64         `json:"block_number"`
	TxHash      string         `json:"tx_hash"`
	LogIndex    uint64         `json:"log_index"`
}

func isZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}

// UserSetting pairs a borrower with their thresholds.
type UserSetting struct {
	User       common.Address `json:"user"`
	Thresholds UserThresholds `json:"thresholds"`
}
