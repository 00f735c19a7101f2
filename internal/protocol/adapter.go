package protocol

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"autoRepay/internal/model"
)

// Sender dry-runs and submits calldata from the bot account.
type Sender interface {
	Simulate(ctx context.Context, to common.Address, data []byte) (uint64, error)
	Submit(ctx context.Context, to common.Address, data []byte) (common.Hash, error)
}

type repayParams struct {
	User             common.Address
	CollateralAsset  common.Address
	DebtAsset        common.Address
	CollateralAmount *big.Int
	DebtRepayAmount  *big.Int
	RateMode         *big.Int
	Path             []common.Address
	UseATokenAsFrom  bool
	UseATokenAsTo    bool
	UseFlashloan     bool
}

type borrowParams struct {
	User                   common.Address
	MinCollateralAmountOut *big.Int
	BorrowAmount           *big.Int
	Path                   []common.Address
	UseATokenAsFrom        bool
	UseATokenAsTo          bool
	UseFlashloan           bool
}

type permitSignature struct {
	Amount   *big.Int
	Deadline *big.Int
	V        uint8
	R        [32]byte
	S        [32]byte
}

func emptyPermit() permitSignature {
	return permitSignature{Amount: new(big.Int), Deadline: new(big.Int)}
}

// Adapter drives the rebalancing adapter contract.
type Adapter struct {
	address common.Address
	sender  Sender
}

// NewAdapter binds the adapter contract to a sender.
func NewAdapter(address common.Address, sender Sender) *Adapter {
	return &Adapter{address: address, sender: sender}
}

// Address returns the adapter contract address.
func (a *Adapter) Address() common.Address {
	return a.address
}

// Pack encodes the adapter call for an intent, with an empty permit.
func (a *Adapter) Pack(intent model.RebalanceIntent) ([]byte, error) {
	parsed, err := adapterABI.get()
	if err != nil {
		return nil, fmt.Errorf("parse adapter abi: %w", err)
	}
	if intent.CollateralAmount == nil || intent.DebtAmount == nil {
		return nil, errors.New("intent amounts are not set")
	}
	path := intent.Path.Assets
	if path == nil {
		path = []common.Address{}
	}

	switch intent.Direction {
	case model.DirectionRepay:
		return parsed.Pack("increaseHealthFactor", repayParams{
			User:             intent.User,
			CollateralAsset:  intent.CollateralAsset,
			DebtAsset:        intent.DebtAsset,
			CollateralAmount: intent.CollateralAmount,
			DebtRepayAmount:  intent.DebtAmount,
			RateMode:         new(big.Int).SetUint64(uint64(intent.RateMode)),
			Path:             path,
			UseATokenAsFrom:  intent.Path.UseATokenAsFrom,
			UseATokenAsTo:    intent.Path.UseATokenAsTo,
			UseFlashloan:     intent.UseFlashloan,
		}, emptyPermit())
	case model.DirectionBorrow:
		return parsed.Pack("decreaseHealthFactor", borrowParams{
			User:                   intent.User,
			MinCollateralAmountOut: intent.CollateralAmount,
			BorrowAmount:           intent.DebtAmount,
			Path:                   path,
			UseATokenAsFrom:        intent.Path.UseATokenAsFrom,
			UseATokenAsTo:          intent.Path.UseATokenAsTo,
			UseFlashloan:           intent.UseFlashloan,
		}, emptyPermit())
	default:
		return nil, fmt.Errorf("unknown direction %q", intent.Direction)
	}
}

// Simulate dry-runs the intent with gas estimation. A revert is an error.
func (a *Adapter) Simulate(ctx context.Context, intent model.RebalanceIntent) error {
	data, err := a.Pack(intent)
	if err != nil {
		return err
	}
	_, err = a.sender.Simulate(ctx, a.address, data)
	return err
}

// Submit sends the intent and waits for it to be mined.
func (a *Adapter) Submit(ctx context.Context, intent model.RebalanceIntent) (common.Hash, error) {
	data, err := a.Pack(intent)
	if err != nil {
		return common.Hash{}, err
	}
	return a.sender.Submit(ctx, a.address, data)
}
