package protocol

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"autoRepay/internal/model"
)

const healthFactorSetEvent = "HealthFactorSet"

// ThresholdDecoder decodes HealthFactorSet logs emitted by the adapter.
type ThresholdDecoder struct {
	event abi.Event
}

// NewThresholdDecoder builds a ThresholdDecoder.
func NewThresholdDecoder() (*ThresholdDecoder, error) {
	parsed, err := adapterABI.get()
	if err != nil {
		return nil, fmt.Errorf("parse adapter abi: %w", err)
	}
	event, ok := parsed.Events[healthFactorSetEvent]
	if !ok {
		return nil, fmt.Errorf("adapter abi has no %s event", healthFactorSetEvent)
	}
	return &ThresholdDecoder{event: event}, nil
}

// Topic0 returns the event signature hash used to filter logs.
func (d *ThresholdDecoder) Topic0() common.Hash {
	return d.event.ID
}

// Decode converts a log into a ThresholdEvent. A clearing event decodes to
// all-zero thresholds.
func (d *ThresholdDecoder) Decode(log types.Log) (model.ThresholdEvent, error) {
	if len(log.Topics) != 2 {
		return model.ThresholdEvent{}, fmt.Errorf("expected 2 topics, got %d", len(log.Topics))
	}
	if log.Topics[0] != d.event.ID {
		return model.ThresholdEvent{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}

	var indexed struct {
		User common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(d.event.Inputs), log.Topics[1:]); err != nil {
		return model.ThresholdEvent{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := d.event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.ThresholdEvent{}, fmt.Errorf("unpack data: %w", err)
	}
	if len(values) != 5 {
		return model.ThresholdEvent{}, fmt.Errorf("unexpected %s values: %d", healthFactorSetEvent, len(values))
	}
	ints, err := asBigInts(values, 3)
	if err != nil {
		return model.ThresholdEvent{}, err
	}
	borrow, err := asAddress(values[3])
	if err != nil {
		return model.ThresholdEvent{}, fmt.Errorf("borrow address: %w", err)
	}
	collateral, err := asAddress(values[4])
	if err != nil {
		return model.ThresholdEvent{}, fmt.Errorf("collateral address: %w", err)
	}

	return model.ThresholdEvent{
		User: indexed.User,
		Thresholds: model.UserThresholds{
			Min:             ints[0],
			Target:          ints[1],
			Max:             ints[2],
			BorrowAsset:     borrow,
			CollateralAsset: collateral,
		},
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
	}, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	var out abi.Arguments
	for _, arg := range args {
		if arg.Indexed {
			out = append(out, arg)
		}
	}
	return out
}
