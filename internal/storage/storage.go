package storage

import (
	"context"

	"autoRepay/internal/model"
)

// Sink records rebalance outcomes.
type Sink interface {
	PutOutcome(ctx context.Context, outcome model.Outcome) error
}

// Multi fans an outcome out to every sink and returns the first error.
type Multi []Sink

func (m Multi) PutOutcome(ctx context.Context, outcome model.Outcome) error {
	var first error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.PutOutcome(ctx, outcome); err != nil && first == nil {
			first = err
		}
	}
	return first
}
