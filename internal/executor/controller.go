package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"autoRepay/internal/metrics"
	"autoRepay/internal/model"
)

// DefaultMaxAttempts bounds the amount-reduction retries.
const DefaultMaxAttempts = 4

// ErrInsufficientAllowance is reported when the borrower has not approved
// enough for the adapter to act.
var ErrInsufficientAllowance = errors.New("insufficient allowance")

// Status of an execution.
type Status string

const (
	StatusSubmitted             Status = "submitted"
	StatusAbandoned             Status = "abandoned"
	StatusInsufficientAllowance Status = "insufficient_allowance"
	StatusFailed                Status = "failed"
)

// Flow builds intents for one rebalance direction.
type Flow interface {
	// Build re-quotes and returns the intent for amount.
	Build(ctx context.Context, amount *big.Int, useFlashloan bool) (model.RebalanceIntent, error)
	// Allowance returns what the borrower has approved for intent.
	Allowance(ctx context.Context, intent model.RebalanceIntent) (*big.Int, error)
}

// Adapter dry-runs and submits intents.
type Adapter interface {
	Simulate(ctx context.Context, intent model.RebalanceIntent) error
	Submit(ctx context.Context, intent model.RebalanceIntent) (common.Hash, error)
}

// Options configure a Controller.
type Options struct {
	MaxAttempts   int
	Decay         DecayPolicy
	DryRunRetries int
	DryRunDelay   time.Duration
}

// Result is the tagged outcome of Execute.
type Result struct {
	Status   Status
	Attempts int
	Amounts  []*big.Int
	Intent   *model.RebalanceIntent
	TxHash   common.Hash
	Err      error
}

// Controller runs the staged attempt sequence for a flow.
type Controller struct {
	adapter Adapter
	opts    Options
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewController builds a Controller. m may be nil.
func NewController(adapter Adapter, opts Options, m *metrics.Metrics, logger *zap.Logger) *Controller {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Decay == nil {
		opts.Decay = Compounding{}
	}
	if opts.DryRunRetries <= 0 {
		opts.DryRunRetries = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{adapter: adapter, opts: opts, metrics: m, logger: logger}
}

// Execute walks up to MaxAttempts amounts. Each attempt re-quotes, checks the
// allowance, dry-runs the flash-loan variant and then the direct variant,
// and submits whichever succeeded, preferring direct. Nothing is sent unless
// a dry run succeeds.
func (c *Controller) Execute(ctx context.Context, flow Flow, amount *big.Int) Result {
	res := Result{}
	original := new(big.Int).Set(amount)
	current := new(big.Int).Set(amount)

	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			res.Status, res.Err = StatusFailed, err
			return res
		}
		res.Attempts = attempt
		res.Amounts = append(res.Amounts, new(big.Int).Set(current))
		log := c.logger.With(zap.Int("attempt", attempt), zap.String("amount", current.String()))

		intent, err := flow.Build(ctx, current, true)
		if err != nil {
			log.Info("cannot build intent", zap.Error(err))
			res.Err = err
			current = c.opts.Decay.Next(original, current, attempt)
			continue
		}
		log = log.With(zap.String("user", intent.User.Hex()),
			zap.String("collateral", intent.CollateralAsset.Hex()),
			zap.String("debt", intent.DebtAsset.Hex()))

		allowance, err := flow.Allowance(ctx, intent)
		if err != nil {
			res.Status, res.Err = StatusFailed, fmt.Errorf("read allowance: %w", err)
			return res
		}
		if intent.RequiredAllowance != nil && allowance.Cmp(intent.RequiredAllowance) < 0 {
			log.Warn("borrower allowance too low",
				zap.String("token", intent.AllowanceToken.Hex()),
				zap.String("required", intent.RequiredAllowance.String()),
				zap.String("available", allowance.String()))
			res.Status = StatusInsufficientAllowance
			res.Err = fmt.Errorf("%w: token %s has %s, needs %s", ErrInsufficientAllowance,
				intent.AllowanceToken.Hex(), allowance, intent.RequiredAllowance)
			return res
		}

		if err := c.dryRun(ctx, intent); err != nil {
			c.metrics.IncDryRunFailure("flashloan")
			log.Info("flash-loan dry run failed", zap.Error(err))
			res.Err = err
			current = c.opts.Decay.Next(original, current, attempt)
			continue
		}

		chosen := intent
		if direct, err := flow.Build(ctx, current, false); err != nil {
			log.Info("cannot build direct intent, using flash loan", zap.Error(err))
		} else if err := c.dryRun(ctx, direct); err != nil {
			c.metrics.IncDryRunFailure("direct")
			log.Info("direct dry run failed, using flash loan", zap.Error(err))
		} else {
			chosen = direct
		}

		res.Intent = &chosen
		hash, err := c.adapter.Submit(ctx, chosen)
		res.TxHash = hash
		if err != nil {
			log.Error("submit failed", zap.Bool("flashloan", chosen.UseFlashloan), zap.Error(err))
			res.Status, res.Err = StatusFailed, fmt.Errorf("submit: %w", err)
			return res
		}
		log.Info("rebalance submitted", zap.Bool("flashloan", chosen.UseFlashloan), zap.String("tx", hash.Hex()))
		res.Status, res.Err = StatusSubmitted, nil
		return res
	}

	res.Status = StatusAbandoned
	return res
}

// dryRun retries transient simulation errors a fixed number of times.
func (c *Controller) dryRun(ctx context.Context, intent model.RebalanceIntent) error {
	var err error
	for i := 0; i < c.opts.DryRunRetries; i++ {
		if err = c.adapter.Simulate(ctx, intent); err == nil {
			return nil
		}
		if i == c.opts.DryRunRetries-1 {
			break
		}
		timer := time.NewTimer(c.opts.DryRunDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
