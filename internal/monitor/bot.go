package monitor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"autoRepay/internal/executor"
	"autoRepay/internal/indexer"
	"autoRepay/internal/metrics"
	"autoRepay/internal/model"
	"autoRepay/internal/rebalance"
	"autoRepay/internal/storage"
)

// DefaultPollInterval is the sleep between full cycles.
const DefaultPollInterval = 60 * time.Second

// EventScanner reads threshold events from a block onwards.
type EventScanner interface {
	Scan(ctx context.Context, from uint64) ([]model.ThresholdEvent, uint64, error)
}

// PositionReader reads borrower state from the lending pool.
type PositionReader interface {
	AccountData(ctx context.Context, user common.Address) (model.AccountData, error)
	Snapshot(ctx context.Context, user common.Address) (model.Snapshot, error)
}

// PriceReader reads oracle prices.
type PriceReader interface {
	PriceMap(ctx context.Context, assets []common.Address) (map[common.Address]*big.Int, error)
}

// SettingsReader reads the adapter's stored borrower configuration.
type SettingsReader interface {
	UserSettings(ctx context.Context, user common.Address) (model.UserThresholds, error)
}

// FlowBuilder resolves plans into executable flows.
type FlowBuilder interface {
	RepayFlow(ctx context.Context, plan rebalance.RepayPlan) (*rebalance.RepayFlow, error)
	BorrowFlow(ctx context.Context, plan rebalance.BorrowPlan) (*rebalance.BorrowFlow, error)
}

// Executor runs a flow through the staged attempts.
type Executor interface {
	Execute(ctx context.Context, flow executor.Flow, amount *big.Int) executor.Result
}

// Config holds loop settings.
type Config struct {
	Assets       model.AssetSet
	StartBlock   uint64
	PollInterval time.Duration
	Concurrency  int
	RiskTopN     int
}

// Deps are the collaborators of a Bot. Sink, State and Metrics may be nil.
type Deps struct {
	Scanner   EventScanner
	Book      *indexer.Book
	State     indexer.StateStore
	Positions PositionReader
	Prices    PriceReader
	Settings  SettingsReader
	Flows     FlowBuilder
	Executor  Executor
	Sink      storage.Sink
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Bot is the long-lived context of the rebalancing daemon. The threshold
// book is written only by the ingest step of Cycle.
type Bot struct {
	cfg  Config
	deps Deps
	next uint64
	now  func() time.Time
}

// New builds a Bot.
func New(cfg Config, deps Deps) *Bot {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 20
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Book == nil {
		deps.Book = indexer.NewBook()
	}
	return &Bot{cfg: cfg, deps: deps, next: cfg.StartBlock, now: time.Now}
}

// Book returns the threshold book.
func (b *Bot) Book() *indexer.Book {
	return b.deps.Book
}

// NextBlock returns the first block the next scan reads.
func (b *Bot) NextBlock() uint64 {
	return b.next
}

// Restore loads saved scanner state into the book.
func (b *Bot) Restore(ctx context.Context) error {
	if b.deps.State == nil {
		return nil
	}
	state, ok, err := b.deps.State.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if !ok {
		return nil
	}
	b.deps.Book.Restore(state.Thresholds)
	if state.LastBlock+1 > b.next {
		b.next = state.LastBlock + 1
	}
	b.deps.Logger.Info("resume from state",
		zap.Uint64("last_block", state.LastBlock),
		zap.Uint64("from", b.next),
		zap.Int("users", len(state.Thresholds)))
	return nil
}

// Run executes cycles until ctx is done. Cycle failures are logged and the
// loop carries on after the poll interval.
func (b *Bot) Run(ctx context.Context) error {
	logger := b.deps.Logger
	for {
		start := b.now()
		err := b.Cycle(ctx)
		b.deps.Metrics.ObserveCycle(b.now().Sub(start), err)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("cycle failed", zap.Error(err))
		}

		timer := time.NewTimer(b.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Cycle ingests new events, then runs the repay pass and the borrow pass
// over every monitored borrower.
func (b *Bot) Cycle(ctx context.Context) error {
	if err := b.ingest(ctx); err != nil {
		return err
	}

	users := b.activeUsers()
	b.deps.Metrics.SetMonitoredUsers(len(users))
	if len(users) == 0 {
		b.deps.Logger.Info("no monitored borrowers")
		return nil
	}

	accounts, err := b.fetchAccounts(ctx, users)
	if err != nil {
		return err
	}
	b.logRiskiest(users, accounts)

	handled := make(map[common.Address]bool)
	var repays []common.Address
	for _, user := range users {
		account, ok := accounts[user]
		if !ok {
			continue
		}
		th, _ := b.deps.Book.Get(user)
		if rebalance.NeedsRepay(account, th) {
			repays = append(repays, user)
			handled[user] = true
		}
	}
	b.deps.Metrics.AddCandidates(string(model.DirectionRepay), len(repays))
	for _, user := range repays {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.repay(ctx, user)
	}

	// Repay-handled users are skipped, so the other accounts are unchanged
	// since the cycle read; borrow re-reads the snapshot before planning.
	var borrows []common.Address
	for _, user := range users {
		account, ok := accounts[user]
		if !ok || handled[user] {
			continue
		}
		th, _ := b.deps.Book.Get(user)
		if rebalance.NeedsBorrow(account, th) {
			borrows = append(borrows, user)
		}
	}
	b.deps.Metrics.AddCandidates(string(model.DirectionBorrow), len(borrows))
	for _, user := range borrows {
		if err := ctx.Err(); err != nil {
			return err
		}
		th, _ := b.deps.Book.Get(user)
		b.borrow(ctx, user, th)
	}

	b.deps.Logger.Info("cycle complete",
		zap.Int("users", len(users)),
		zap.Int("repay_candidates", len(repays)),
		zap.Int("borrow_candidates", len(borrows)))
	return nil
}

func (b *Bot) ingest(ctx context.Context) error {
	events, reached, err := b.deps.Scanner.Scan(ctx, b.next)
	if err != nil {
		return fmt.Errorf("scan events from %d: %w", b.next, err)
	}
	if len(events) > 0 {
		b.deps.Book.Apply(events)
		b.deps.Logger.Info("thresholds updated", zap.Int("events", len(events)), zap.Int("users", b.deps.Book.Len()))
	}
	if reached+1 > b.next {
		b.next = reached + 1
	}
	b.deps.Metrics.SetLastScannedBlock(reached)

	if b.deps.State != nil {
		state := indexer.State{LastBlock: reached, Thresholds: b.deps.Book.Settings()}
		if err := b.deps.State.Save(ctx, state); err != nil {
			b.deps.Logger.Warn("save state failed", zap.Error(err))
		}
	}
	return nil
}

func (b *Bot) activeUsers() []common.Address {
	var out []common.Address
	for _, user := range b.deps.Book.Users() {
		th, _ := b.deps.Book.Get(user)
		if th.IsZero() {
			continue
		}
		out = append(out, user)
	}
	return out
}

// fetchAccounts reads account data for users with bounded concurrency. A
// failed read leaves the user out of this cycle.
func (b *Bot) fetchAccounts(ctx context.Context, users []common.Address) (map[common.Address]model.AccountData, error) {
	results := make([]*model.AccountData, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Concurrency)
	for i, user := range users {
		i, user := i, user
		g.Go(func() error {
			account, err := b.deps.Positions.AccountData(gctx, user)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				b.deps.Logger.Warn("account data failed", zap.String("user", user.Hex()), zap.Error(err))
				return nil
			}
			results[i] = &account
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch account data: %w", err)
	}

	out := make(map[common.Address]model.AccountData, len(users))
	for i, user := range users {
		if results[i] != nil {
			out[user] = *results[i]
		}
	}
	return out, nil
}

func (b *Bot) prices(ctx context.Context) (rebalance.Prices, error) {
	prices, err := b.deps.Prices.PriceMap(ctx, b.cfg.Assets.Addresses())
	if err != nil {
		return nil, fmt.Errorf("read prices: %w", err)
	}
	return rebalance.Prices(prices), nil
}

func (b *Bot) repay(ctx context.Context, user common.Address) {
	log := b.deps.Logger.With(zap.String("user", user.Hex()), zap.String("direction", string(model.DirectionRepay)))

	snap, err := b.deps.Positions.Snapshot(ctx, user)
	if err != nil {
		b.fail(ctx, log, model.DirectionRepay, user, fmt.Errorf("snapshot: %w", err))
		return
	}
	prices, err := b.prices(ctx)
	if err != nil {
		b.fail(ctx, log, model.DirectionRepay, user, err)
		return
	}
	plan, err := rebalance.PlanRepay(snap, prices)
	if err != nil {
		b.fail(ctx, log, model.DirectionRepay, user, fmt.Errorf("plan: %w", err))
		return
	}
	log = log.With(zap.String("collateral", plan.Collateral.Symbol), zap.String("debt", plan.Debt.Symbol))
	log.Info("repay candidate",
		zap.String("health_factor", FormatHealthFactor(snap.Account.HealthFactor)),
		zap.String("rate_mode", plan.RateMode.String()),
		zap.String("amount", plan.Amount.String()))

	flow, err := b.deps.Flows.RepayFlow(ctx, plan)
	if err != nil {
		b.fail(ctx, log, model.DirectionRepay, user, err)
		return
	}
	res := b.deps.Executor.Execute(ctx, flow, plan.Amount)
	b.record(ctx, log, model.DirectionRepay, user, plan.Collateral, plan.Debt, res)
}

func (b *Bot) borrow(ctx context.Context, user common.Address, th model.UserThresholds) {
	log := b.deps.Logger.With(zap.String("user", user.Hex()), zap.String("direction", string(model.DirectionBorrow)))

	if b.deps.Settings != nil {
		stored, err := b.deps.Settings.UserSettings(ctx, user)
		if err != nil {
			log.Warn("read user settings failed, defaulting rate mode", zap.Error(err))
		} else {
			th.RateMode = stored.RateMode
			if th.BorrowAsset == (common.Address{}) {
				th.BorrowAsset = stored.BorrowAsset
			}
			if th.CollateralAsset == (common.Address{}) {
				th.CollateralAsset = stored.CollateralAsset
			}
		}
	}

	snap, err := b.deps.Positions.Snapshot(ctx, user)
	if err != nil {
		b.fail(ctx, log, model.DirectionBorrow, user, fmt.Errorf("snapshot: %w", err))
		return
	}
	prices, err := b.prices(ctx)
	if err != nil {
		b.fail(ctx, log, model.DirectionBorrow, user, err)
		return
	}
	plan, err := rebalance.PlanBorrow(snap, prices, th)
	if err != nil {
		b.fail(ctx, log, model.DirectionBorrow, user, fmt.Errorf("plan: %w", err))
		return
	}
	log = log.With(zap.String("collateral", plan.Collateral.Symbol), zap.String("debt", plan.Debt.Symbol))
	log.Info("borrow candidate",
		zap.String("health_factor", FormatHealthFactor(snap.Account.HealthFactor)),
		zap.String("rate_mode", plan.RateMode.String()),
		zap.String("amount", plan.Amount.String()))

	flow, err := b.deps.Flows.BorrowFlow(ctx, plan)
	if err != nil {
		b.fail(ctx, log, model.DirectionBorrow, user, err)
		return
	}
	res := b.deps.Executor.Execute(ctx, flow, plan.Amount)
	b.record(ctx, log, model.DirectionBorrow, user, plan.Collateral, plan.Debt, res)
}

func (b *Bot) fail(ctx context.Context, log *zap.Logger, direction model.Direction, user common.Address, err error) {
	if errors.Is(err, rebalance.ErrNoEligibleCollateral) || errors.Is(err, rebalance.ErrNoDebt) {
		log.Info("nothing to rebalance", zap.Error(err))
	} else {
		log.Error("rebalance failed", zap.Error(err))
	}
	b.deps.Metrics.ObserveRebalance(string(direction), model.OutcomeFailed, 0)
	b.put(ctx, log, model.Outcome{
		User:       user.Hex(),
		Direction:  direction,
		Status:     model.OutcomeFailed,
		Error:      err.Error(),
		RecordedAt: b.now().UTC().Format(time.RFC3339Nano),
	})
}

func (b *Bot) record(ctx context.Context, log *zap.Logger, direction model.Direction, user common.Address, collateral, debt model.Asset, res executor.Result) {
	outcome := model.Outcome{
		User:            user.Hex(),
		Direction:       direction,
		CollateralAsset: collateral.Address.Hex(),
		DebtAsset:       debt.Address.Hex(),
		Status:          string(res.Status),
		Attempts:        res.Attempts,
		Amounts:         make([]string, 0, len(res.Amounts)),
		RecordedAt:      b.now().UTC().Format(time.RFC3339Nano),
	}
	for _, amount := range res.Amounts {
		outcome.Amounts = append(outcome.Amounts, amount.String())
	}
	if res.Intent != nil {
		outcome.UseFlashloan = res.Intent.UseFlashloan
	}
	if res.TxHash != (common.Hash{}) {
		outcome.TxHash = res.TxHash.Hex()
	}
	if res.Err != nil {
		outcome.Error = res.Err.Error()
	}

	switch res.Status {
	case executor.StatusSubmitted:
		log.Info("rebalance submitted", zap.String("tx", outcome.TxHash), zap.Int("attempts", res.Attempts))
	case executor.StatusAbandoned:
		log.Warn("rebalance abandoned", zap.Int("attempts", res.Attempts), zap.Strings("amounts", outcome.Amounts), zap.Error(res.Err))
	default:
		log.Error("rebalance not executed", zap.String("status", outcome.Status), zap.Error(res.Err))
	}

	b.deps.Metrics.ObserveRebalance(string(direction), outcome.Status, res.Attempts)
	b.put(ctx, log, outcome)
}

func (b *Bot) put(ctx context.Context, log *zap.Logger, outcome model.Outcome) {
	if b.deps.Sink == nil {
		return
	}
	if err := b.deps.Sink.PutOutcome(ctx, outcome); err != nil {
		log.Warn("record outcome failed", zap.Error(err))
	}
}
