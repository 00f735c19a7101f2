package monitor

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"autoRepay/internal/executor"
	"autoRepay/internal/indexer"
	"autoRepay/internal/model"
	"autoRepay/internal/rebalance"
)

var (
	wad     = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	assetX  = model.Asset{Symbol: "X", Address: common.HexToAddress("0x01"), Decimals: 18}
	assetZ  = model.Asset{Symbol: "Z", Address: common.HexToAddress("0x03"), Decimals: 18}
	assets  = model.AssetSet{assetX, assetZ}
	repayer = common.HexToAddress("0xa1")
	lender  = common.HexToAddress("0xb2")
	calm    = common.HexToAddress("0xc3")
	cleared = common.HexToAddress("0xd4")
	both    = common.HexToAddress("0xe5")
)

func hf(milli int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(milli), big.NewInt(1e15))
}

type fakeScanner struct {
	events  []model.ThresholdEvent
	reached uint64
	err     error
	froms   []uint64
}

func (f *fakeScanner) Scan(ctx context.Context, from uint64) ([]model.ThresholdEvent, uint64, error) {
	f.froms = append(f.froms, from)
	if f.err != nil {
		return nil, 0, f.err
	}
	events := f.events
	f.events = nil
	return events, f.reached, nil
}

type fakePositions struct {
	mu        sync.Mutex
	snapshots map[common.Address]model.Snapshot
	failing   map[common.Address]bool
	accounts  int
}

func (f *fakePositions) AccountData(ctx context.Context, user common.Address) (model.AccountData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts++
	if f.failing[user] {
		return model.AccountData{}, errors.New("rpc timeout")
	}
	return f.snapshots[user].Account, nil
}

func (f *fakePositions) Snapshot(ctx context.Context, user common.Address) (model.Snapshot, error) {
	return f.snapshots[user], nil
}

type fakePrices struct{}

func (fakePrices) PriceMap(ctx context.Context, assets []common.Address) (map[common.Address]*big.Int, error) {
	out := make(map[common.Address]*big.Int, len(assets))
	for _, asset := range assets {
		out[asset] = wad
	}
	return out, nil
}

type fakeSettings struct{}

func (fakeSettings) UserSettings(ctx context.Context, user common.Address) (model.UserThresholds, error) {
	return model.UserThresholds{RateMode: model.RateModeStable}, nil
}

type registry struct{}

func (registry) ReserveTokens(ctx context.Context, asset common.Address) (model.ReserveTokens, error) {
	return model.ReserveTokens{Wrapped: asset, StableDebt: asset, VariableDebt: asset}, nil
}

type selector struct{}

func (selector) Best(ctx context.Context, amount *big.Int, direction model.QuoteDirection, from, fromWrapped, to, toWrapped common.Address) (model.CandidateQuote, error) {
	return model.CandidateQuote{Path: model.SwapPath{Assets: []common.Address{from, to}}, Amount: amount}, nil
}

type allowances struct{}

func (allowances) CollateralAllowance(ctx context.Context, token, user common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (allowances) BorrowAllowance(ctx context.Context, token, user common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

type execution struct {
	direction model.Direction
	user      common.Address
	rateMode  model.RateMode
	amount    *big.Int
}

type fakeExecutor struct {
	runs []execution
}

func (f *fakeExecutor) Execute(ctx context.Context, flow executor.Flow, amount *big.Int) executor.Result {
	switch fl := flow.(type) {
	case *rebalance.RepayFlow:
		f.runs = append(f.runs, execution{model.DirectionRepay, fl.Plan().User, fl.Plan().RateMode, amount})
	case *rebalance.BorrowFlow:
		f.runs = append(f.runs, execution{model.DirectionBorrow, fl.Plan().User, fl.Plan().RateMode, amount})
	}
	return executor.Result{
		Status:   executor.StatusSubmitted,
		Attempts: 1,
		Amounts:  []*big.Int{amount},
		TxHash:   common.HexToHash("0x1234"),
	}
}

type memSink struct {
	outcomes []model.Outcome
}

func (m *memSink) PutOutcome(ctx context.Context, o model.Outcome) error {
	m.outcomes = append(m.outcomes, o)
	return nil
}

type memState struct {
	mu    sync.Mutex
	saved []indexer.State
}

func (m *memState) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func (m *memState) Load(ctx context.Context) (indexer.State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return indexer.State{}, false, nil
	}
	return m.saved[len(m.saved)-1], true, nil
}

func (m *memState) Save(ctx context.Context, state indexer.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, state)
	return nil
}

func indebted(user common.Address, health *big.Int) model.Snapshot {
	return model.Snapshot{
		User: user,
		Account: model.AccountData{
			TotalCollateral: new(big.Int).Mul(big.NewInt(100), wad),
			TotalDebt:       new(big.Int).Mul(big.NewInt(50), wad),
			HealthFactor:    health,
		},
		Positions: []model.Position{
			{Asset: assetX, VariableDebt: big.NewInt(500)},
			{Asset: assetZ, WrappedBalance: big.NewInt(1000), CollateralEnabled: true},
		},
	}
}

func setting(user common.Address, min, max int64) model.ThresholdEvent {
	return model.ThresholdEvent{User: user, Thresholds: model.UserThresholds{
		Min: hf(min), Target: hf((min + max) / 2), Max: hf(max),
	}}
}

type harness struct {
	bot       *Bot
	scanner   *fakeScanner
	positions *fakePositions
	exec      *fakeExecutor
	sink      *memSink
	state     *memState
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	scanner := &fakeScanner{
		reached: 200,
		events: []model.ThresholdEvent{
			setting(repayer, 1000, 2000),
			setting(lender, 1000, 2000),
			setting(calm, 1000, 2000),
			setting(cleared, 1000, 2000),
			{User: cleared, Thresholds: model.UserThresholds{Min: big.NewInt(0), Target: big.NewInt(0), Max: big.NewInt(0)}},
			setting(both, 5000, 1000),
		},
	}
	positions := &fakePositions{
		snapshots: map[common.Address]model.Snapshot{
			repayer: indebted(repayer, hf(800)),
			lender:  indebted(lender, hf(3000)),
			calm:    indebted(calm, hf(1500)),
			cleared: indebted(cleared, hf(500)),
			both:    indebted(both, hf(3000)),
		},
		failing: map[common.Address]bool{},
	}
	logger := zaptest.NewLogger(t)
	engine := rebalance.NewEngine(registry{}, selector{}, allowances{}, rebalance.Params{SlippageBps: 100, FeeBps: 10, FlashPremiumBps: 9}, logger)
	exec := &fakeExecutor{}
	sink := &memSink{}
	state := &memState{}

	bot := New(Config{Assets: assets, StartBlock: 100, PollInterval: time.Millisecond, RiskTopN: 3}, Deps{
		Scanner:   scanner,
		State:     state,
		Positions: positions,
		Prices:    fakePrices{},
		Settings:  fakeSettings{},
		Flows:     engine,
		Executor:  exec,
		Sink:      sink,
		Logger:    logger,
	})
	return &harness{bot: bot, scanner: scanner, positions: positions, exec: exec, sink: sink, state: state}
}

func TestCycleRunsRepayThenBorrowPass(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.bot.Cycle(context.Background()))

	require.Len(t, h.exec.runs, 3)
	assert.Equal(t, execution{model.DirectionRepay, repayer, model.RateModeVariable, big.NewInt(500)}, h.exec.runs[0])
	assert.Equal(t, model.DirectionRepay, h.exec.runs[1].direction)
	assert.Equal(t, both, h.exec.runs[1].user, "repay wins when both directions match")
	assert.Equal(t, model.DirectionBorrow, h.exec.runs[2].direction)
	assert.Equal(t, lender, h.exec.runs[2].user)
	assert.Equal(t, model.RateModeStable, h.exec.runs[2].rateMode, "rate mode read from adapter settings")

	require.Len(t, h.sink.outcomes, 3)
	assert.Equal(t, model.OutcomeSubmitted, h.sink.outcomes[0].Status)
	assert.Equal(t, []string{"500"}, h.sink.outcomes[0].Amounts)
	assert.Equal(t, common.HexToHash("0x1234").Hex(), h.sink.outcomes[0].TxHash)

	assert.Equal(t, uint64(201), h.bot.NextBlock())
	require.Len(t, h.state.saved, 1)
	assert.Equal(t, uint64(200), h.state.saved[0].LastBlock)
	assert.Len(t, h.state.saved[0].Thresholds, 5)
	assert.Equal(t, 4, h.positions.accounts, "cleared borrower is not monitored")
}

func TestCycleResumesFromReachedBlock(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.bot.Cycle(context.Background()))
	h.scanner.reached = 250
	require.NoError(t, h.bot.Cycle(context.Background()))
	assert.Equal(t, []uint64{100, 201}, h.scanner.froms)
	assert.Equal(t, uint64(251), h.bot.NextBlock())
}

func TestCycleScanFailure(t *testing.T) {
	h := newHarness(t)
	h.scanner.err = errors.New("node down")
	err := h.bot.Cycle(context.Background())
	require.Error(t, err)
	assert.Empty(t, h.exec.runs)
	assert.Equal(t, uint64(100), h.bot.NextBlock())
}

func TestCycleSkipsUnreadableAccounts(t *testing.T) {
	h := newHarness(t)
	h.positions.failing[repayer] = true
	require.NoError(t, h.bot.Cycle(context.Background()))
	for _, run := range h.exec.runs {
		assert.NotEqual(t, repayer, run.user)
	}
	assert.Len(t, h.exec.runs, 2)
}

func TestCycleRecordsPlanningFailure(t *testing.T) {
	h := newHarness(t)
	snap := h.positions.snapshots[repayer]
	snap.Positions[1].CollateralEnabled = false
	h.positions.snapshots[repayer] = snap

	require.NoError(t, h.bot.Cycle(context.Background()))
	require.NotEmpty(t, h.sink.outcomes)
	assert.Equal(t, model.OutcomeFailed, h.sink.outcomes[0].Status)
	assert.Contains(t, h.sink.outcomes[0].Error, rebalance.ErrNoEligibleCollateral.Error())
}

func TestRestoreLoadsState(t *testing.T) {
	h := newHarness(t)
	h.state.saved = []indexer.State{{
		LastBlock:  500,
		Thresholds: []model.UserSetting{{User: calm, Thresholds: setting(calm, 1000, 2000).Thresholds}},
	}}
	require.NoError(t, h.bot.Restore(context.Background()))
	assert.Equal(t, uint64(501), h.bot.NextBlock())
	assert.Equal(t, 1, h.bot.Book().Len())
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.bot.Run(ctx) }()

	require.Eventually(t, func() bool { return h.state.count() >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
}

func TestRiskiest(t *testing.T) {
	accounts := map[common.Address]model.AccountData{
		repayer: {TotalDebt: big.NewInt(1), HealthFactor: hf(1200)},
		lender:  {TotalDebt: big.NewInt(1), HealthFactor: hf(900)},
		calm:    {TotalDebt: big.NewInt(0), HealthFactor: hf(100)},
		both:    {TotalDebt: big.NewInt(1), HealthFactor: hf(1100)},
		cleared: {TotalDebt: big.NewInt(1), HealthFactor: hf(5000)},
	}
	users := []common.Address{repayer, lender, calm, both, cleared}
	got := Riskiest(users, accounts, 3)
	require.Len(t, got, 3)
	assert.Equal(t, lender, got[0].User)
	assert.Equal(t, both, got[1].User)
	assert.Equal(t, repayer, got[2].User)
}

func TestFormatHealthFactor(t *testing.T) {
	assert.Equal(t, "0.8000", FormatHealthFactor(hf(800)))
	assert.Equal(t, "unknown", FormatHealthFactor(nil))
	noDebt := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	assert.Equal(t, "inf", FormatHealthFactor(noDebt))
}
