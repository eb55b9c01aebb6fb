package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"maestro/internal/analyzer"
	"maestro/internal/consensus"
	"maestro/internal/exchange"
	"maestro/internal/market"
	"maestro/internal/memory"
	"maestro/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) AppendSignalBatch(ctx context.Context, batch memory.SignalBatch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *MockRecorder) AppendTrade(ctx context.Context, trade memory.Trade) error {
	args := m.Called(ctx, trade)
	return args.Error(0)
}

func (m *MockRecorder) AppendSystemEvent(ctx context.Context, evt memory.SystemEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

type MockRetrain struct {
	mock.Mock
}

func (m *MockRetrain) ObserveTrade(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockRetrain) Version() string {
	return m.Called().String(0)
}

type gateStub bool

func (g gateStub) CanProceed() bool { return bool(g) }

type providerStub struct {
	snap market.Snapshot
}

func (p providerStub) Snapshot(ctx context.Context) market.Snapshot { return p.snap }

type tableSource consensus.WeightTable

func (s tableSource) Table() consensus.WeightTable { return consensus.WeightTable(s) }

type voteAnalyzer struct {
	name  string
	act   signal.Action
	conf  float64
	err   error
	calls int
}

func (a *voteAnalyzer) Name() string { return a.name }

func (a *voteAnalyzer) Analyze(ctx context.Context, snap market.Snapshot) (signal.Signal, error) {
	a.calls++
	if a.err != nil {
		return signal.Signal{}, a.err
	}
	return signal.Signal{Action: a.act, Confidence: a.conf, Reason: "vote " + string(a.act)}, nil
}

func testSnapshot() market.Snapshot {
	return market.Snapshot{Symbol: "BTCUSDT", Price: 64000, FetchedAt: time.Now()}
}

func testConfig() Config {
	return Config{
		Symbol:        "BTCUSDT",
		Cycle:         30 * time.Second,
		CycleTimeout:  20 * time.Second,
		MinConfidence: 0.6,
		OrderSizeUSD:  100,
	}
}

func newTestEngine(t *testing.T, p Params) *Engine {
	t.Helper()
	if p.Config.Symbol == "" {
		p.Config = testConfig()
	}
	if p.Gate == nil {
		p.Gate = gateStub(true)
	}
	if p.Weights == nil {
		p.Weights = tableSource{}
	}
	if p.Market == nil {
		p.Market = providerStub{snap: testSnapshot()}
	}
	if p.Exchange == nil {
		paper, err := exchange.NewPaper(10000, nil)
		require.NoError(t, err)
		p.Exchange = paper
	}
	e, err := New(p)
	require.NoError(t, err)
	return e
}

func TestRunCycleHaltedHoldsAndPersists(t *testing.T) {
	rec := new(MockRecorder)
	ret := new(MockRetrain)
	probe := &voteAnalyzer{name: "indicator", act: signal.ActionBuy, conf: 0.9}
	reg, err := analyzer.NewRegistry(probe)
	require.NoError(t, err)

	rec.On("AppendSignalBatch", mock.Anything, mock.MatchedBy(func(b memory.SignalBatch) bool {
		return b.Decision.Halted && b.Decision.Action == signal.ActionHold && len(b.Signals) == 0
	})).Return(nil)

	e := newTestEngine(t, Params{Gate: gateStub(false), Analyzers: reg, Memory: rec, Retrain: ret})

	d, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, signal.ActionHold, d.Action)
	assert.Equal(t, 0.0, d.Confidence)
	assert.True(t, d.Halted)
	assert.Equal(t, "halted", d.Reason())
	assert.Equal(t, 0, probe.calls, "analyzers must not run while halted")

	rec.AssertExpectations(t)
	ret.AssertNotCalled(t, "ObserveTrade", mock.Anything)

	last, ok := e.LastDecision()
	require.True(t, ok)
	assert.Equal(t, d.TraceID, last.TraceID)
}

func TestRunCycleBuyExecutesAndNotifiesRetrain(t *testing.T) {
	rec := new(MockRecorder)
	ret := new(MockRetrain)
	reg, err := analyzer.NewRegistry(
		&voteAnalyzer{name: "indicator", act: signal.ActionBuy, conf: 0.9},
		&voteAnalyzer{name: "pattern", act: signal.ActionBuy, conf: 0.7},
	)
	require.NoError(t, err)

	rec.On("AppendSignalBatch", mock.Anything, mock.MatchedBy(func(b memory.SignalBatch) bool {
		return b.Decision.Action == signal.ActionBuy && len(b.Signals) == 2 && b.Symbol == "BTCUSDT"
	})).Return(nil)
	rec.On("AppendTrade", mock.Anything, mock.MatchedBy(func(tr memory.Trade) bool {
		return tr.Side == exchange.SideBuy && tr.ModelVersion == "v1-test" && tr.NotionalUSD > 99
	})).Return(nil)
	ret.On("Version").Return("v1-test")
	ret.On("ObserveTrade", mock.Anything).Return()

	e := newTestEngine(t, Params{Analyzers: reg, Memory: rec, Retrain: ret})

	d, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, signal.ActionBuy, d.Action)
	assert.InDelta(t, 0.8, d.Confidence, 1e-9)
	assert.False(t, d.Halted)
	assert.False(t, d.Degraded)
	require.Len(t, d.Contributions, 2)
	assert.Equal(t, "indicator", d.Contributions[0].Source)

	rec.AssertExpectations(t)
	ret.AssertExpectations(t)
	ret.AssertNumberOfCalls(t, "ObserveTrade", 1)
}

func TestRunCycleLowConfidenceDoesNotTrade(t *testing.T) {
	rec := new(MockRecorder)
	ret := new(MockRetrain)
	reg, err := analyzer.NewRegistry(
		&voteAnalyzer{name: "indicator", act: signal.ActionSell, conf: 0.5},
		&voteAnalyzer{name: "pattern", act: signal.ActionHold, conf: 0.2},
	)
	require.NoError(t, err)

	rec.On("AppendSignalBatch", mock.Anything, mock.Anything).Return(nil)

	e := newTestEngine(t, Params{Analyzers: reg, Memory: rec, Retrain: ret})

	d, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, signal.ActionSell, d.Action)
	assert.Less(t, d.Confidence, 0.6)

	rec.AssertNotCalled(t, "AppendTrade", mock.Anything, mock.Anything)
	ret.AssertNotCalled(t, "ObserveTrade", mock.Anything)
}

func TestRunCyclePersistenceFailureDegrades(t *testing.T) {
	rec := new(MockRecorder)
	ret := new(MockRetrain)
	reg, err := analyzer.NewRegistry(&voteAnalyzer{name: "indicator", act: signal.ActionBuy, conf: 0.9})
	require.NoError(t, err)

	rec.On("AppendSignalBatch", mock.Anything, mock.Anything).Return(memory.ErrPersistence)
	rec.On("AppendTrade", mock.Anything, mock.Anything).Return(nil)
	ret.On("Version").Return("v1-test")
	ret.On("ObserveTrade", mock.Anything).Return()

	e := newTestEngine(t, Params{Analyzers: reg, Memory: rec, Retrain: ret})

	d, err := e.RunCycle(context.Background())
	require.NoError(t, err, "a persistence fault must not abort the cycle")
	assert.Equal(t, signal.ActionBuy, d.Action, "the decision survives the fault")
	assert.True(t, d.Degraded)
}

func TestRunCycleAnalyzerFaultIsSubstituted(t *testing.T) {
	rec := new(MockRecorder)
	ret := new(MockRetrain)
	reg, err := analyzer.NewRegistry(
		&voteAnalyzer{name: "indicator", err: errors.New("feed exploded")},
		&voteAnalyzer{name: "pattern", act: signal.ActionHold, conf: 0.4},
	)
	require.NoError(t, err)

	var captured memory.SignalBatch
	rec.On("AppendSignalBatch", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(memory.SignalBatch)
	}).Return(nil)

	e := newTestEngine(t, Params{Analyzers: reg, Memory: rec, Retrain: ret})

	d, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, signal.ActionHold, d.Action)

	require.Len(t, captured.Signals, 2)
	assert.Equal(t, "indicator", captured.Signals[0].Source)
	assert.Equal(t, signal.ActionHold, captured.Signals[0].Action)
	assert.Equal(t, 0.0, captured.Signals[0].Confidence)
	assert.Equal(t, "error: feed exploded", captured.Signals[0].Reason)
}

func TestRunCycleOrderRejectionIsNotFatal(t *testing.T) {
	rec := new(MockRecorder)
	ret := new(MockRetrain)
	reg, err := analyzer.NewRegistry(&voteAnalyzer{name: "indicator", act: signal.ActionBuy, conf: 0.95})
	require.NoError(t, err)

	rec.On("AppendSignalBatch", mock.Anything, mock.Anything).Return(nil)

	// 10 USD of cash cannot cover a 100 USD order.
	broke, err := exchange.NewPaper(10, nil)
	require.NoError(t, err)

	e := newTestEngine(t, Params{Analyzers: reg, Memory: rec, Retrain: ret, Exchange: broke})

	d, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, signal.ActionBuy, d.Action)
	assert.False(t, d.Degraded)

	rec.AssertNotCalled(t, "AppendTrade", mock.Anything, mock.Anything)
	ret.AssertNotCalled(t, "ObserveTrade", mock.Anything)
}

func TestRunCycleMidCycleHaltRecordsViolation(t *testing.T) {
	rec := new(MockRecorder)
	ret := new(MockRetrain)
	reg, err := analyzer.NewRegistry(&voteAnalyzer{name: "indicator", act: signal.ActionBuy, conf: 0.95})
	require.NoError(t, err)

	rec.On("AppendSignalBatch", mock.Anything, mock.Anything).Return(nil)
	rec.On("AppendSystemEvent", mock.Anything, mock.MatchedBy(func(evt memory.SystemEvent) bool {
		return evt.Kind == "safety_violation"
	})).Return(nil)

	// The engine's gate allows the cycle, but the exchange guard sees a halt
	// that landed after the gate check.
	paper, err := exchange.NewPaper(10000, gateStub(false))
	require.NoError(t, err)

	e := newTestEngine(t, Params{Analyzers: reg, Memory: rec, Retrain: ret, Exchange: paper})

	d, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, signal.ActionBuy, d.Action)

	rec.AssertExpectations(t)
	rec.AssertNotCalled(t, "AppendTrade", mock.Anything, mock.Anything)
	ret.AssertNotCalled(t, "ObserveTrade", mock.Anything)
}

func TestRunCycleNoPriceSkipsOrder(t *testing.T) {
	rec := new(MockRecorder)
	ret := new(MockRetrain)
	reg, err := analyzer.NewRegistry(&voteAnalyzer{name: "indicator", act: signal.ActionBuy, conf: 0.95})
	require.NoError(t, err)

	rec.On("AppendSignalBatch", mock.Anything, mock.Anything).Return(nil)

	e := newTestEngine(t, Params{
		Analyzers: reg,
		Memory:    rec,
		Retrain:   ret,
		Market:    providerStub{snap: market.Snapshot{Symbol: "BTCUSDT"}},
	})

	_, err = e.RunCycle(context.Background())
	require.NoError(t, err)
	rec.AssertNotCalled(t, "AppendTrade", mock.Anything, mock.Anything)
}

func TestRunLoopTicksUntilCancelled(t *testing.T) {
	rec := new(MockRecorder)
	ret := new(MockRetrain)
	reg, err := analyzer.NewRegistry(&voteAnalyzer{name: "indicator", act: signal.ActionHold, conf: 0.3})
	require.NoError(t, err)

	rec.On("AppendSignalBatch", mock.Anything, mock.Anything).Return(nil)

	cfg := testConfig()
	cfg.Cycle = 10 * time.Millisecond
	e := newTestEngine(t, Params{Config: cfg, Analyzers: reg, Memory: rec, Retrain: ret})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(80 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop after cancellation")
	}

	assert.GreaterOrEqual(t, len(rec.Calls), 2, "expected multiple cycles before cancellation")
}

func TestNewValidatesDependencies(t *testing.T) {
	reg, err := analyzer.NewRegistry(&voteAnalyzer{name: "indicator", act: signal.ActionHold, conf: 0.3})
	require.NoError(t, err)
	rec := new(MockRecorder)
	ret := new(MockRetrain)
	paper, err := exchange.NewPaper(1000, nil)
	require.NoError(t, err)

	base := Params{
		Config:    testConfig(),
		Gate:      gateStub(true),
		Analyzers: reg,
		Weights:   tableSource{},
		Market:    providerStub{snap: testSnapshot()},
		Memory:    rec,
		Exchange:  paper,
		Retrain:   ret,
	}

	_, err = New(base)
	assert.NoError(t, err)

	for name, mutate := range map[string]func(*Params){
		"missing gate":      func(p *Params) { p.Gate = nil },
		"missing analyzers": func(p *Params) { p.Analyzers = nil },
		"missing weights":   func(p *Params) { p.Weights = nil },
		"missing market":    func(p *Params) { p.Market = nil },
		"missing memory":    func(p *Params) { p.Memory = nil },
		"missing exchange":  func(p *Params) { p.Exchange = nil },
		"missing retrain":   func(p *Params) { p.Retrain = nil },
		"zero cycle":        func(p *Params) { p.Config.Cycle = 0 },
	} {
		p := base
		mutate(&p)
		_, err := New(p)
		assert.Error(t, err, name)
	}
}
