package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"maestro/internal/analyzer"
	"maestro/internal/consensus"
	"maestro/internal/exchange"
	"maestro/internal/logger"
	"maestro/internal/market"
	"maestro/internal/memory"
	"maestro/internal/scheduler"
	"maestro/internal/signal"

	"github.com/google/uuid"
)

// SafetyGate answers one question at the top of every cycle.
type SafetyGate interface {
	CanProceed() bool
}

// SnapshotProvider supplies the market view a cycle works from.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) market.Snapshot
}

// WeightSource yields the current per-analyzer weight table. The engine
// captures it once per cycle so a hot reload cannot split one aggregation.
type WeightSource interface {
	Table() consensus.WeightTable
}

// Recorder is the slice of the event memory the engine writes to.
type Recorder interface {
	AppendSignalBatch(ctx context.Context, batch memory.SignalBatch) error
	AppendTrade(ctx context.Context, trade memory.Trade) error
	AppendSystemEvent(ctx context.Context, evt memory.SystemEvent) error
}

// RetrainNotifier hears about executed trades and stamps them with the
// active model version.
type RetrainNotifier interface {
	ObserveTrade(ctx context.Context)
	Version() string
}

// Config is the engine's slice of the application config.
type Config struct {
	Symbol        string
	Cycle         time.Duration
	CycleTimeout  time.Duration
	MinConfidence float64
	OrderSizeUSD  float64
}

// Params collects the engine's dependencies for construction.
type Params struct {
	Config    Config
	Gate      SafetyGate
	Analyzers *analyzer.Registry
	Weights   WeightSource
	Market    SnapshotProvider
	Memory    Recorder
	Exchange  exchange.Exchange
	Retrain   RetrainNotifier
}

// Engine drives the decision loop: gate check, signal collection, weighted
// aggregation, persistence, and (when allowed) order execution.
type Engine struct {
	cfg       Config
	gate      SafetyGate
	analyzers *analyzer.Registry
	weights   WeightSource
	market    SnapshotProvider
	memory    Recorder
	exchange  exchange.Exchange
	retrain   RetrainNotifier
	log       logger.Component
	nowFn     func() time.Time
	idFn      func() string

	mu   sync.Mutex
	last *signal.Decision
}

func New(p Params) (*Engine, error) {
	switch {
	case p.Gate == nil:
		return nil, fmt.Errorf("engine: safety gate is required")
	case p.Analyzers == nil:
		return nil, fmt.Errorf("engine: analyzer registry is required")
	case p.Weights == nil:
		return nil, fmt.Errorf("engine: weight source is required")
	case p.Market == nil:
		return nil, fmt.Errorf("engine: market provider is required")
	case p.Memory == nil:
		return nil, fmt.Errorf("engine: event memory is required")
	case p.Exchange == nil:
		return nil, fmt.Errorf("engine: exchange is required")
	case p.Retrain == nil:
		return nil, fmt.Errorf("engine: retrain scheduler is required")
	case p.Config.Symbol == "":
		return nil, fmt.Errorf("engine: symbol is required")
	case p.Config.Cycle <= 0:
		return nil, fmt.Errorf("engine: cycle interval must be positive, got %s", p.Config.Cycle)
	case p.Config.CycleTimeout <= 0:
		return nil, fmt.Errorf("engine: cycle timeout must be positive, got %s", p.Config.CycleTimeout)
	}
	return &Engine{
		cfg:       p.Config,
		gate:      p.Gate,
		analyzers: p.Analyzers,
		weights:   p.Weights,
		market:    p.Market,
		memory:    p.Memory,
		exchange:  p.Exchange,
		retrain:   p.Retrain,
		log:       logger.For("engine"),
		nowFn:     time.Now,
		idFn:      uuid.NewString,
	}, nil
}

// Run blocks, executing one cycle per interval until ctx is done. Each cycle
// body gets its own timeout detached from ctx so a shutdown mid-cycle lets
// the persist stage finish.
func (e *Engine) Run(ctx context.Context) error {
	sched := scheduler.NewIntervalScheduler(ctx, "decision-loop", e.cfg.Cycle)
	sched.RunImmediately = true
	sched.Start(func() {
		cycleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.CycleTimeout)
		defer cancel()
		if _, err := e.RunCycle(cycleCtx); err != nil {
			e.log.Errorf("cycle abandoned: %v", err)
		}
	})
	return ctx.Err()
}

// RunCycle executes exactly one decision cycle and returns its decision.
// A halted gate still produces and persists a HOLD decision; analyzer faults
// never abort the cycle; a persistence fault degrades the cycle but the
// decision is returned regardless.
func (e *Engine) RunCycle(ctx context.Context) (signal.Decision, error) {
	start := e.nowFn()
	traceID := e.idFn()

	if !e.gate.CanProceed() {
		decision := signal.Decision{
			Action:     signal.ActionHold,
			Confidence: 0,
			TraceID:    traceID,
			DecidedAt:  start.UTC(),
			Halted:     true,
		}
		e.persistBatch(ctx, &decision, nil)
		e.remember(decision)
		e.log.Infof("cycle %s: halted, holding (duration=%s)", traceID, time.Since(start).Truncate(time.Millisecond))
		return decision, nil
	}

	table := e.weights.Table()
	snap := e.market.Snapshot(ctx)
	signals := e.analyzers.Collect(ctx, snap)

	outcome, err := consensus.Aggregate(signals, table)
	if err != nil {
		return signal.Decision{}, fmt.Errorf("aggregate failed: %w", err)
	}
	decision := signal.Decision{
		Action:        outcome.Action,
		Confidence:    outcome.Confidence,
		Contributions: outcome.Contributions,
		TraceID:       traceID,
		DecidedAt:     start.UTC(),
	}

	e.persistBatch(ctx, &decision, signals)
	e.maybeTrade(ctx, &decision, snap)
	e.remember(decision)

	e.log.Infof("cycle %s: %s confidence=%.2f signals=%d degraded=%v duration=%s",
		traceID, decision.Action, decision.Confidence, len(signals), decision.Degraded,
		time.Since(start).Truncate(time.Millisecond))
	return decision, nil
}

func (e *Engine) persistBatch(ctx context.Context, decision *signal.Decision, signals []signal.Signal) {
	batch := memory.SignalBatch{
		TraceID:   decision.TraceID,
		Symbol:    e.cfg.Symbol,
		Decision:  *decision,
		Signals:   signals,
		CreatedAt: decision.DecidedAt,
	}
	if err := e.memory.AppendSignalBatch(ctx, batch); err != nil {
		decision.Degraded = true
		e.log.Errorf("cycle %s: persisting signal batch: %v", decision.TraceID, err)
	}
}

// maybeTrade routes an order when the decision is actionable. It is only
// reachable from the non-halted arm of RunCycle.
func (e *Engine) maybeTrade(ctx context.Context, decision *signal.Decision, snap market.Snapshot) {
	if decision.Action != signal.ActionBuy && decision.Action != signal.ActionSell {
		return
	}
	if decision.Confidence < e.cfg.MinConfidence {
		e.log.Debugf("cycle %s: %s confidence %.2f below floor %.2f, not trading",
			decision.TraceID, decision.Action, decision.Confidence, e.cfg.MinConfidence)
		return
	}
	if snap.Price <= 0 {
		e.log.Warnf("cycle %s: no market price, skipping %s order", decision.TraceID, decision.Action)
		return
	}

	side := exchange.SideBuy
	if decision.Action == signal.ActionSell {
		side = exchange.SideSell
	}
	res, err := e.exchange.PlaceOrder(ctx, exchange.OrderRequest{
		TraceID:     decision.TraceID,
		Symbol:      e.cfg.Symbol,
		Side:        side,
		NotionalUSD: e.cfg.OrderSizeUSD,
		Price:       snap.Price,
	})
	if errors.Is(err, exchange.ErrTradingHalted) {
		// A halt landed between the gate check and the order. The exchange
		// guard caught it; record the near miss.
		e.log.Errorf("cycle %s: order %s refused by halted exchange", decision.TraceID, side)
		evt := memory.SystemEvent{
			Kind:    "safety_violation",
			Message: fmt.Sprintf("order %s %s refused, gate halted mid-cycle", side, e.cfg.Symbol),
			Payload: map[string]any{"trace_id": decision.TraceID, "side": side},
		}
		if evtErr := e.memory.AppendSystemEvent(ctx, evt); evtErr != nil {
			e.log.Errorf("cycle %s: recording safety violation: %v", decision.TraceID, evtErr)
		}
		return
	}
	if err != nil {
		e.log.Warnf("cycle %s: order %s rejected: %v", decision.TraceID, side, err)
		return
	}

	trade := memory.Trade{
		TraceID:      decision.TraceID,
		Symbol:       res.Symbol,
		Side:         res.Side,
		Quantity:     res.Quantity,
		Price:        res.Price,
		NotionalUSD:  res.NotionalUSD,
		ModelVersion: e.retrain.Version(),
		CreatedAt:    res.ExecutedAt,
	}
	if err := e.memory.AppendTrade(ctx, trade); err != nil {
		decision.Degraded = true
		e.log.Errorf("cycle %s: persisting trade: %v", decision.TraceID, err)
	}
	e.retrain.ObserveTrade(ctx)
}

func (e *Engine) remember(d signal.Decision) {
	e.mu.Lock()
	e.last = &d
	e.mu.Unlock()
}

// LastDecision returns the most recent decision of this process, if any.
func (e *Engine) LastDecision() (signal.Decision, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return signal.Decision{}, false
	}
	return *e.last, true
}
