package monitor

import (
	"context"
	"fmt"
	"time"

	"maestro/internal/exchange"
	"maestro/internal/logger"
	"maestro/internal/memory"
	"maestro/internal/retrain"
	"maestro/internal/safety"
	"maestro/internal/scheduler"
	"maestro/internal/signal"
)

// EventMemory is the slice of the event memory the monitor touches.
type EventMemory interface {
	Stats(ctx context.Context) (memory.Stats, error)
	AppendSystemEvent(ctx context.Context, evt memory.SystemEvent) error
}

// RetrainStatus exposes the scheduler's current state.
type RetrainStatus interface {
	Status() retrain.Status
}

// DecisionSource reports the most recent decision, if one exists.
type DecisionSource interface {
	LastDecision() (signal.Decision, bool)
}

// Params collects the monitor's dependencies.
type Params struct {
	Interval time.Duration
	Gate     *safety.Gate
	Memory   EventMemory
	Retrain  RetrainStatus
	Exchange exchange.Exchange
	Engine   DecisionSource
}

// Snapshot is one periodic health observation.
type Snapshot struct {
	GateState          string    `json:"gate_state"`
	GateReason         string    `json:"gate_reason,omitempty"`
	ModelVersion       string    `json:"model_version"`
	Training           bool      `json:"training"`
	TradesSinceRetrain int       `json:"trades_since_retrain"`
	SignalBatches      int64     `json:"signal_batches"`
	Trades             int64     `json:"trades"`
	SystemEvents       int64     `json:"system_events"`
	CashUSD            float64   `json:"cash_usd"`
	PositionQty        float64   `json:"position_qty"`
	EquityUSD          float64   `json:"equity_usd"`
	LastAction         string    `json:"last_action,omitempty"`
	LastTraceID        string    `json:"last_trace_id,omitempty"`
	CollectedAt        time.Time `json:"collected_at"`
}

// Monitor logs a status line on a fixed cadence and files it as a
// monitor_snapshot event. It reads shared state but never drives it, so a
// slow observation cannot stall a decision cycle.
type Monitor struct {
	p     Params
	log   logger.Component
	nowFn func() time.Time
}

func New(p Params) (*Monitor, error) {
	switch {
	case p.Interval <= 0:
		return nil, fmt.Errorf("monitor interval must be positive, got %s", p.Interval)
	case p.Gate == nil:
		return nil, fmt.Errorf("monitor requires the safety gate")
	case p.Memory == nil:
		return nil, fmt.Errorf("monitor requires the event memory")
	case p.Retrain == nil:
		return nil, fmt.Errorf("monitor requires the retrain scheduler")
	case p.Exchange == nil:
		return nil, fmt.Errorf("monitor requires the exchange")
	case p.Engine == nil:
		return nil, fmt.Errorf("monitor requires the engine")
	}
	return &Monitor{p: p, log: logger.For("monitor"), nowFn: time.Now}, nil
}

// Run blocks until ctx is done, observing once per interval.
func (m *Monitor) Run(ctx context.Context) error {
	sched := scheduler.NewIntervalScheduler(ctx, "monitor", m.p.Interval)
	sched.Start(func() {
		m.Observe(ctx)
	})
	return ctx.Err()
}

// Observe collects one snapshot, logs it and records it as a system event.
// Partial failures degrade the snapshot but never propagate.
func (m *Monitor) Observe(ctx context.Context) Snapshot {
	snap := m.Collect(ctx)

	m.log.Infof("gate=%s model=%s trades_since_retrain=%d batches=%d trades=%d cash=%.2f equity=%.2f last=%s",
		snap.GateState, snap.ModelVersion, snap.TradesSinceRetrain,
		snap.SignalBatches, snap.Trades, snap.CashUSD, snap.EquityUSD, snap.LastAction)

	evt := memory.SystemEvent{
		Kind:    "monitor_snapshot",
		Message: fmt.Sprintf("gate=%s model=%s equity=%.2f", snap.GateState, snap.ModelVersion, snap.EquityUSD),
		Payload: snap.payload(),
	}
	if err := m.p.Memory.AppendSystemEvent(ctx, evt); err != nil {
		m.log.Warnf("recording monitor snapshot: %v", err)
	}
	return snap
}

// Collect gathers the current snapshot without logging or persisting it.
func (m *Monitor) Collect(ctx context.Context) Snapshot {
	snap := Snapshot{CollectedAt: m.nowFn().UTC()}

	status := m.p.Gate.Status()
	snap.GateState = status.State.String()
	snap.GateReason = status.Reason

	rs := m.p.Retrain.Status()
	snap.ModelVersion = rs.Version
	snap.Training = rs.Training
	snap.TradesSinceRetrain = rs.TradesSinceRetrain

	if stats, err := m.p.Memory.Stats(ctx); err != nil {
		m.log.Warnf("reading memory stats: %v", err)
	} else {
		snap.SignalBatches = stats.SignalBatches
		snap.Trades = stats.Trades
		snap.SystemEvents = stats.SystemEvents
	}

	if bal, err := m.p.Exchange.Balance(ctx); err != nil {
		m.log.Warnf("reading balance: %v", err)
	} else {
		snap.CashUSD = bal.CashUSD
		snap.PositionQty = bal.PositionQty
		snap.EquityUSD = bal.EquityUSD
	}

	if last, ok := m.p.Engine.LastDecision(); ok {
		snap.LastAction = string(last.Action)
		snap.LastTraceID = last.TraceID
	}
	return snap
}

func (s Snapshot) payload() map[string]any {
	out := map[string]any{
		"gate_state":           s.GateState,
		"model_version":        s.ModelVersion,
		"training":             s.Training,
		"trades_since_retrain": s.TradesSinceRetrain,
		"signal_batches":       s.SignalBatches,
		"trades":               s.Trades,
		"cash_usd":             s.CashUSD,
		"position_qty":         s.PositionQty,
		"equity_usd":           s.EquityUSD,
	}
	if s.GateReason != "" {
		out["gate_reason"] = s.GateReason
	}
	if s.LastAction != "" {
		out["last_action"] = s.LastAction
		out["last_trace_id"] = s.LastTraceID
	}
	return out
}
