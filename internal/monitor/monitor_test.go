package monitor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"maestro/internal/exchange"
	"maestro/internal/memory"
	"maestro/internal/retrain"
	"maestro/internal/safety"
	"maestro/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type retrainStub struct{ st retrain.Status }

func (r retrainStub) Status() retrain.Status { return r.st }

type engineStub struct {
	d  signal.Decision
	ok bool
}

func (e engineStub) LastDecision() (signal.Decision, bool) { return e.d, e.ok }

func TestObserveRecordsSnapshot(t *testing.T) {
	dir := t.TempDir()
	gate, err := safety.NewGate(filepath.Join(dir, "safety_state.json"))
	require.NoError(t, err)
	mem, err := memory.Open(filepath.Join(dir, "memory.db"))
	require.NoError(t, err)
	defer mem.Close()
	paper, err := exchange.NewPaper(10000, nil)
	require.NoError(t, err)

	m, err := New(Params{
		Interval: 10 * time.Minute,
		Gate:     gate,
		Memory:   mem,
		Retrain:  retrainStub{st: retrain.Status{Version: "v1-test", TradesSinceRetrain: 3}},
		Exchange: paper,
		Engine:   engineStub{d: signal.Decision{Action: signal.ActionBuy, TraceID: "t-1"}, ok: true},
	})
	require.NoError(t, err)

	snap := m.Observe(context.Background())
	assert.Equal(t, "NORMAL", snap.GateState)
	assert.Equal(t, "v1-test", snap.ModelVersion)
	assert.Equal(t, 3, snap.TradesSinceRetrain)
	assert.InDelta(t, 10000, snap.CashUSD, 1e-9)
	assert.Equal(t, "BUY", snap.LastAction)
	assert.Equal(t, "t-1", snap.LastTraceID)
	assert.False(t, snap.CollectedAt.IsZero())

	events, err := mem.Events(context.Background(), "monitor_snapshot", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "v1-test", events[0].Payload["model_version"])
	assert.Equal(t, "NORMAL", events[0].Payload["gate_state"])
}

func TestObserveReflectsHaltedGate(t *testing.T) {
	dir := t.TempDir()
	gate, err := safety.NewGate(filepath.Join(dir, "safety_state.json"))
	require.NoError(t, err)
	gate.Halt("manual stop")
	mem, err := memory.Open(filepath.Join(dir, "memory.db"))
	require.NoError(t, err)
	defer mem.Close()
	paper, err := exchange.NewPaper(500, nil)
	require.NoError(t, err)

	m, err := New(Params{
		Interval: time.Minute,
		Gate:     gate,
		Memory:   mem,
		Retrain:  retrainStub{st: retrain.Status{Version: "v2-test"}},
		Exchange: paper,
		Engine:   engineStub{},
	})
	require.NoError(t, err)

	snap := m.Observe(context.Background())
	assert.Equal(t, "HALTED", snap.GateState)
	assert.Equal(t, "manual stop", snap.GateReason)
	assert.Empty(t, snap.LastAction)

	events, err := mem.Events(context.Background(), "monitor_snapshot", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "manual stop", events[0].Payload["gate_reason"])
}

func TestNewValidatesParams(t *testing.T) {
	_, err := New(Params{})
	require.Error(t, err)
}
