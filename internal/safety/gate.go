package safety

import (
	"encoding/json"
	"sync"
	"time"

	"maestro/internal/logger"
)

type State int

const (
	StateNormal State = iota
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateHalted:
		return "HALTED"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Status is a point-in-time copy of the gate. HaltedAt is set exactly when
// State is HALTED.
type Status struct {
	State    State      `json:"state"`
	HaltedAt *time.Time `json:"halted_at,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

func (st Status) Halted() bool { return st.State == StateHalted }

// Gate is the process-wide emergency stop. All transitions go through one
// mutex; there is no terminal state, HALTED always accepts Resume.
type Gate struct {
	mu       sync.Mutex
	state    State
	haltedAt *time.Time
	reason   string

	store    *stateFile
	nowFn    func() time.Time
	onChange func(from, to State, reason string)
}

// NewGate restores the persisted switch position from path. A missing file
// means a fresh deployment and starts NORMAL; an unreadable or corrupt file
// starts HALTED, the failure mode that cannot lose money.
func NewGate(path string) (*Gate, error) {
	g := &Gate{nowFn: time.Now}
	if path == "" {
		return g, nil
	}
	g.store = newStateFile(path)
	loaded, found, err := g.store.load()
	switch {
	case err != nil:
		now := g.nowFn().UTC()
		g.state = StateHalted
		g.haltedAt = &now
		g.reason = "safety state unreadable at startup"
		logger.Errorf("safety: state file %s unreadable (%v), starting HALTED", path, err)
		if perr := g.persistLocked(); perr != nil {
			return nil, perr
		}
	case found:
		g.state = StateNormal
		if loaded.Halted {
			g.state = StateHalted
			g.haltedAt = loaded.HaltedAt
			g.reason = loaded.Reason
			if g.haltedAt == nil {
				now := g.nowFn().UTC()
				g.haltedAt = &now
			}
			logger.Warnf("safety: restored HALTED state from %s (reason: %s)", path, g.reason)
		}
	default:
		if perr := g.persistLocked(); perr != nil {
			return nil, perr
		}
	}
	return g, nil
}

// SetChangeHandler registers a hook invoked after every actual transition,
// outside the gate mutex.
func (g *Gate) SetChangeHandler(fn func(from, to State, reason string)) {
	g.mu.Lock()
	g.onChange = fn
	g.mu.Unlock()
}

// Halt flips the gate to HALTED. Calling it while already halted changes
// nothing, the original timestamp and reason stay in place.
func (g *Gate) Halt(reason string) Status {
	g.mu.Lock()
	if g.state == StateHalted {
		st := g.statusLocked()
		g.mu.Unlock()
		return st
	}
	now := g.nowFn().UTC()
	g.state = StateHalted
	g.haltedAt = &now
	g.reason = reason
	if err := g.persistLocked(); err != nil {
		logger.Errorf("safety: persisting HALTED state failed: %v", err)
	}
	st := g.statusLocked()
	hook := g.onChange
	g.mu.Unlock()

	logger.Warnf("safety: gate HALTED (reason: %s)", reason)
	if hook != nil {
		hook(StateNormal, StateHalted, reason)
	}
	return st
}

// Resume flips the gate back to NORMAL. Calling it while already normal
// changes nothing.
func (g *Gate) Resume() Status {
	g.mu.Lock()
	if g.state == StateNormal {
		st := g.statusLocked()
		g.mu.Unlock()
		return st
	}
	reason := g.reason
	g.state = StateNormal
	g.haltedAt = nil
	g.reason = ""
	if err := g.persistLocked(); err != nil {
		logger.Errorf("safety: persisting NORMAL state failed: %v", err)
	}
	st := g.statusLocked()
	hook := g.onChange
	g.mu.Unlock()

	logger.Infof("safety: gate resumed to NORMAL (was halted for: %s)", reason)
	if hook != nil {
		hook(StateHalted, StateNormal, reason)
	}
	return st
}

// CanProceed reports whether a decision cycle may run its trading arm.
func (g *Gate) CanProceed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == StateNormal
}

func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusLocked()
}

func (g *Gate) statusLocked() Status {
	st := Status{State: g.state, Reason: g.reason}
	if g.haltedAt != nil {
		at := *g.haltedAt
		st.HaltedAt = &at
	}
	return st
}

func (g *Gate) persistLocked() error {
	if g.store == nil {
		return nil
	}
	return g.store.save(persistedState{
		Halted:   g.state == StateHalted,
		HaltedAt: g.haltedAt,
		Reason:   g.reason,
	})
}
