package signal

import (
	"strings"
	"time"
)

// Action is the vote an analyzer casts and the verdict a cycle settles on.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Priority fixes the deterministic tie-break order used when two actions
// end a cycle with exactly equal scores.
var Priority = []Action{ActionBuy, ActionSell, ActionHold}

// ParseAction normalizes free-form input to a known Action.
func ParseAction(s string) (Action, bool) {
	switch Action(strings.ToUpper(strings.TrimSpace(s))) {
	case ActionBuy:
		return ActionBuy, true
	case ActionSell:
		return ActionSell, true
	case ActionHold:
		return ActionHold, true
	}
	return "", false
}

func (a Action) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionHold:
		return true
	}
	return false
}

func (a Action) String() string { return string(a) }

// Signal is one analyzer's vote for a single cycle. Instances are value
// types and never mutated after the registry hands them out.
type Signal struct {
	Source     string  `json:"source"`
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Contribution keeps one analyzer's reasoning attached to the decision it
// flowed into, in registry order.
type Contribution struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// Decision is the single outcome of one decision cycle.
type Decision struct {
	Action        Action         `json:"action"`
	Confidence    float64        `json:"confidence"`
	Contributions []Contribution `json:"contributions,omitempty"`
	TraceID       string         `json:"trace_id"`
	DecidedAt     time.Time      `json:"decided_at"`
	Halted        bool           `json:"halted,omitempty"`
	Degraded      bool           `json:"degraded,omitempty"`
}

// Reason renders the combined reasoning string, one "source: reason" clause
// per contribution, in the order the contributions were recorded. A halted
// cycle carries no contributions and reads simply "halted".
func (d Decision) Reason() string {
	if d.Halted {
		return "halted"
	}
	if len(d.Contributions) == 0 {
		return ""
	}
	parts := make([]string, 0, len(d.Contributions))
	for _, c := range d.Contributions {
		parts = append(parts, c.Source+": "+c.Reason)
	}
	return strings.Join(parts, "; ")
}
