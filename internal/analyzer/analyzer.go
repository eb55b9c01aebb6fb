package analyzer

import (
	"context"
	"fmt"

	"maestro/internal/logger"
	"maestro/internal/market"
	"maestro/internal/signal"
)

// Analyzer produces one vote per cycle from the shared market snapshot.
// Implementations must be safe for repeated calls and must not retain the
// snapshot.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, snap market.Snapshot) (signal.Signal, error)
}

// FailureSink receives analyzer faults after they have been substituted.
type FailureSink func(source string, cause error)

// Registry holds the analyzer roster in registration order. The order is
// fixed for the process lifetime and determines both collection order and
// the order of reasoning in the final decision.
type Registry struct {
	analyzers []Analyzer
	onFailure FailureSink
	log       logger.Component
}

func NewRegistry(analyzers ...Analyzer) (*Registry, error) {
	if len(analyzers) == 0 {
		return nil, fmt.Errorf("analyzer registry requires at least one analyzer")
	}
	seen := make(map[string]bool, len(analyzers))
	for _, a := range analyzers {
		if a == nil {
			return nil, fmt.Errorf("analyzer registry rejects nil analyzer")
		}
		name := a.Name()
		if name == "" {
			return nil, fmt.Errorf("analyzer registry rejects empty name")
		}
		if seen[name] {
			return nil, fmt.Errorf("analyzer %q registered twice", name)
		}
		seen[name] = true
	}
	return &Registry{
		analyzers: append([]Analyzer(nil), analyzers...),
		log:       logger.For("analyzer"),
	}, nil
}

// SetFailureSink registers a callback invoked once per substituted fault.
func (r *Registry) SetFailureSink(fn FailureSink) { r.onFailure = fn }

// Names returns the roster in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.analyzers))
	for i, a := range r.analyzers {
		out[i] = a.Name()
	}
	return out
}

func (r *Registry) Size() int { return len(r.analyzers) }

// Collect polls every analyzer and always returns exactly one signal per
// registered analyzer, in registration order. A failing or panicking
// analyzer never aborts the cycle: its slot is substituted with a HOLD at
// zero confidence carrying the cause, and the rest proceed.
func (r *Registry) Collect(ctx context.Context, snap market.Snapshot) []signal.Signal {
	out := make([]signal.Signal, 0, len(r.analyzers))
	for _, a := range r.analyzers {
		out = append(out, r.collectOne(ctx, a, snap))
	}
	return out
}

func (r *Registry) collectOne(ctx context.Context, a Analyzer, snap market.Snapshot) (res signal.Signal) {
	name := a.Name()
	defer func() {
		if rec := recover(); rec != nil {
			res = r.substitute(name, fmt.Errorf("panic: %v", rec))
		}
	}()

	s, err := a.Analyze(ctx, snap)
	if err != nil {
		return r.substitute(name, err)
	}
	// The registry owns attribution; a producer cannot vote under another
	// analyzer's name.
	s.Source = name
	if !s.Action.Valid() {
		return r.substitute(name, fmt.Errorf("invalid action %q", string(s.Action)))
	}
	if clamped := signal.ClampConfidence(s.Confidence); clamped != s.Confidence {
		r.log.Warnf("%s returned confidence %.4f, clamped to %.2f", name, s.Confidence, clamped)
		s.Confidence = clamped
	}
	return s
}

func (r *Registry) substitute(name string, cause error) signal.Signal {
	r.log.Warnf("%s failed, substituting HOLD: %v", name, cause)
	if r.onFailure != nil {
		r.onFailure(name, cause)
	}
	return signal.Signal{
		Source:     name,
		Action:     signal.ActionHold,
		Confidence: 0,
		Reason:     fmt.Sprintf("error: %v", cause),
	}
}
