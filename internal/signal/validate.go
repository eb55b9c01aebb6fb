package signal

import (
	"fmt"
	"math"
	"strings"
)

// Validate checks a producer-supplied signal before it enters a cycle:
// - source must be set
// - action must be one of BUY/SELL/HOLD
// - confidence must be a number in [0,1]
func Validate(s Signal) error {
	if strings.TrimSpace(s.Source) == "" {
		return fmt.Errorf("signal missing source")
	}
	if !s.Action.Valid() {
		return fmt.Errorf("invalid action %q from %s", string(s.Action), s.Source)
	}
	if math.IsNaN(s.Confidence) || math.IsInf(s.Confidence, 0) {
		return fmt.Errorf("non-finite confidence from %s", s.Source)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence %.4f out of range [0,1] from %s", s.Confidence, s.Source)
	}
	return nil
}

// ClampConfidence forces v into [0,1]; NaN and -Inf collapse to 0, +Inf to 1.
func ClampConfidence(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
