package consensus

import (
	"errors"

	"maestro/internal/signal"
)

// ErrNoSignals is returned when a cycle reaches aggregation with nothing to
// aggregate. The caller treats the cycle as failed, not as a HOLD.
var ErrNoSignals = errors.New("no signals to aggregate")

// Outcome is the result of one aggregation pass.
type Outcome struct {
	Action        signal.Action
	Confidence    float64
	Scores        map[signal.Action]float64
	TotalWeight   float64
	Contributions []signal.Contribution
}

// Aggregate combines one cycle's signals into a single verdict by weighted
// vote: each signal adds confidence*weight to its action's score, and every
// signal's weight counts toward the divisor regardless of which action it
// backed. Pure function, no I/O, no clock.
func Aggregate(signals []signal.Signal, weights WeightTable) (Outcome, error) {
	if len(signals) == 0 {
		return Outcome{}, ErrNoSignals
	}
	scores := map[signal.Action]float64{
		signal.ActionBuy:  0,
		signal.ActionSell: 0,
		signal.ActionHold: 0,
	}
	contributions := make([]signal.Contribution, 0, len(signals))
	total := 0.0
	for _, s := range signals {
		w := weights.Of(s.Source)
		scores[s.Action] += s.Confidence * w
		total += w
		contributions = append(contributions, signal.Contribution{Source: s.Source, Reason: s.Reason})
	}

	winner := pickWinner(scores)
	confidence := 0.0
	if total > 0 {
		confidence = scores[winner] / total
	}
	return Outcome{
		Action:        winner,
		Confidence:    confidence,
		Scores:        scores,
		TotalWeight:   total,
		Contributions: contributions,
	}, nil
}

// pickWinner resolves exact score ties by fixed priority BUY > SELL > HOLD.
// When no action collected a positive score the verdict is HOLD.
func pickWinner(scores map[signal.Action]float64) signal.Action {
	best := signal.ActionHold
	bestScore := 0.0
	for _, act := range signal.Priority {
		if scores[act] > bestScore {
			best = act
			bestScore = scores[act]
		}
	}
	if bestScore <= 0 {
		return signal.ActionHold
	}
	return best
}
