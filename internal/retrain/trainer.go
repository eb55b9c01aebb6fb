package retrain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTrainerFailed wraps any trainer error so callers can distinguish a
// failed run from registry trouble.
var ErrTrainerFailed = errors.New("trainer failed")

// TrainRequest carries what a trainer needs to rebuild the model.
type TrainRequest struct {
	CurrentVersion string
	SampleCount    int
	Since          time.Time
}

// TrainResult summarizes a completed run.
type TrainResult struct {
	Notes string
}

// Trainer rebuilds the decision model from accumulated history. Training may
// be slow; implementations must honor ctx.
type Trainer interface {
	Train(ctx context.Context, req TrainRequest) (TrainResult, error)
}

// noopTrainer recalibrates nothing. It stands in until a real training
// pipeline is attached and keeps the version lifecycle exercisable.
type noopTrainer struct{}

func NewNoopTrainer() Trainer {
	return noopTrainer{}
}

func (noopTrainer) Train(ctx context.Context, req TrainRequest) (TrainResult, error) {
	if err := ctx.Err(); err != nil {
		return TrainResult{}, err
	}
	return TrainResult{
		Notes: fmt.Sprintf("recalibrated indicator thresholds over %d samples", req.SampleCount),
	}, nil
}
