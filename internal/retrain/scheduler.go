package retrain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"maestro/internal/logger"
)

// Config controls when the scheduler retrains.
type Config struct {
	// TradeThreshold triggers a retrain once this many trades accumulated
	// since the last successful run.
	TradeThreshold int
	// Interval triggers a retrain on elapsed time alone, covering quiet
	// stretches with no trades.
	Interval time.Duration
	// Timeout bounds a single Trainer.Train call.
	Timeout time.Duration
}

func (c Config) validate() error {
	if c.TradeThreshold < 1 {
		return fmt.Errorf("trade threshold must be at least 1, got %d", c.TradeThreshold)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("retrain interval must be positive, got %s", c.Interval)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("retrain timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// Outcome is pushed to the hook on every lifecycle transition so the rest of
// the system (event memory, notifier) can record it.
type Outcome struct {
	Kind    string
	Version string
	Cause   string
	Samples int
}

// Status is a point-in-time view for the HTTP layer.
type Status struct {
	Version            string    `json:"version"`
	Seq                int64     `json:"seq"`
	TradesSinceRetrain int       `json:"trades_since_retrain"`
	LastRetrainAt      time.Time `json:"last_retrain_at"`
	Training           bool      `json:"training"`
}

// Scheduler decides when the model retrains and owns the version lifecycle.
// The counter resets only after a successful retrain; a failed run leaves it
// intact so the next trade retries opportunistically.
type Scheduler struct {
	cfg      Config
	registry *VersionRegistry
	trainer  Trainer
	log      logger.Component
	nowFn    func() time.Time

	mu          sync.Mutex
	current     Version
	counter     int
	lastRetrain time.Time
	training    bool
	hook        func(Outcome)
}

func NewScheduler(ctx context.Context, cfg Config, registry *VersionRegistry, trainer Trainer) (*Scheduler, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, fmt.Errorf("version registry cannot be nil")
	}
	if trainer == nil {
		trainer = NewNoopTrainer()
	}
	cur, err := registry.Bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrapping model registry: %w", err)
	}
	s := &Scheduler{
		cfg:         cfg,
		registry:    registry,
		trainer:     trainer,
		log:         logger.For("retrain"),
		nowFn:       time.Now,
		current:     cur,
		lastRetrain: cur.CreatedAt,
	}
	s.log.Infof("active model %s (seq %d)", cur.ID, cur.Seq)
	return s, nil
}

// SetOutcomeHook registers a callback for retrain lifecycle transitions. The
// hook runs synchronously on the triggering goroutine.
func (s *Scheduler) SetOutcomeHook(hook func(Outcome)) {
	s.mu.Lock()
	s.hook = hook
	s.mu.Unlock()
}

// Version returns the active model version ID.
func (s *Scheduler) Version() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.ID
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Version:            s.current.ID,
		Seq:                s.current.Seq,
		TradesSinceRetrain: s.counter,
		LastRetrainAt:      s.lastRetrain,
		Training:           s.training,
	}
}

// ObserveTrade counts one executed trade and retrains inline when either
// trigger condition holds. Failures never propagate to the caller.
func (s *Scheduler) ObserveTrade(ctx context.Context) {
	s.mu.Lock()
	s.counter++
	cause, due := s.dueLocked(true)
	if !due || s.training {
		s.mu.Unlock()
		return
	}
	s.training = true
	cur := s.current
	samples := s.counter
	s.mu.Unlock()
	s.runRetrain(ctx, cur, samples, cause)
}

// Tick checks the elapsed-time trigger alone. An interval loop drives it so
// quiet periods without trades still retrain.
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	cause, due := s.dueLocked(false)
	if !due || s.training {
		s.mu.Unlock()
		return
	}
	s.training = true
	cur := s.current
	samples := s.counter
	s.mu.Unlock()
	s.runRetrain(ctx, cur, samples, cause)
}

func (s *Scheduler) dueLocked(countTrades bool) (string, bool) {
	if countTrades && s.counter >= s.cfg.TradeThreshold {
		return fmt.Sprintf("trade threshold reached: %d >= %d", s.counter, s.cfg.TradeThreshold), true
	}
	if elapsed := s.nowFn().Sub(s.lastRetrain); elapsed >= s.cfg.Interval {
		return fmt.Sprintf("interval elapsed: %s since last retrain", elapsed.Truncate(time.Second)), true
	}
	return "", false
}

func (s *Scheduler) runRetrain(ctx context.Context, cur Version, samples int, cause string) {
	defer func() {
		s.mu.Lock()
		s.training = false
		s.mu.Unlock()
	}()

	// Registry writes and the trainer must survive the caller's deadline;
	// a decision cycle timeout must not abort a retrain mid-flight.
	opCtx := context.WithoutCancel(ctx)

	s.log.Infof("retrain triggered, %s (current %s, %d samples)", cause, cur.ID, samples)
	if err := s.registry.RecordEvent(opCtx, EventRetrainStart, cur.ID, cause); err != nil {
		s.log.Warnf("recording retrain start: %v", err)
	}
	s.emit(Outcome{Kind: EventRetrainStart, Version: cur.ID, Cause: cause, Samples: samples})

	trainCtx, cancel := context.WithTimeout(opCtx, s.cfg.Timeout)
	defer cancel()
	result, err := s.trainer.Train(trainCtx, TrainRequest{
		CurrentVersion: cur.ID,
		SampleCount:    samples,
		Since:          s.lastRetrainAt(),
	})
	if err != nil {
		s.failRetrain(opCtx, cur, samples, fmt.Errorf("%w: %v", ErrTrainerFailed, err))
		return
	}

	next := NextVersion(cur, samples, s.nowFn())
	if err := s.registry.Activate(opCtx, next); err != nil {
		s.failRetrain(opCtx, cur, samples, fmt.Errorf("activating %s: %w", next.ID, err))
		return
	}
	if err := s.registry.RecordEvent(opCtx, EventRetrainCompleted, next.ID, result.Notes); err != nil {
		s.log.Warnf("recording retrain completion: %v", err)
	}

	s.mu.Lock()
	s.current = next
	s.counter = 0
	s.lastRetrain = s.nowFn()
	s.mu.Unlock()

	s.log.Infof("model advanced %s -> %s (%d samples)", cur.ID, next.ID, samples)
	s.emit(Outcome{Kind: EventRetrainCompleted, Version: next.ID, Cause: cause, Samples: samples})
}

func (s *Scheduler) failRetrain(ctx context.Context, cur Version, samples int, err error) {
	s.log.Errorf("retrain failed, keeping %s: %v", cur.ID, err)
	if recErr := s.registry.RecordEvent(ctx, EventRetrainFailed, cur.ID, err.Error()); recErr != nil {
		s.log.Warnf("recording retrain failure: %v", recErr)
	}
	s.emit(Outcome{Kind: EventRetrainFailed, Version: cur.ID, Cause: err.Error(), Samples: samples})
}

func (s *Scheduler) lastRetrainAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRetrain
}

func (s *Scheduler) emit(oc Outcome) {
	s.mu.Lock()
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		hook(oc)
	}
}
