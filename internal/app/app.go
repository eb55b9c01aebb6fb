package app

import (
	"context"
	"fmt"
	"time"

	"maestro/internal/config"
	"maestro/internal/engine"
	"maestro/internal/memory"
	"maestro/internal/monitor"
	"maestro/internal/report"
	"maestro/internal/retrain"
	"maestro/internal/safety"
	"maestro/internal/scheduler"
	adminhttp "maestro/internal/transport/http/admin"

	"golang.org/x/sync/errgroup"
)

// App owns application level orchestration: build the dependency graph,
// then run the decision loop, monitor, reporter and admin HTTP side by side.
type App struct {
	cfg      *config.Config
	gate     *safety.Gate
	memory   *memory.Memory
	registry *retrain.VersionRegistry
	engine   *engine.Engine
	retrain  *retrain.Scheduler
	monitor  *monitor.Monitor
	reporter *report.Reporter
	httpSrv  *adminhttp.Server
}

// NewApp builds the application from config without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	return buildAppWithWire(context.Background(), cfg)
}

// Run starts every long-lived component and blocks until ctx is cancelled
// or one of them fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.httpSrv.Start(ctx); err != nil {
			return fmt.Errorf("admin http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		defer a.Close()
		return a.engine.Run(ctx)
	})

	group.Go(func() error {
		return a.monitor.Run(ctx)
	})

	if a.reporter != nil {
		group.Go(func() error {
			return a.reporter.Run(ctx)
		})
	}

	group.Go(func() error {
		return a.runRetrainChecks(ctx)
	})

	return group.Wait()
}

// runRetrainChecks drives the time-based retrain trigger so a quiet market
// still advances the model.
func (a *App) runRetrainChecks(ctx context.Context) error {
	interval := time.Duration(a.cfg.Retrain.CheckHours) * time.Hour
	sched := scheduler.NewIntervalScheduler(ctx, "retrain-check", interval)
	sched.Start(func() {
		a.retrain.Tick(ctx)
	})
	return ctx.Err()
}

// Engine exposes the decision engine for replay harnesses.
func (a *App) Engine() *engine.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

// Close releases the persistent stores.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.memory != nil {
		a.memory.Close()
	}
	if a.registry != nil {
		a.registry.Close()
	}
}
