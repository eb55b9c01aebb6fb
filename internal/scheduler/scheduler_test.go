package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseInterval(t *testing.T) {
	cases := map[string]time.Duration{
		"30s": 30 * time.Second,
		"1m":  time.Minute,
		"4h":  4 * time.Hour,
		"1d":  24 * time.Hour,
		"1w":  7 * 24 * time.Hour,
	}
	for in, want := range cases {
		got, ok := ParseInterval(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "m", "0m", "-5m", "10x", "1.5h"} {
		_, ok := ParseInterval(in)
		assert.False(t, ok, in)
	}
}

func TestIntervalSchedulerRunsAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32

	s := NewIntervalScheduler(ctx, "test", 10*time.Millisecond)
	s.RunImmediately = true

	done := make(chan struct{})
	go func() {
		s.Start(func() {
			if runs.Add(1) >= 3 {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}

func TestIntervalSchedulerRejectsBadConfig(t *testing.T) {
	s := NewIntervalScheduler(context.Background(), "bad", 0)
	finished := make(chan struct{})
	go func() {
		s.Start(func() { t.Error("task must not run with zero interval") })
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("scheduler with invalid interval did not exit")
	}
}
