package app

import (
	"context"
	"time"

	"maestro/internal/analyzer"
	"maestro/internal/logger"
	"maestro/internal/memory"
	"maestro/internal/notifier"
	"maestro/internal/retrain"
	"maestro/internal/safety"
)

const hookTimeout = 5 * time.Second

// wireEventHooks fans state transitions out to the event memory and the
// notifier. Hooks run on the goroutine that caused the transition, so the
// slow leg (notifier delivery) is pushed to its own goroutine.
func wireEventHooks(gate *safety.Gate, sched *retrain.Scheduler, analyzers *analyzer.Registry, mem *memory.Memory, send notifier.TextNotifier) {
	gate.SetChangeHandler(func(from, to safety.State, reason string) {
		ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
		defer cancel()

		evt := memory.SystemEvent{
			Kind:    "safety_resume",
			Message: "trading resumed",
		}
		msg := notifier.ResumeAlert(time.Now().UTC())
		if to == safety.StateHalted {
			evt.Kind = "safety_halt"
			evt.Message = "trading halted: " + reason
			evt.Payload = map[string]any{"reason": reason}
			msg = notifier.HaltAlert(reason, time.Now().UTC())
		}
		if err := mem.AppendSystemEvent(ctx, evt); err != nil {
			logger.Errorf("recording %s event: %v", evt.Kind, err)
		}
		deliver(send, msg)
	})

	sched.SetOutcomeHook(func(oc retrain.Outcome) {
		ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
		defer cancel()

		evt := memory.SystemEvent{
			Kind:    oc.Kind,
			Message: "model " + oc.Version,
			Payload: map[string]any{"version": oc.Version, "samples": oc.Samples},
		}
		if oc.Cause != "" {
			evt.Payload["cause"] = oc.Cause
		}
		if err := mem.AppendSystemEvent(ctx, evt); err != nil {
			logger.Errorf("recording %s event: %v", oc.Kind, err)
		}
		// Start events are noise on the notifier channel, completion and
		// failure are worth a push.
		if oc.Kind != retrain.EventRetrainStart {
			deliver(send, notifier.RetrainAlert(oc.Kind, oc.Version, oc.Cause, oc.Samples, time.Now().UTC()))
		}
	})

	analyzers.SetFailureSink(func(source string, cause error) {
		ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
		defer cancel()

		evt := memory.SystemEvent{
			Kind:    "analyzer_fault",
			Message: source + ": " + cause.Error(),
			Payload: map[string]any{"source": source, "cause": cause.Error()},
		}
		if err := mem.AppendSystemEvent(ctx, evt); err != nil {
			logger.Errorf("recording analyzer fault: %v", err)
		}
	})
}

// deliver sends asynchronously. Alert delivery must not hold up the control
// plane or a decision cycle.
func deliver(send notifier.TextNotifier, msg notifier.StructuredMessage) {
	if send == nil {
		return
	}
	go func() {
		if err := send.SendText(msg.RenderMarkdown()); err != nil {
			logger.Errorf("notifier delivery failed: %v", err)
		}
	}()
}
