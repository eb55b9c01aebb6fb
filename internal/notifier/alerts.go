package notifier

import (
	"fmt"
	"time"
)

// HaltAlert announces a safety gate trip.
func HaltAlert(reason string, at time.Time) StructuredMessage {
	return StructuredMessage{
		Icon:  "⛔",
		Title: "Trading halted",
		Sections: []MessageSection{
			{Title: "Safety gate", Lines: []string{
				"State: HALTED",
				"Reason: " + reason,
			}},
		},
		Footer:    "Decision cycles continue and record HOLD until resumed.",
		Timestamp: at,
	}
}

// ResumeAlert announces a return to normal operation.
func ResumeAlert(at time.Time) StructuredMessage {
	return StructuredMessage{
		Icon:  "✅",
		Title: "Trading resumed",
		Sections: []MessageSection{
			{Title: "Safety gate", Lines: []string{"State: NORMAL"}},
		},
		Timestamp: at,
	}
}

// RetrainAlert announces a retrain lifecycle transition.
func RetrainAlert(kind, version, cause string, samples int, at time.Time) StructuredMessage {
	var icon, title string
	switch kind {
	case "retrain_completed":
		icon, title = "🧠", "Model retrained"
	case "retrain_failed":
		icon, title = "⚠️", "Retrain failed"
	default:
		icon, title = "🔁", "Retrain started"
	}
	return StructuredMessage{
		Icon:  icon,
		Title: title,
		Sections: []MessageSection{
			{Title: "Model", Lines: []string{
				"Version: " + version,
				fmt.Sprintf("Samples: %d", samples),
				"Cause: " + cause,
			}},
		},
		Timestamp: at,
	}
}
