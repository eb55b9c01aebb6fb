package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"maestro/internal/logger"
	"maestro/internal/memory"
	"maestro/internal/notifier"
	"maestro/internal/signal"

	"github.com/robfig/cron/v3"
)

const reportWindow = 24 * time.Hour

// HistorySource is the slice of the event memory the reporter reads.
type HistorySource interface {
	SignalBatchesSince(ctx context.Context, t time.Time) ([]memory.SignalBatch, error)
	TradesSince(ctx context.Context, t time.Time) ([]memory.Trade, error)
}

// Params collects the reporter's dependencies.
type Params struct {
	// Spec is a six-field cron expression (with seconds).
	Spec     string
	Dir      string
	Memory   HistorySource
	Notifier notifier.TextNotifier
}

// Summary aggregates one reporting window.
type Summary struct {
	Date          string                `json:"date"`
	WindowStart   time.Time             `json:"window_start"`
	WindowEnd     time.Time             `json:"window_end"`
	Cycles        int                   `json:"cycles"`
	Actions       map[signal.Action]int `json:"actions"`
	HaltedCycles  int                   `json:"halted_cycles"`
	DegradedRows  int                   `json:"degraded_rows"`
	AvgConfidence float64               `json:"avg_confidence"`
	Trades        int                   `json:"trades"`
	Buys          int                   `json:"buys"`
	Sells         int                   `json:"sells"`
	VolumeUSD     float64               `json:"volume_usd"`
}

// Reporter renders a daily summary of decisions and trades: a text file, an
// action-distribution chart, and a notifier push.
type Reporter struct {
	p     Params
	log   logger.Component
	nowFn func() time.Time
}

func New(p Params) (*Reporter, error) {
	switch {
	case strings.TrimSpace(p.Spec) == "":
		return nil, fmt.Errorf("report cron spec cannot be empty")
	case strings.TrimSpace(p.Dir) == "":
		return nil, fmt.Errorf("report directory cannot be empty")
	case p.Memory == nil:
		return nil, fmt.Errorf("reporter requires the event memory")
	case p.Notifier == nil:
		return nil, fmt.Errorf("reporter requires a notifier")
	}
	return &Reporter{p: p, log: logger.For("report"), nowFn: time.Now}, nil
}

// Run schedules the report and blocks until ctx is done.
func (r *Reporter) Run(ctx context.Context) error {
	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(r.p.Spec, func() {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		defer cancel()
		if _, err := r.Generate(runCtx, r.nowFn()); err != nil {
			r.log.Errorf("daily report failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("registering report schedule %q: %w", r.p.Spec, err)
	}
	c.Start()
	r.log.Infof("scheduled %q, output dir %s", r.p.Spec, r.p.Dir)
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// Generate aggregates the trailing 24h window ending at now, writes the text
// and chart files, and pushes the summary through the notifier.
func (r *Reporter) Generate(ctx context.Context, now time.Time) (Summary, error) {
	now = now.UTC()
	since := now.Add(-reportWindow)

	batches, err := r.p.Memory.SignalBatchesSince(ctx, since)
	if err != nil {
		return Summary{}, fmt.Errorf("reading decisions: %w", err)
	}
	trades, err := r.p.Memory.TradesSince(ctx, since)
	if err != nil {
		return Summary{}, fmt.Errorf("reading trades: %w", err)
	}

	sum := aggregate(batches, trades, since, now)

	if err := os.MkdirAll(r.p.Dir, 0o755); err != nil {
		return sum, err
	}
	textPath := filepath.Join(r.p.Dir, fmt.Sprintf("daily_%s.txt", sum.Date))
	if err := os.WriteFile(textPath, []byte(renderText(sum)), 0o644); err != nil {
		return sum, fmt.Errorf("writing %s: %w", textPath, err)
	}
	chartPath := filepath.Join(r.p.Dir, fmt.Sprintf("daily_%s.html", sum.Date))
	if err := writeChart(chartPath, sum); err != nil {
		// The text report already exists; the chart is best effort.
		r.log.Warnf("writing chart %s: %v", chartPath, err)
	}

	if err := r.p.Notifier.SendText(buildAlert(sum).RenderMarkdown()); err != nil {
		r.log.Warnf("pushing daily report: %v", err)
	}

	r.log.Infof("daily report %s: cycles=%d trades=%d volume=%.2f", sum.Date, sum.Cycles, sum.Trades, sum.VolumeUSD)
	return sum, nil
}

func aggregate(batches []memory.SignalBatch, trades []memory.Trade, since, now time.Time) Summary {
	sum := Summary{
		Date:        now.Format("2006-01-02"),
		WindowStart: since,
		WindowEnd:   now,
		Actions: map[signal.Action]int{
			signal.ActionBuy:  0,
			signal.ActionSell: 0,
			signal.ActionHold: 0,
		},
	}

	confTotal := 0.0
	scored := 0
	for _, b := range batches {
		sum.Cycles++
		sum.Actions[b.Decision.Action]++
		if b.Decision.Halted {
			sum.HaltedCycles++
			continue
		}
		if b.Decision.Degraded {
			sum.DegradedRows++
		}
		confTotal += b.Decision.Confidence
		scored++
	}
	if scored > 0 {
		sum.AvgConfidence = confTotal / float64(scored)
	}

	for _, t := range trades {
		sum.Trades++
		switch t.Side {
		case "BUY":
			sum.Buys++
		case "SELL":
			sum.Sells++
		}
		sum.VolumeUSD += t.NotionalUSD
	}
	return sum
}

func renderText(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily report %s\n", s.Date)
	fmt.Fprintf(&b, "Window: %s .. %s\n\n", s.WindowStart.Format(time.RFC3339), s.WindowEnd.Format(time.RFC3339))
	fmt.Fprintf(&b, "Decision cycles: %d\n", s.Cycles)
	fmt.Fprintf(&b, "  BUY:  %d\n", s.Actions[signal.ActionBuy])
	fmt.Fprintf(&b, "  SELL: %d\n", s.Actions[signal.ActionSell])
	fmt.Fprintf(&b, "  HOLD: %d\n", s.Actions[signal.ActionHold])
	fmt.Fprintf(&b, "  halted: %d\n", s.HaltedCycles)
	fmt.Fprintf(&b, "  degraded: %d\n", s.DegradedRows)
	fmt.Fprintf(&b, "Average confidence: %.3f\n\n", s.AvgConfidence)
	fmt.Fprintf(&b, "Trades: %d (buy %d / sell %d)\n", s.Trades, s.Buys, s.Sells)
	fmt.Fprintf(&b, "Volume: %.2f USD\n", s.VolumeUSD)
	return b.String()
}

func buildAlert(s Summary) notifier.StructuredMessage {
	return notifier.StructuredMessage{
		Icon:  "📊",
		Title: "Daily report " + s.Date,
		Sections: []notifier.MessageSection{
			{Title: "Decisions", Lines: []string{
				fmt.Sprintf("Cycles: %d", s.Cycles),
				fmt.Sprintf("BUY %d / SELL %d / HOLD %d", s.Actions[signal.ActionBuy], s.Actions[signal.ActionSell], s.Actions[signal.ActionHold]),
				fmt.Sprintf("Halted: %d", s.HaltedCycles),
				fmt.Sprintf("Avg confidence: %.3f", s.AvgConfidence),
			}},
			{Title: "Trades", Lines: []string{
				fmt.Sprintf("Executed: %d (buy %d / sell %d)", s.Trades, s.Buys, s.Sells),
				fmt.Sprintf("Volume: %.2f USD", s.VolumeUSD),
			}},
		},
		Timestamp: s.WindowEnd,
	}
}
