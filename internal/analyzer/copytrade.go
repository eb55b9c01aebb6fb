package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"maestro/internal/logger"
	"maestro/internal/market"
	"maestro/internal/signal"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// copytradeEntrySchema is the contract every feed entry must satisfy before
// it is allowed to influence a vote.
const copytradeEntrySchema = `{
	"type": "object",
	"required": ["trader", "symbol", "action", "confidence"],
	"properties": {
		"trader":      {"type": "string", "minLength": 1},
		"symbol":      {"type": "string", "minLength": 1},
		"action":      {"type": "string", "enum": ["BUY", "SELL", "HOLD"]},
		"confidence":  {"type": "number", "minimum": 0, "maximum": 1},
		"issued_at":   {"type": "string"},
		"ttl_seconds": {"type": "number", "minimum": 0}
	}
}`

type copytradeEntry struct {
	Trader     string  `json:"trader"`
	Symbol     string  `json:"symbol"`
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	IssuedAt   string  `json:"issued_at"`
	TTLSeconds float64 `json:"ttl_seconds"`
}

// CopytradeAnalyzer follows signals published by external traders into a
// local feed file. Entries that fail schema validation or have expired are
// skipped; an unreadable feed is a neutral HOLD, never an error.
type CopytradeAnalyzer struct {
	feedPath string
	schema   *jsonschema.Schema
	nowFn    func() time.Time
	log      logger.Component
}

func NewCopytradeAnalyzer(feedPath string) (*CopytradeAnalyzer, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("copytrade.json", strings.NewReader(copytradeEntrySchema)); err != nil {
		return nil, fmt.Errorf("copytrade schema: %w", err)
	}
	schema, err := compiler.Compile("copytrade.json")
	if err != nil {
		return nil, fmt.Errorf("copytrade schema compile: %w", err)
	}
	return &CopytradeAnalyzer{
		feedPath: feedPath,
		schema:   schema,
		nowFn:    time.Now,
		log:      logger.For("copytrade"),
	}, nil
}

func (a *CopytradeAnalyzer) Name() string { return "copytrade" }

func (a *CopytradeAnalyzer) Analyze(_ context.Context, snap market.Snapshot) (signal.Signal, error) {
	raw, err := os.ReadFile(a.feedPath)
	if err != nil {
		return signal.Signal{
			Action:     signal.ActionHold,
			Confidence: 0.1,
			Reason:     "no copytrade feed",
		}, nil
	}

	var doc struct {
		Signals []json.RawMessage `json:"signals"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		a.log.Warnf("feed %s unparseable: %v", a.feedPath, err)
		return signal.Signal{
			Action:     signal.ActionHold,
			Confidence: 0.1,
			Reason:     "copytrade feed unparseable",
		}, nil
	}

	entries := a.validEntries(doc.Signals, snap.Symbol)
	if len(entries) == 0 {
		return signal.Signal{
			Action:     signal.ActionHold,
			Confidence: 0.2,
			Reason:     "no usable copytrade signals",
		}, nil
	}

	var buys, sells int
	var buyConf, sellConf float64
	for _, e := range entries {
		switch signal.Action(e.Action) {
		case signal.ActionBuy:
			buys++
			buyConf += e.Confidence
		case signal.ActionSell:
			sells++
			sellConf += e.Confidence
		}
	}

	switch {
	case buys > sells:
		return signal.Signal{
			Action:     signal.ActionBuy,
			Confidence: signal.ClampConfidence(buyConf / float64(len(entries))),
			Reason:     fmt.Sprintf("%d/%d followed traders long", buys, len(entries)),
		}, nil
	case sells > buys:
		return signal.Signal{
			Action:     signal.ActionSell,
			Confidence: signal.ClampConfidence(sellConf / float64(len(entries))),
			Reason:     fmt.Sprintf("%d/%d followed traders short", sells, len(entries)),
		}, nil
	default:
		return signal.Signal{
			Action:     signal.ActionHold,
			Confidence: 0.3,
			Reason:     fmt.Sprintf("followed traders split %d/%d", buys, sells),
		}, nil
	}
}

// validEntries filters the raw feed down to schema-valid, unexpired entries
// for the cycle's symbol.
func (a *CopytradeAnalyzer) validEntries(raws []json.RawMessage, symbol string) []copytradeEntry {
	now := a.nowFn().UTC()
	out := make([]copytradeEntry, 0, len(raws))
	for i, raw := range raws {
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			a.log.Warnf("feed entry %d unparseable: %v", i, err)
			continue
		}
		if err := a.schema.Validate(generic); err != nil {
			a.log.Warnf("feed entry %d rejected by schema: %v", i, err)
			continue
		}
		var e copytradeEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(e.Symbol), strings.TrimSpace(symbol)) {
			continue
		}
		if expired(e, now) {
			a.log.Debugf("feed entry %d from %s expired", i, e.Trader)
			continue
		}
		out = append(out, e)
	}
	return out
}

func expired(e copytradeEntry, now time.Time) bool {
	if e.IssuedAt == "" || e.TTLSeconds <= 0 {
		return false
	}
	issued, err := time.Parse(time.RFC3339, e.IssuedAt)
	if err != nil {
		return true
	}
	return now.After(issued.Add(time.Duration(e.TTLSeconds) * time.Second))
}
