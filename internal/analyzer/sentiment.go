package analyzer

import (
	"context"
	"fmt"
	"strings"

	"maestro/internal/market"
	"maestro/internal/signal"
)

var (
	positiveWords = []string{"bull", "up", "positive", "gain", "rally", "approve"}
	negativeWords = []string{"bear", "down", "negative", "loss", "crash", "ban"}
)

// SentimentAnalyzer scores headline polarity by keyword counting. No feed
// or an empty feed is a neutral HOLD, not an error.
type SentimentAnalyzer struct{}

func NewSentimentAnalyzer() *SentimentAnalyzer { return &SentimentAnalyzer{} }

func (a *SentimentAnalyzer) Name() string { return "sentiment" }

func (a *SentimentAnalyzer) Analyze(_ context.Context, snap market.Snapshot) (signal.Signal, error) {
	if len(snap.Headlines) == 0 {
		return signal.Signal{
			Action:     signal.ActionHold,
			Confidence: 0.1,
			Reason:     "no headlines available",
		}, nil
	}

	score := 0
	for _, line := range snap.Headlines {
		lower := strings.ToLower(line)
		for _, w := range positiveWords {
			if strings.Contains(lower, w) {
				score++
			}
		}
		for _, w := range negativeWords {
			if strings.Contains(lower, w) {
				score--
			}
		}
	}

	magnitude := float64(abs(score)) / float64(len(snap.Headlines))
	confidence := 0.3 + 0.5*magnitude
	if confidence > 0.8 {
		confidence = 0.8
	}

	switch {
	case score > 0:
		return signal.Signal{
			Action:     signal.ActionBuy,
			Confidence: confidence,
			Reason:     fmt.Sprintf("positive sentiment (score %+d over %d headlines)", score, len(snap.Headlines)),
		}, nil
	case score < 0:
		return signal.Signal{
			Action:     signal.ActionSell,
			Confidence: confidence,
			Reason:     fmt.Sprintf("negative sentiment (score %+d over %d headlines)", score, len(snap.Headlines)),
		}, nil
	default:
		return signal.Signal{
			Action:     signal.ActionHold,
			Confidence: 0.3,
			Reason:     fmt.Sprintf("neutral sentiment over %d headlines", len(snap.Headlines)),
		}, nil
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
