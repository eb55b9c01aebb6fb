package analyzer

import "fmt"

// RosterConfig carries the inputs the concrete analyzers need.
type RosterConfig struct {
	Indicator     IndicatorConfig
	CopytradeFeed string
}

// BuildRoster constructs analyzers by name, preserving the given order.
func BuildRoster(names []string, cfg RosterConfig) ([]Analyzer, error) {
	out := make([]Analyzer, 0, len(names))
	for _, name := range names {
		switch name {
		case "indicator":
			out = append(out, NewIndicatorAnalyzer(cfg.Indicator))
		case "pattern":
			out = append(out, NewPatternAnalyzer())
		case "volatility":
			out = append(out, NewVolatilityAnalyzer())
		case "sentiment":
			out = append(out, NewSentimentAnalyzer())
		case "copytrade":
			ct, err := NewCopytradeAnalyzer(cfg.CopytradeFeed)
			if err != nil {
				return nil, err
			}
			out = append(out, ct)
		default:
			return nil, fmt.Errorf("unknown analyzer %q", name)
		}
	}
	return out, nil
}
