package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAction(t *testing.T) {
	t.Run("Known Actions", func(t *testing.T) {
		for in, want := range map[string]Action{
			"buy":    ActionBuy,
			" SELL ": ActionSell,
			"Hold":   ActionHold,
		} {
			got, ok := ParseAction(in)
			assert.True(t, ok, in)
			assert.Equal(t, want, got)
		}
	})

	t.Run("Unknown Action", func(t *testing.T) {
		_, ok := ParseAction("short")
		assert.False(t, ok)
	})
}

func TestDecisionReason(t *testing.T) {
	d := Decision{
		Contributions: []Contribution{
			{Source: "indicator", Reason: "RSI oversold"},
			{Source: "sentiment", Reason: "error: feed unavailable"},
		},
	}
	assert.Equal(t, "indicator: RSI oversold; sentiment: error: feed unavailable", d.Reason())

	assert.Equal(t, "", Decision{}.Reason())
	assert.Equal(t, "halted", Decision{Halted: true}.Reason())
}

func TestValidate(t *testing.T) {
	ok := Signal{Source: "indicator", Action: ActionBuy, Confidence: 0.7, Reason: "x"}
	assert.NoError(t, Validate(ok))

	bad := []Signal{
		{Source: "", Action: ActionBuy, Confidence: 0.5},
		{Source: "a", Action: Action("LONG"), Confidence: 0.5},
		{Source: "a", Action: ActionSell, Confidence: 1.2},
		{Source: "a", Action: ActionSell, Confidence: -0.1},
	}
	for i, s := range bad {
		assert.Error(t, Validate(s), i)
	}
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-3))
	assert.Equal(t, 1.0, ClampConfidence(42))
	assert.Equal(t, 0.55, ClampConfidence(0.55))
}
