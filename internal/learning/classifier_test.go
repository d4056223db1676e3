package learning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/genloop/internal/storage"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func gen(id, componentType, framework, tool string, at time.Duration) storage.Generation {
	return storage.Generation{
		ID:            id,
		SessionID:     "s1",
		ComponentType: componentType,
		Framework:     framework,
		Tool:          tool,
		Timestamp:     t0.Add(at),
	}
}

func kinds(c Classification) []SignalKind {
	var out []SignalKind
	for _, s := range c.Signals {
		out = append(out, s.Kind)
	}
	return out
}

func TestClassify(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name       string
		prev, cur  storage.Generation
		text       string
		kinds      []SignalKind
		score      float64
		confidence float64
	}{
		{
			name:       "praise suppresses neutral iteration",
			prev:       gen("a", "hero", "react", "generate", 0),
			cur:        gen("b", "hero", "react", "generate", 60*time.Second),
			text:       "Perfect, thanks!",
			kinds:      []SignalKind{SignalPraise},
			score:      2.0,
			confidence: 0.9,
		},
		{
			name:       "component switch with rapid follow-up",
			prev:       gen("a", "hero", "react", "generate", 0),
			cur:        gen("b", "footer", "react", "generate", 10*time.Second),
			kinds:      []SignalKind{SignalNewTask, SignalRapidFollowup},
			score:      0.5,
			confidence: 0.8,
		},
		{
			name:       "negative keyword blocks tweak keyword",
			prev:       gen("a", "hero", "react", "generate", 0),
			cur:        gen("b", "hero", "react", "generate", 120*time.Second),
			text:       "this is wrong, make it darker",
			kinds:      []SignalKind{SignalMajorRedo, SignalMinorTweak},
			score:      -0.7 / 1.1,
			confidence: 0.7,
		},
		{
			name:       "tweak after a long gap",
			prev:       gen("a", "hero", "react", "generate", 0),
			cur:        gen("b", "hero", "react", "generate", 400*time.Second),
			text:       "make the padding bigger",
			kinds:      []SignalKind{SignalMinorTweak, SignalTimeGap, SignalMinorTweak},
			score:      0.78 / 1.6,
			confidence: 0.6,
		},
		{
			name:       "rapid praise",
			prev:       gen("a", "hero", "react", "generate", 0),
			cur:        gen("b", "hero", "react", "generate", 5*time.Second),
			text:       "love it",
			kinds:      []SignalKind{SignalPraise, SignalRapidFollowup},
			score:      1.65 / 1.4,
			confidence: 0.9,
		},
		{
			name: "framework change alone yields nothing",
			prev: gen("a", "hero", "react", "generate", 0),
			cur:  gen("b", "hero", "vue", "generate", 60*time.Second),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.prev, tt.cur, tt.text)
			assert.Equal(t, tt.kinds, kinds(got))
			assert.InDelta(t, tt.score, got.CombinedScore, 1e-9)
			assert.InDelta(t, tt.confidence, got.CombinedConfidence, 1e-9)
		})
	}
}

func TestClassify_ToolSwitch(t *testing.T) {
	got := NewClassifier().Classify(
		gen("a", "hero", "react", "generate", 0),
		gen("b", "hero", "react", "scaffold", 60*time.Second),
		"",
	)
	require.Len(t, got.Signals, 1)
	assert.Equal(t, SignalNewTask, got.Signals[0].Kind)
	assert.Contains(t, got.Signals[0].Reason, "tool")
}

func TestCombine(t *testing.T) {
	assert.Equal(t, Classification{}, Combine(nil))
	assert.True(t, Combine(nil).Empty())

	got := Combine([]Signal{
		{Score: 1.0, Confidence: 0.8},
		{Score: 0.6, Confidence: 0.5},
		{Score: 0.7, Confidence: 0.6},
	})
	assert.InDelta(t, 1.52/1.9, got.CombinedScore, 1e-9)
	assert.InDelta(t, 0.8, got.CombinedConfidence, 1e-9)
}

func TestCodeHash(t *testing.T) {
	assert.Empty(t, CodeHash(""))
	assert.Len(t, CodeHash("<div/>"), 64)
	assert.Equal(t, CodeHash("<div/>"), CodeHash("<div/>"))
}
