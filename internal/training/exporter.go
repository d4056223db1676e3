/*
Package training projects the feedback log into labeled datasets for small
task-specific adapter models.

Three adapters are supported:

  - quality-scorer: (prompt, component type, style) labeled with a 0 to 10 grade
  - prompt-enhancer: weak prompts paired with the best prompt of the same component type
  - style-recommender: well received prompts labeled with the style they used

The projections are pure functions over RawExamples. Exporter adds the
store access, the readiness gate and the file output.
*/
package training

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/khanglvm/genloop/internal/storage"
)

// Adapter names.
const (
	AdapterQualityScorer    = "quality-scorer"
	AdapterPromptEnhancer   = "prompt-enhancer"
	AdapterStyleRecommender = "style-recommender"
)

// SignificantScore is the |score| a feedback row needs to count towards
// the readiness thresholds.
const SignificantScore = 0.3

const (
	badScore  = -0.3
	goodScore = 0.5
)

// ErrUnknownAdapter is returned for adapter names outside Adapters.
var ErrUnknownAdapter = errors.New("unknown adapter")

// Adapters lists the supported adapters in export order.
var Adapters = []string{AdapterQualityScorer, AdapterPromptEnhancer, AdapterStyleRecommender}

// minExamples is the number of significant rows each adapter needs before
// a training run is worth attempting.
var minExamples = map[string]int{
	AdapterQualityScorer:    100,
	AdapterPromptEnhancer:   200,
	AdapterStyleRecommender: 300,
}

// Params are the generation parameters carried by a feedback row.
type Params struct {
	ComponentType string `json:"component_type,omitempty"`
	Variant       string `json:"variant,omitempty"`
	Mood          string `json:"mood,omitempty"`
	Industry      string `json:"industry,omitempty"`
	Style         string `json:"style,omitempty"`
}

// RawExample is one feedback row projected for training.
type RawExample struct {
	Prompt   string  `json:"prompt"`
	CodeHash string  `json:"code_hash,omitempty"`
	Score    float64 `json:"score"`
	Params   Params  `json:"params"`
}

// QualityExample is a quality-scorer record.
type QualityExample struct {
	Prompt        string `json:"prompt"`
	ComponentType string `json:"component_type"`
	Style         string `json:"style"`
	Label         int    `json:"label"`
}

// EnhancerExample is a prompt-enhancer record.
type EnhancerExample struct {
	ComponentType string `json:"component_type"`
	Input         string `json:"input"`
	Output        string `json:"output"`
}

// StyleExample is a style-recommender record.
type StyleExample struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style"`
}

// Readiness reports whether an adapter has enough data to train.
type Readiness struct {
	Adapter  string `json:"adapter"`
	Ready    bool   `json:"ready"`
	Count    int    `json:"count"`
	Required int    `json:"required"`
}

// FeedbackSource is the part of the feedback repository the exporter reads.
type FeedbackSource interface {
	RecentFeedback(minAbsScore float64, limit int) ([]storage.Feedback, error)
	CountSignificant(minAbsScore float64) (int, error)
}

// Options configure an Exporter.
type Options struct {
	// MinAbsScore filters the rows exported. Zero exports everything.
	MinAbsScore float64
	// Limit caps the rows read per export. Zero or less means no cap.
	Limit int
	// Compress writes .jsonl.zst files instead of .jsonl.
	Compress bool
}

// Exporter reads feedback and writes adapter datasets.
type Exporter struct {
	source FeedbackSource
	opts   Options
	logger *zap.Logger
}

// NewExporter creates an exporter over source.
func NewExporter(source FeedbackSource, opts Options, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{source: source, opts: opts, logger: logger.Named("training")}
}

// RawExamples returns feedback rows with |score| >= minAbsScore, most
// recent first, up to limit.
func (e *Exporter) RawExamples(minAbsScore float64, limit int) ([]RawExample, error) {
	rows, err := e.source.RecentFeedback(minAbsScore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read feedback: %w", err)
	}

	out := make([]RawExample, 0, len(rows))
	for _, f := range rows {
		out = append(out, RawExample{
			Prompt:   f.Prompt,
			CodeHash: f.CodeHash,
			Score:    f.Score,
			Params: Params{
				ComponentType: f.ComponentType,
				Variant:       f.Variant,
				Mood:          f.Mood,
				Industry:      f.Industry,
				Style:         f.Style,
			},
		})
	}
	return out, nil
}

// HasEnoughData compares the number of significant feedback rows against
// the adapter's minimum.
func (e *Exporter) HasEnoughData(adapter string) (Readiness, error) {
	required, ok := minExamples[adapter]
	if !ok {
		return Readiness{}, fmt.Errorf("%w: %s", ErrUnknownAdapter, adapter)
	}
	count, err := e.source.CountSignificant(SignificantScore)
	if err != nil {
		return Readiness{}, fmt.Errorf("failed to count feedback: %w", err)
	}
	return Readiness{Adapter: adapter, Ready: count >= required, Count: count, Required: required}, nil
}

// QualityLabel maps a feedback score onto the 0 to 10 acceptance scale.
func QualityLabel(score float64) int {
	label := int(math.Round((score + 1) * 3.33))
	switch {
	case label < 0:
		return 0
	case label > 10:
		return 10
	}
	return label
}

// QualityScorerExamples labels every raw example with QualityLabel.
func QualityScorerExamples(raw []RawExample) []QualityExample {
	out := make([]QualityExample, 0, len(raw))
	for _, r := range raw {
		out = append(out, QualityExample{
			Prompt:        r.Prompt,
			ComponentType: r.Params.ComponentType,
			Style:         r.Params.Style,
			Label:         QualityLabel(r.Score),
		})
	}
	return out
}

// PromptEnhancerExamples pairs every bad example of a component type with
// the best good example of the same type. Types without a good example
// contribute nothing. Groups keep the order in which their type first
// appears in raw.
func PromptEnhancerExamples(raw []RawExample) []EnhancerExample {
	type group struct {
		best *RawExample
		bad  []RawExample
	}
	groups := make(map[string]*group)
	var order []string

	for i := range raw {
		r := raw[i]
		if strings.TrimSpace(r.Prompt) == "" {
			continue
		}
		key := r.Params.ComponentType
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
			order = append(order, key)
		}
		switch {
		case r.Score > goodScore:
			if g.best == nil || r.Score > g.best.Score {
				g.best = &raw[i]
			}
		case r.Score < badScore:
			g.bad = append(g.bad, r)
		}
	}

	var out []EnhancerExample
	for _, key := range order {
		g := groups[key]
		if g.best == nil {
			continue
		}
		for _, b := range g.bad {
			out = append(out, EnhancerExample{ComponentType: key, Input: b.Prompt, Output: g.best.Prompt})
		}
	}
	return out
}

// StyleRecommenderExamples keeps positive examples that carry an explicit
// style.
func StyleRecommenderExamples(raw []RawExample) []StyleExample {
	var out []StyleExample
	for _, r := range raw {
		if r.Score <= storage.PositiveThreshold || isDefaultStyle(r.Params.Style) {
			continue
		}
		out = append(out, StyleExample{Prompt: r.Prompt, Style: r.Params.Style})
	}
	return out
}

func isDefaultStyle(style string) bool {
	s := strings.ToLower(strings.TrimSpace(style))
	return s == "" || s == "default"
}
