package inference

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxArtifactChars caps how much markup is sent to the model.
const maxArtifactChars = 6000

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// Score is a quality estimate in [0, 1].
type Score struct {
	Value  float64 `json:"value"`
	Source Source  `json:"source"`
}

// QualityScorer rates generated artifacts, asking the model for a 0 to 10
// grade and falling back to structural heuristics.
type QualityScorer struct {
	provider Provider
	timeout  time.Duration
	logger   *zap.Logger
}

// NewQualityScorer creates a scorer. A nil provider means heuristics only.
func NewQualityScorer(p Provider, timeout time.Duration, logger *zap.Logger) *QualityScorer {
	if p == nil {
		p = Heuristic{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QualityScorer{provider: p, timeout: timeout, logger: logger.Named("quality")}
}

// Score rates artifact, a componentType generation. It never fails.
func (q *QualityScorer) Score(ctx context.Context, artifact, componentType string) Score {
	if strings.TrimSpace(artifact) == "" {
		return Score{Value: 0, Source: SourceHeuristic}
	}

	if q.provider.Ready() {
		ctx, cancel := context.WithTimeout(ctx, q.timeout)
		defer cancel()

		res := q.provider.Infer(ctx, qualityPrompt(artifact, componentType), Options{MaxTokens: 8, Temperature: 0})
		if res.OK() {
			if v, ok := parseGrade(res.Text); ok {
				return Score{Value: v / 10, Source: SourceModel}
			}
			q.logger.Debug("unparseable quality grade", zap.String("text", res.Text))
		} else {
			q.logger.Debug("quality model call failed", zap.String("reason", res.Text))
		}
	}

	return Score{Value: HeuristicQuality(artifact), Source: SourceHeuristic}
}

func qualityPrompt(artifact, componentType string) string {
	if len(artifact) > maxArtifactChars {
		artifact = artifact[:maxArtifactChars]
	}
	if componentType == "" {
		componentType = "UI"
	}
	return fmt.Sprintf("Rate the quality of this %s component from 0 to 10, "+
		"considering structure, accessibility and responsiveness. Reply with a number only.\n\n%s",
		componentType, artifact)
}

// parseGrade extracts the first number in text and accepts it if it lies
// in [0, 10].
func parseGrade(text string) (float64, bool) {
	m := numberPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || v < 0 || v > 10 {
		return 0, false
	}
	return v, true
}

var (
	semanticTags  = []string{"<header", "<nav", "<main", "<section", "<article", "<footer", "<aside", "<button", "<label", "<form"}
	a11yMarkers   = []string{"aria-", "role=", "alt=", "<label", "sr-only"}
	responsiveCue = []string{"sm:", "md:", "lg:", "@media", "flex", "grid", "max-w-", "minmax("}
)

// HeuristicQuality scores markup from 0.5 upwards for semantic elements,
// accessibility attributes and responsive layout cues.
func HeuristicQuality(artifact string) float64 {
	if strings.TrimSpace(artifact) == "" {
		return 0
	}
	lower := strings.ToLower(artifact)

	score := 0.5
	if containsAny(lower, semanticTags) {
		score += 0.15
	}
	if containsAny(lower, a11yMarkers) {
		score += 0.15
	}
	if containsAny(lower, responsiveCue) {
		score += 0.1
	}
	if strings.Contains(lower, "style=\"") {
		score -= 0.05
	}
	if len(artifact) < 40 {
		score -= 0.2
	}

	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
