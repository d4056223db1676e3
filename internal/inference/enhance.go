package inference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Hints are generation parameters the enhanced prompt should carry.
type Hints struct {
	ComponentType string `json:"component_type,omitempty"`
	Style         string `json:"style,omitempty"`
	Framework     string `json:"framework,omitempty"`
	Mood          string `json:"mood,omitempty"`
}

// Enhancement is a rewritten prompt.
type Enhancement struct {
	Original string `json:"original"`
	Prompt   string `json:"prompt"`
	Source   Source `json:"source"`
}

// PromptEnhancer rewrites vague UI requests into specific ones.
type PromptEnhancer struct {
	provider Provider
	timeout  time.Duration
	logger   *zap.Logger
}

// NewPromptEnhancer creates an enhancer. A nil provider means heuristics only.
func NewPromptEnhancer(p Provider, timeout time.Duration, logger *zap.Logger) *PromptEnhancer {
	if p == nil {
		p = Heuristic{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromptEnhancer{provider: p, timeout: timeout, logger: logger.Named("enhancer")}
}

// Enhance rewrites prompt. It never fails.
func (e *PromptEnhancer) Enhance(ctx context.Context, prompt string, hints Hints) Enhancement {
	prompt = strings.TrimSpace(prompt)
	out := Enhancement{Original: prompt}

	if prompt != "" && e.provider.Ready() {
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		res := e.provider.Infer(ctx, enhancePrompt(prompt, hints), Options{MaxTokens: 256, Temperature: 0.3})
		if res.OK() && strings.TrimSpace(res.Text) != "" {
			out.Prompt = strings.TrimSpace(res.Text)
			out.Source = SourceModel
			return out
		}
		e.logger.Debug("enhance model call failed", zap.String("reason", res.Text))
	}

	out.Prompt = HeuristicEnhance(prompt, hints)
	out.Source = SourceHeuristic
	return out
}

func enhancePrompt(prompt string, h Hints) string {
	var b strings.Builder
	b.WriteString("Rewrite this UI generation request so it is specific about layout, content, ")
	b.WriteString("accessibility and responsive behaviour. Reply with the improved request only.\n\n")
	fmt.Fprintf(&b, "Request: %s\n", prompt)
	for _, kv := range [][2]string{
		{"Component", h.ComponentType}, {"Style", h.Style}, {"Framework", h.Framework}, {"Mood", h.Mood},
	} {
		if kv[1] != "" {
			fmt.Fprintf(&b, "%s: %s\n", kv[0], kv[1])
		}
	}
	return b.String()
}

// HeuristicEnhance appends the hints the prompt does not already mention,
// plus accessibility and responsiveness reminders when absent.
func HeuristicEnhance(prompt string, h Hints) string {
	lower := strings.ToLower(prompt)
	parts := []string{prompt}

	add := func(value, format string) {
		if value != "" && !strings.Contains(lower, strings.ToLower(value)) {
			parts = append(parts, fmt.Sprintf(format, value))
		}
	}
	add(h.ComponentType, "Component type: %s.")
	add(h.Style, "Visual style: %s.")
	add(h.Mood, "Mood: %s.")
	add(h.Framework, "Target framework: %s.")

	if !strings.Contains(lower, "accessib") && !strings.Contains(lower, "aria") {
		parts = append(parts, "Use semantic HTML with accessible labels.")
	}
	if !strings.Contains(lower, "responsive") && !strings.Contains(lower, "mobile") {
		parts = append(parts, "Make the layout responsive from mobile to desktop.")
	}

	return strings.TrimSpace(strings.Join(parts, " "))
}
