package learning

import (
	"fmt"
	"strings"
	"time"

	"github.com/khanglvm/genloop/internal/storage"
)

const (
	// RapidFollowupGap is the gap under which a follow-up reads as dissatisfaction.
	RapidFollowupGap = 30 * time.Second

	// LongGap is the gap over which a follow-up reads as the user having been content.
	LongGap = 300 * time.Second
)

var (
	positiveKeywords = []string{
		"perfect", "great", "awesome", "love it", "looks good", "exactly",
		"excellent", "nice", "thanks", "thank you", "amazing", "beautiful",
		"that works", "lgtm",
	}
	negativeKeywords = []string{
		"wrong", "broken", "doesn't work", "not what i", "redo", "start over",
		"terrible", "ugly", "hate", "completely different", "try again",
	}
	tweakKeywords = []string{
		"change", "adjust", "tweak", "make it", "slightly", "a bit", "bigger",
		"smaller", "darker", "lighter", "color", "spacing", "padding", "font", "move",
	}
)

// Classifier infers implicit feedback about a generation from the one
// that follows it in the same session.
type Classifier struct {
	positive []string
	negative []string
	tweak    []string
}

// NewClassifier returns a classifier with the built-in keyword dictionaries.
func NewClassifier() *Classifier {
	return &Classifier{positive: positiveKeywords, negative: negativeKeywords, tweak: tweakKeywords}
}

// Classify compares cur against prev. promptContext is the free text the
// user sent with cur, if any.
func (c *Classifier) Classify(prev, cur storage.Generation, promptContext string) Classification {
	var signals []Signal

	taskSwitch := false
	if prev.ComponentType != cur.ComponentType {
		taskSwitch = true
		signals = append(signals, Signal{
			Kind: SignalNewTask, Score: 1.0, Confidence: 0.8,
			Reason: fmt.Sprintf("component type changed from %q to %q", prev.ComponentType, cur.ComponentType),
		})
	} else if prev.Tool != cur.Tool {
		taskSwitch = true
		signals = append(signals, Signal{
			Kind: SignalNewTask, Score: 1.0, Confidence: 0.8,
			Reason: fmt.Sprintf("tool changed from %q to %q", prev.Tool, cur.Tool),
		})
	}

	praised := false
	if text := strings.ToLower(strings.TrimSpace(promptContext)); text != "" {
		positive, negative := firstMatch(text, c.positive), firstMatch(text, c.negative)
		if positive != "" {
			praised = true
			signals = append(signals, Signal{
				Kind: SignalPraise, Score: 2.0, Confidence: 0.9,
				Reason: fmt.Sprintf("positive keyword %q", positive),
			})
		}
		if negative != "" {
			signals = append(signals, Signal{
				Kind: SignalMajorRedo, Score: -1.0, Confidence: 0.7,
				Reason: fmt.Sprintf("negative keyword %q", negative),
			})
		}
		if positive == "" && negative == "" {
			if tweak := firstMatch(text, c.tweak); tweak != "" {
				signals = append(signals, Signal{
					Kind: SignalMinorTweak, Score: 0.5, Confidence: 0.6,
					Reason: fmt.Sprintf("tweak keyword %q", tweak),
				})
			}
		}
	}

	gap := cur.Timestamp.Sub(prev.Timestamp)
	if gap < 0 {
		gap = -gap
	}
	switch {
	case gap < RapidFollowupGap:
		signals = append(signals, Signal{
			Kind: SignalRapidFollowup, Score: -0.3, Confidence: 0.5,
			Reason: fmt.Sprintf("follow-up after %s", gap.Round(time.Second)),
		})
	case gap > LongGap:
		signals = append(signals, Signal{
			Kind: SignalTimeGap, Score: 0.8, Confidence: 0.6,
			Reason: fmt.Sprintf("follow-up after %s", gap.Round(time.Second)),
		})
	}

	if !taskSwitch && !praised && prev.Framework == cur.Framework {
		signals = append(signals, Signal{
			Kind: SignalMinorTweak, Score: 0.0, Confidence: 0.4,
			Reason: "same component, framework and tool: likely refinement",
		})
	}

	return Combine(signals)
}

func firstMatch(text string, keywords []string) string {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return k
		}
	}
	return ""
}
