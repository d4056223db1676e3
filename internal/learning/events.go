/*
Package learning closes the feedback loop around UI generation.

It classifies consecutive generations of a session into implicit approval
or rejection signals, persists implicit and explicit feedback, and ties
the fingerprinting, pattern ledger, promotion, semantic index and training
export together behind Loop.
*/
package learning

import (
	"crypto/sha256"
	"encoding/hex"
)

// SignalKind tags an implicit signal.
type SignalKind string

const (
	SignalNewTask       SignalKind = "new_task"
	SignalPraise        SignalKind = "praise"
	SignalMajorRedo     SignalKind = "major_redo"
	SignalMinorTweak    SignalKind = "minor_tweak"
	SignalRapidFollowup SignalKind = "rapid_followup"
	SignalTimeGap       SignalKind = "time_gap"
)

// Signal is one piece of implicit evidence about the previous generation.
type Signal struct {
	Kind       SignalKind `json:"kind"`
	Score      float64    `json:"score"`
	Confidence float64    `json:"confidence"`
	Reason     string     `json:"reason"`
}

// Classification is the outcome of comparing two consecutive generations.
type Classification struct {
	Signals            []Signal `json:"signals"`
	CombinedScore      float64  `json:"combined_score"`
	CombinedConfidence float64  `json:"combined_confidence"`
}

// Empty reports whether no signal fired.
func (c Classification) Empty() bool {
	return len(c.Signals) == 0
}

// Combine builds a classification from signals. The score is the
// confidence-weighted mean and the confidence is the maximum.
func Combine(signals []Signal) Classification {
	c := Classification{Signals: signals}
	var weighted, total float64
	for _, s := range signals {
		weighted += s.Score * s.Confidence
		total += s.Confidence
		if s.Confidence > c.CombinedConfidence {
			c.CombinedConfidence = s.Confidence
		}
	}
	if total > 0 {
		c.CombinedScore = weighted / total
	}
	return c
}

// CodeHash is the SHA-256 of a generated artifact.
func CodeHash(artifact string) string {
	if artifact == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(artifact))
	return hex.EncodeToString(hash[:])
}
