/*
Package patterns keeps the ledger of structural code patterns and promotes
the ones that keep scoring well into the snippet catalog.

A pattern moves through Recorded (frequency 1), Updated (frequency and
running average refreshed on every sighting), Eligible and finally
Promoted, which is terminal.
*/
package patterns

import (
	"errors"

	"go.uber.org/zap"

	"github.com/khanglvm/genloop/internal/storage"
)

const (
	// MinFrequency is the number of sightings required for promotion.
	MinFrequency = 3

	// MinAvgScore is the running average a pattern must exceed.
	MinAvgScore = 0.5
)

// Eligible reports whether a pattern may be promoted.
func Eligible(p storage.CodePattern) bool {
	return !p.Promoted && p.Frequency >= MinFrequency && p.AvgScore > MinAvgScore
}

// Ledger records every skeleton sighting with its score.
type Ledger struct {
	repo   storage.PatternRepository
	logger *zap.Logger
}

// NewLedger creates a ledger over a pattern repository.
func NewLedger(repo storage.PatternRepository, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{repo: repo, logger: logger.Named("patterns")}
}

// RecordPattern inserts a new skeleton or folds score into its running
// average. It is called for every generation, scored or not.
func (l *Ledger) RecordPattern(hash, skeleton, snippet, componentType, category string, score float64) (*storage.CodePattern, error) {
	if hash == "" {
		return nil, errors.New("pattern hash is required")
	}

	p, err := l.repo.UpsertPattern(storage.CodePattern{
		SkeletonHash:  hash,
		Skeleton:      skeleton,
		Snippet:       snippet,
		ComponentType: componentType,
		Category:      category,
	}, score)
	if err != nil {
		return nil, err
	}
	if p != nil {
		l.logger.Debug("pattern recorded",
			zap.String("hash", hash),
			zap.Int("frequency", p.Frequency),
			zap.Float64("avg_score", p.AvgScore))
	}
	return p, nil
}

// Promotable returns eligible patterns, strongest evidence first.
func (l *Ledger) Promotable() ([]storage.CodePattern, error) {
	return l.repo.PromotablePatterns(MinFrequency, MinAvgScore)
}

// Get returns a pattern by hash, or nil.
func (l *Ledger) Get(hash string) (*storage.CodePattern, error) {
	return l.repo.GetPattern(hash)
}

// List returns the most frequent patterns.
func (l *Ledger) List(limit int) ([]storage.CodePattern, error) {
	return l.repo.ListPatterns(limit)
}

func (l *Ledger) markPromoted(hash string) error {
	return l.repo.MarkPromoted(hash)
}
