package patterns

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/khanglvm/genloop/internal/catalog"
	"github.com/khanglvm/genloop/internal/storage"
)

// ErrNotEligible is returned when a pattern fails promotion re-validation.
var ErrNotEligible = errors.New("pattern is not eligible for promotion")

// CatalogPort is the write side of the snippet catalog. RegisterSnippet
// must treat an existing id as an overwrite.
type CatalogPort interface {
	RegisterSnippet(entry catalog.Entry) error
}

// PromotionEngine publishes eligible patterns to the catalog.
type PromotionEngine struct {
	ledger  *Ledger
	catalog CatalogPort
	logger  *zap.Logger
	now     func() time.Time
}

// NewPromotionEngine creates an engine writing to cat.
func NewPromotionEngine(ledger *Ledger, cat CatalogPort, logger *zap.Logger) *PromotionEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromotionEngine{
		ledger:  ledger,
		catalog: cat,
		logger:  logger.Named("promotion"),
		now:     time.Now,
	}
}

// EntryID is the catalog id of a promoted pattern.
func EntryID(hash string) string {
	return "user-proven-" + hash
}

// Promote re-reads the pattern, checks it is still eligible, registers it
// in the catalog and only then marks it promoted. A catalog failure leaves
// the ledger untouched so the next cycle retries.
func (e *PromotionEngine) Promote(ctx context.Context, p storage.CodePattern, componentType, category string) (*catalog.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	current, err := e.ledger.Get(p.SkeletonHash)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read pattern %s: %w", p.SkeletonHash, err)
	}
	if current == nil || !Eligible(*current) {
		return nil, ErrNotEligible
	}

	entry := e.buildEntry(*current, componentType, category)
	if err := e.catalog.RegisterSnippet(entry); err != nil {
		e.logger.Warn("catalog write failed, pattern left eligible",
			zap.String("hash", current.SkeletonHash), zap.Error(err))
		return nil, fmt.Errorf("failed to register %s: %w", entry.ID, err)
	}

	if err := e.ledger.markPromoted(current.SkeletonHash); err != nil {
		e.logger.Warn("failed to mark pattern promoted",
			zap.String("hash", current.SkeletonHash), zap.Error(err))
		return nil, err
	}

	e.logger.Info("pattern promoted",
		zap.String("id", entry.ID),
		zap.Int("frequency", current.Frequency),
		zap.Float64("avg_score", current.AvgScore))
	return &entry, nil
}

func (e *PromotionEngine) buildEntry(p storage.CodePattern, componentType, category string) catalog.Entry {
	if componentType == "" {
		componentType = p.ComponentType
	}
	if componentType == "" {
		componentType = "component"
	}
	if category == "" {
		category = p.Category
	}

	short := p.SkeletonHash
	if len(short) > 8 {
		short = short[:8]
	}

	return catalog.Entry{
		ID:            EntryID(p.SkeletonHash),
		Name:          fmt.Sprintf("User-proven %s %s", componentType, short),
		ComponentType: componentType,
		Category:      category,
		Variant:       catalog.SourceUserProven,
		Description:   fmt.Sprintf("%s pattern seen %d times with average score %.2f", componentType, p.Frequency, p.AvgScore),
		Code:          p.Snippet,
		Tags:          []string{catalog.SourceUserProven, componentType},
		Source:        catalog.SourceUserProven,
		Metadata: map[string]string{
			"skeleton_hash": p.SkeletonHash,
			"frequency":     strconv.Itoa(p.Frequency),
			"avg_score":     strconv.FormatFloat(p.AvgScore, 'f', 4, 64),
			"promoted_at":   e.now().UTC().Format(time.RFC3339),
		},
	}
}

// RunCycle promotes every eligible pattern and returns how many succeeded.
func (e *PromotionEngine) RunCycle(ctx context.Context) int {
	candidates, err := e.ledger.Promotable()
	if err != nil {
		e.logger.Warn("failed to list promotable patterns", zap.Error(err))
		return 0
	}

	promoted := 0
	for _, p := range candidates {
		if ctx.Err() != nil {
			break
		}
		if _, err := e.Promote(ctx, p, "", ""); err == nil {
			promoted++
		}
	}

	if len(candidates) > 0 {
		e.logger.Info("promotion cycle finished",
			zap.Int("candidates", len(candidates)), zap.Int("promoted", promoted))
	}
	return promoted
}
