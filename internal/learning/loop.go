package learning

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khanglvm/genloop/internal/fingerprint"
	"github.com/khanglvm/genloop/internal/inference"
	"github.com/khanglvm/genloop/internal/patterns"
	"github.com/khanglvm/genloop/internal/search"
	"github.com/khanglvm/genloop/internal/storage"
	"github.com/khanglvm/genloop/internal/training"
)

// ErrPromotionDisabled is returned when no catalog was configured.
var ErrPromotionDisabled = errors.New("promotion is disabled: no catalog configured")

// Config wires a Loop. Only Storage is required.
type Config struct {
	Storage  storage.Storage
	Sessions SessionStore
	// Catalog receives promoted patterns. Nil disables promotion.
	Catalog patterns.CatalogPort
	// Indexer embeds prompts and answers text queries. Nil limits search
	// to caller-supplied vectors.
	Indexer  *search.Indexer
	Quality  *inference.QualityScorer
	Training training.Options
	Logger   *zap.Logger
}

// GenerationResult is what RecordGeneration learned from one event.
type GenerationResult struct {
	Generation       storage.Generation      `json:"generation"`
	Fingerprint      fingerprint.Fingerprint `json:"fingerprint"`
	Quality          inference.Score         `json:"quality"`
	Pattern          *storage.CodePattern    `json:"pattern,omitempty"`
	Classification   *Classification         `json:"classification,omitempty"`
	ImplicitFeedback *storage.Feedback       `json:"implicit_feedback,omitempty"`
}

// Loop is the entry point of the learning system.
type Loop struct {
	store      storage.Storage
	sessions   SessionStore
	classifier *Classifier
	feedback   *FeedbackStore
	ledger     *patterns.Ledger
	promoter   *patterns.PromotionEngine
	indexer    *search.Indexer
	exporter   *training.Exporter
	quality    *inference.QualityScorer
	tracker    *Tracker
	logger     *zap.Logger
}

// New wires a loop from cfg.
func New(cfg Config) *Loop {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = NewSessionStore(0, 0)
	}
	quality := cfg.Quality
	if quality == nil {
		quality = inference.NewQualityScorer(nil, 0, logger)
	}
	indexer := cfg.Indexer
	if indexer == nil {
		indexer = search.NewIndexer(search.NewEngine(cfg.Storage, logger), nil, logger)
	}

	l := &Loop{
		store:      cfg.Storage,
		sessions:   sessions,
		classifier: NewClassifier(),
		feedback:   NewFeedbackStore(cfg.Storage, cfg.Storage, sessions, logger),
		ledger:     patterns.NewLedger(cfg.Storage, logger),
		indexer:    indexer,
		exporter:   training.NewExporter(cfg.Storage, cfg.Training, logger),
		quality:    quality,
		logger:     logger.Named("loop"),
	}
	if cfg.Catalog != nil {
		l.promoter = patterns.NewPromotionEngine(l.ledger, cfg.Catalog, logger)
	}
	if indexer.CanEmbed() {
		l.tracker = NewTracker(indexer, logger)
	}
	return l
}

// RecordGeneration records one generation event. Learning failures are
// logged and skipped; they never fail the generation.
func (l *Loop) RecordGeneration(ctx context.Context, gen storage.Generation, artifact, promptContext string) GenerationResult {
	if gen.ID == "" {
		gen.ID = uuid.NewString()
	}
	if gen.Timestamp.IsZero() {
		gen.Timestamp = time.Now()
	}
	if gen.CodeHash == "" {
		gen.CodeHash = CodeHash(artifact)
	}
	result := GenerationResult{Generation: gen}

	if err := l.store.SaveGeneration(gen); err != nil {
		l.logger.Warn("failed to save generation", zap.String("id", gen.ID), zap.Error(err))
	}

	result.Fingerprint = fingerprint.Compute(artifact)
	result.Quality = l.quality.Score(ctx, artifact, gen.ComponentType)

	p, err := l.ledger.RecordPattern(result.Fingerprint.Hash, result.Fingerprint.Skeleton, artifact,
		gen.ComponentType, gen.Industry, result.Quality.Value)
	if err != nil {
		l.logger.Warn("failed to record pattern", zap.String("hash", result.Fingerprint.Hash), zap.Error(err))
	}
	result.Pattern = p

	if prev, ok := l.sessions.Last(gen.SessionID); ok && prev.ID != gen.ID {
		c := l.classifier.Classify(prev, gen, promptContext)
		result.Classification = &c

		fb, err := l.feedback.RecordImplicit(prev.ID, c)
		if err != nil {
			l.logger.Warn("failed to record implicit feedback", zap.String("generation_id", prev.ID), zap.Error(err))
		}
		result.ImplicitFeedback = fb
	}
	l.sessions.Remember(gen)

	if l.tracker != nil {
		l.tracker.Track(search.Document{ID: gen.ID, Text: gen.Prompt})
	}
	return result
}

// RecordExplicitFeedback records a user rating of a generation.
func (l *Loop) RecordExplicitFeedback(generationID string, rating storage.Rating, comment string) (*storage.Feedback, error) {
	return l.feedback.RecordExplicit(generationID, rating, comment)
}

// RunPromotionCycle promotes every eligible pattern and returns the count.
func (l *Loop) RunPromotionCycle(ctx context.Context) int {
	if l.promoter == nil {
		l.logger.Debug("promotion skipped", zap.Error(ErrPromotionDisabled))
		return 0
	}
	return l.promoter.RunCycle(ctx)
}

// Promote promotes a single pattern by skeleton hash.
func (l *Loop) Promote(ctx context.Context, hash, componentType, category string) (*storage.CodePattern, error) {
	if l.promoter == nil {
		return nil, ErrPromotionDisabled
	}
	p, err := l.ledger.Get(hash)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, patterns.ErrNotEligible
	}
	if _, err := l.promoter.Promote(ctx, *p, componentType, category); err != nil {
		return nil, err
	}
	return l.ledger.Get(hash)
}

// SemanticSearch ranks stored embeddings of sourceType against vector.
func (l *Loop) SemanticSearch(vector []float32, sourceType string, topK int, threshold float64) ([]search.Match, error) {
	return l.indexer.Engine().Search(vector, sourceType, topK, threshold)
}

// SearchText embeds text and ranks sourceType against it.
func (l *Loop) SearchText(ctx context.Context, text, sourceType string, topK int, threshold float64) ([]search.Match, error) {
	return l.indexer.SearchText(ctx, text, sourceType, topK, threshold)
}

// ExportForAdapter writes one adapter dataset into outputDir.
func (l *Loop) ExportForAdapter(ctx context.Context, adapter, outputDir string) (training.ExportResult, error) {
	return l.exporter.ExportForAdapter(ctx, adapter, outputDir)
}

// NewScheduler returns a scheduler running promotion cycles every interval.
func (l *Loop) NewScheduler(interval time.Duration) *patterns.Scheduler {
	return patterns.NewScheduler(l, interval, l.logger)
}

// RunCycle lets the loop act as a patterns.Cycler.
func (l *Loop) RunCycle(ctx context.Context) int {
	return l.RunPromotionCycle(ctx)
}

// Feedback returns the feedback store.
func (l *Loop) Feedback() *FeedbackStore {
	return l.feedback
}

func (l *Loop) Ledger() *patterns.Ledger {
	return l.ledger
}

func (l *Loop) Exporter() *training.Exporter {
	return l.exporter
}

func (l *Loop) Indexer() *search.Indexer {
	return l.indexer
}

func (l *Loop) Sessions() SessionStore {
	return l.sessions
}

func (l *Loop) Quality() *inference.QualityScorer {
	return l.quality
}

// Close flushes pending prompt indexing.
func (l *Loop) Close() {
	if l.tracker != nil {
		l.tracker.Stop()
	}
}
