package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanglvm/genloop/internal/catalog"
	"github.com/khanglvm/genloop/internal/config"
	"github.com/khanglvm/genloop/internal/embedder"
	"github.com/khanglvm/genloop/internal/inference"
	"github.com/khanglvm/genloop/internal/learning"
	"github.com/khanglvm/genloop/internal/logging"
	"github.com/khanglvm/genloop/internal/search"
	"github.com/khanglvm/genloop/internal/storage"
	"github.com/khanglvm/genloop/internal/training"
)

// configPath is set by the global --config flag. Empty means the default.
var configPath string

// BindGlobalFlags registers flags shared by every subcommand of root.
func BindGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $GENLOOP_CONFIG or ~/.genloop/config.toml)")
}

// catalogMode says whether a command opens the on-disk catalog.
type catalogMode int

const (
	// noCatalog leaves the index alone, so the command runs while serve
	// holds its lock.
	noCatalog catalogMode = iota

	// requireCatalog fails with catalog.ErrLocked when another process
	// holds the index.
	requireCatalog

	// preferCatalog runs without a catalog, and so without promotion,
	// when the index is locked.
	preferCatalog
)

// appOptions selects the optional parts of the wiring a command needs.
type appOptions struct {
	// embed loads the configured embedder. Commands that never search
	// text skip it, since fastembed downloads a model on first use.
	embed bool

	catalog catalogMode
}

// app is the fully wired learning system behind every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *storage.SQLiteStorage
	catalog  *catalog.Catalog
	embedder embedder.Embedder
	provider inference.Provider
	enhancer *inference.PromptEnhancer
	loop     *learning.Loop
}

// openApp loads config and wires config → logger → storage → catalog →
// embedder → indexer → inference → loop.
func openApp(opts appOptions) (*app, error) {
	cfg, err := config.LoadOrCreate(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	a := &app{cfg: cfg, logger: logging.New(cfg.LoggingOptions())}

	dbPath, err := config.ExpandPath(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	a.store = storage.New(dbPath, a.logger)
	if err := a.store.Init(); err != nil {
		a.logger.Warn("storage unavailable, learning data will not persist", zap.Error(err))
	}

	if err := a.openCatalog(opts.catalog); err != nil {
		a.Close()
		return nil, err
	}

	if opts.embed {
		emb, err := embedder.New(cfg.Embedding)
		if err != nil {
			a.logger.Warn("embedder unavailable, semantic search disabled", zap.Error(err))
		} else {
			a.embedder = emb
		}
	}
	var ix *search.Indexer
	if a.embedder != nil {
		ix = search.NewIndexer(search.NewEngine(a.store, a.logger), a.embedder, a.logger)
	}

	a.provider = inference.New(cfg.Inference, a.logger)
	timeout := cfg.Inference.Timeout()
	a.enhancer = inference.NewPromptEnhancer(a.provider, timeout, a.logger)

	lc := learning.Config{
		Storage:  a.store,
		Sessions: learning.NewSessionStore(cfg.SessionTTL(), cfg.Session.MaxEntries),
		Indexer:  ix,
		Quality:  inference.NewQualityScorer(a.provider, timeout, a.logger),
		Training: training.Options{
			MinAbsScore: cfg.Training.MinAbsScore,
			Limit:       cfg.Training.Limit,
			Compress:    cfg.Training.Compress,
		},
		Logger: a.logger,
	}
	if a.catalog != nil {
		lc.Catalog = a.catalog
	}
	a.loop = learning.New(lc)
	return a, nil
}

// openCatalog opens the on-disk catalog and registers the seed file, if any.
func (a *app) openCatalog(mode catalogMode) error {
	if mode == noCatalog {
		return nil
	}
	indexPath, err := config.ExpandPath(a.cfg.Catalog.IndexPath)
	if err != nil {
		return err
	}
	cat, err := catalog.Open(indexPath)
	if errors.Is(err, catalog.ErrLocked) && mode == preferCatalog {
		a.logger.Warn("catalog in use by another process, promotion disabled", zap.String("path", indexPath))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	a.catalog = cat

	if a.cfg.Catalog.SeedFile == "" {
		return nil
	}
	seedPath, err := config.ExpandPath(a.cfg.Catalog.SeedFile)
	if err != nil {
		return err
	}
	entries, err := catalog.LoadEntries(seedPath)
	if err != nil {
		a.logger.Warn("catalog seed file skipped", zap.String("path", seedPath), zap.Error(err))
		return nil
	}
	if err := a.catalog.RegisterMany(entries); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}
	return nil
}

// trainingDir returns the configured dataset directory, expanded.
func (a *app) trainingDir() (string, error) {
	return config.ExpandPath(a.cfg.Training.OutputDir)
}

// indexer returns the loop's indexer, failing when no embedder is loaded.
func (a *app) indexer() (*search.Indexer, error) {
	ix := a.loop.Indexer()
	if !ix.CanEmbed() {
		return nil, errors.New("semantic search needs an embedder; check the [embedding] config section")
	}
	return ix, nil
}

// cleanup applies the retention window to stored generation events.
func (a *app) cleanup(ctx context.Context) {
	if ctx.Err() != nil || a.cfg.Storage.RetentionDays <= 0 {
		return
	}
	if err := a.store.Cleanup(a.cfg.Retention()); err != nil {
		a.logger.Warn("retention cleanup failed", zap.Error(err))
	}
}

// Close releases every resource in reverse wiring order.
func (a *app) Close() {
	if a.loop != nil {
		a.loop.Close()
	}
	if a.provider != nil {
		if err := a.provider.Close(); err != nil {
			a.logger.Debug("inference provider close failed", zap.Error(err))
		}
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.catalog != nil {
		if err := a.catalog.Close(); err != nil {
			a.logger.Warn("catalog close failed", zap.Error(err))
		}
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logger.Sync()
}
