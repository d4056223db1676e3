package learning

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/khanglvm/genloop/internal/search"
)

const (
	// promptQueueSize is the buffer size for the prompt queue.
	// If full, prompts are dropped (non-blocking).
	promptQueueSize = 1000

	// batchFlushSize is the number of prompts that triggers an immediate flush.
	batchFlushSize = 16

	// flushInterval is how often pending prompts are flushed.
	flushInterval = 50 * time.Millisecond

	// flushTimeout bounds one embedding batch.
	flushTimeout = 30 * time.Second
)

// TextIndexer embeds and stores documents under a source kind.
type TextIndexer interface {
	IndexTexts(ctx context.Context, sourceType string, docs []search.Document) (int, error)
}

// Tracker indexes generation prompts in the background so embedding never
// sits on the generation path.
type Tracker struct {
	indexer  TextIndexer
	queue    chan search.Document
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// NewTracker starts a tracker feeding indexer. A nil indexer yields a
// disabled tracker.
func NewTracker(indexer TextIndexer, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		indexer:  indexer,
		queue:    make(chan search.Document, promptQueueSize),
		stopChan: make(chan struct{}),
		logger:   logger.Named("tracker"),
	}

	t.wg.Add(1)
	go t.processPrompts()

	return t
}

// Track queues a prompt for indexing (non-blocking).
func (t *Tracker) Track(doc search.Document) {
	if t.indexer == nil || doc.ID == "" || doc.Text == "" {
		return
	}

	select {
	case t.queue <- doc:
	default:
		t.logger.Warn("prompt queue full, dropping prompt", zap.String("id", doc.ID))
	}
}

// Stop flushes queued prompts and waits for the worker to exit.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopChan)
		t.wg.Wait()
	})
}

func (t *Tracker) processPrompts() {
	defer t.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]search.Document, 0, batchFlushSize)

	for {
		select {
		case doc := <-t.queue:
			batch = append(batch, doc)
			if len(batch) >= batchFlushSize {
				t.flush(batch)
				batch = make([]search.Document, 0, batchFlushSize)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				t.flush(batch)
				batch = make([]search.Document, 0, batchFlushSize)
			}

		case <-t.stopChan:
			// Drain what is already queued, then exit.
			for {
				select {
				case doc := <-t.queue:
					batch = append(batch, doc)
					if len(batch) >= batchFlushSize {
						t.flush(batch)
						batch = make([]search.Document, 0, batchFlushSize)
					}
				default:
					t.flush(batch)
					return
				}
			}
		}
	}
}

func (t *Tracker) flush(batch []search.Document) {
	if len(batch) == 0 || t.indexer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if _, err := t.indexer.IndexTexts(ctx, search.SourcePrompt, batch); err != nil {
		t.logger.Warn("failed to index prompts", zap.Int("count", len(batch)), zap.Error(err))
	}
}
