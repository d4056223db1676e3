package learning

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/khanglvm/genloop/internal/search"
)

type recordingIndexer struct {
	mu   sync.Mutex
	docs []search.Document
	kind string
	err  error
}

func (r *recordingIndexer) IndexTexts(_ context.Context, sourceType string, docs []search.Document) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	r.kind = sourceType
	r.docs = append(r.docs, docs...)
	return len(docs), nil
}

func (r *recordingIndexer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

func TestTracker_IndexesInBackground(t *testing.T) {
	ix := &recordingIndexer{}
	tracker := NewTracker(ix, nil)
	defer tracker.Stop()

	for i := 0; i < 5; i++ {
		tracker.Track(search.Document{ID: string(rune('a' + i)), Text: "a hero section"})
	}

	assert.Eventually(t, func() bool { return ix.count() == 5 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, search.SourcePrompt, ix.kind)
}

func TestTracker_StopDrainsQueue(t *testing.T) {
	ix := &recordingIndexer{}
	tracker := NewTracker(ix, nil)

	for i := 0; i < 40; i++ {
		tracker.Track(search.Document{ID: string(rune('A' + i)), Text: "prompt"})
	}
	tracker.Stop()
	tracker.Stop()

	assert.Equal(t, 40, ix.count())
	assert.Empty(t, tracker.queue)
}

func TestTracker_SkipsInvalidAndDisabled(t *testing.T) {
	ix := &recordingIndexer{}
	tracker := NewTracker(ix, nil)
	tracker.Track(search.Document{ID: "", Text: "no id"})
	tracker.Track(search.Document{ID: "y", Text: ""})
	tracker.Stop()

	assert.Zero(t, ix.count())

	none := NewTracker(nil, nil)
	none.Track(search.Document{ID: "x", Text: "dropped"})
	assert.Empty(t, none.queue)
	none.Stop()
}

func TestTracker_IndexErrorsAreSwallowed(t *testing.T) {
	ix := &recordingIndexer{err: errors.New("embedder down")}
	tracker := NewTracker(ix, nil)
	tracker.Track(search.Document{ID: "x", Text: "prompt"})
	tracker.Stop()

	assert.Zero(t, ix.count())
}
