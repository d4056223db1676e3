package storage

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, s.Init())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestInit verifies database initialization and schema creation.
func TestInit(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	s := New(dbPath, nil)

	require.NoError(t, s.Init())
	require.NoError(t, s.Init())
	defer s.Close()

	_, err := os.Stat(dbPath)
	assert.NoError(t, err)

	version, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

// TestInit_ReopenKeepsData verifies migrations are not re-applied.
func TestInit_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s := New(dbPath, nil)
	_, err := s.UpsertPattern(CodePattern{SkeletonHash: "h1", Skeleton: "div"}, 1.0)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s = New(dbPath, nil)
	defer s.Close()
	p, err := s.GetPattern("h1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 1, p.Frequency)
}

func TestUpsertPattern_RunningAverage(t *testing.T) {
	s := newTestStorage(t)
	base := CodePattern{SkeletonHash: "abc", Skeleton: "div\n  p", Snippet: "<div><p>x</p></div>"}

	p, err := s.UpsertPattern(base, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Frequency)
	assert.InDelta(t, 1.0, p.AvgScore, 1e-9)
	assert.False(t, p.Promoted)

	p, err = s.UpsertPattern(base, 0.6)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Frequency)
	assert.InDelta(t, 0.8, p.AvgScore, 1e-9)

	p, err = s.UpsertPattern(base, 0.7)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Frequency)
	assert.InDelta(t, 2.3/3, p.AvgScore, 1e-9)
	assert.Equal(t, "<div><p>x</p></div>", p.Snippet)
}

func TestUpsertPattern_FillsMissingComponentType(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.UpsertPattern(CodePattern{SkeletonHash: "abc", Skeleton: "div"}, 0.5)
	require.NoError(t, err)
	p, err := s.UpsertPattern(CodePattern{SkeletonHash: "abc", Skeleton: "div", ComponentType: "hero"}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "hero", p.ComponentType)

	p, err = s.UpsertPattern(CodePattern{SkeletonHash: "abc", Skeleton: "div", ComponentType: "card"}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "hero", p.ComponentType)
}

func TestUpsertPattern_Concurrent(t *testing.T) {
	s := newTestStorage(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpsertPattern(CodePattern{SkeletonHash: "same", Skeleton: "div"}, 1.0)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := s.GetPattern("same")
	require.NoError(t, err)
	assert.Equal(t, 20, p.Frequency)
	assert.InDelta(t, 1.0, p.AvgScore, 1e-9)
}

func TestPromotablePatterns(t *testing.T) {
	s := newTestStorage(t)

	record := func(hash string, scores ...float64) {
		for _, sc := range scores {
			_, err := s.UpsertPattern(CodePattern{SkeletonHash: hash, Skeleton: hash}, sc)
			require.NoError(t, err)
		}
	}
	record("strong", 1, 1, 1)
	record("frequent", 0.6, 0.6, 0.6, 0.6)
	record("rare", 1, 1)
	record("weak", 0.5, 0.5, 0.5)

	got, err := s.PromotablePatterns(3, 0.5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "strong", got[0].SkeletonHash)
	assert.Equal(t, "frequent", got[1].SkeletonHash)

	require.NoError(t, s.MarkPromoted("strong"))
	require.NoError(t, s.MarkPromoted("strong"))

	got, err = s.PromotablePatterns(3, 0.5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "frequent", got[0].SkeletonHash)

	assert.Error(t, s.MarkPromoted("missing"))
}

func TestListPatterns(t *testing.T) {
	s := newTestStorage(t)
	for i, hash := range []string{"a", "b", "b", "c", "c", "c"} {
		_, err := s.UpsertPattern(CodePattern{SkeletonHash: hash, Skeleton: hash}, float64(i)/10)
		require.NoError(t, err)
	}

	all, err := s.ListPatterns(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].SkeletonHash)

	top, err := s.ListPatterns(1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestFeedback_StatsAndScores(t *testing.T) {
	s := newTestStorage(t)

	rows := []Feedback{
		{GenerationID: "g1", ComponentType: "hero", Source: SourceExplicit, Score: 1.5, Confidence: 1},
		{GenerationID: "g2", ComponentType: "hero", Source: SourceImplicit, Score: -1.0, Confidence: 0.7},
		{GenerationID: "g3", ComponentType: "card", Source: SourceImplicit, Score: 0.1, Confidence: 0.4},
	}
	for _, f := range rows {
		require.NoError(t, s.InsertFeedback(f))
	}

	stats, err := s.FeedbackStats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Explicit)
	assert.Equal(t, 2, stats.Implicit)
	assert.Equal(t, 1, stats.Positive)
	assert.Equal(t, 1, stats.Negative)
	assert.Equal(t, 1, stats.Neutral)
	assert.InDelta(t, 0.2, stats.AvgScore, 1e-9)

	counts, err := s.FeedbackCounts()
	require.NoError(t, err)
	assert.Equal(t, FeedbackCounts{Total: 3, Explicit: 1, Implicit: 2}, counts)

	hero, err := s.ComponentScore("hero")
	require.NoError(t, err)
	assert.InDelta(t, 0.25, hero, 1e-9)

	none, err := s.ComponentScore("footer")
	require.NoError(t, err)
	assert.Zero(t, none)

	scores, err := s.ComponentScores()
	require.NoError(t, err)
	assert.Len(t, scores, 2)
	assert.InDelta(t, 0.1, scores["card"], 1e-9)
}

func TestFeedback_Validation(t *testing.T) {
	s := newTestStorage(t)

	assert.Error(t, s.InsertFeedback(Feedback{Source: SourceExplicit}))
	assert.Error(t, s.InsertFeedback(Feedback{GenerationID: "g", Source: "other"}))
}

func TestRecentFeedback_NewestFirst(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now()

	require.NoError(t, s.InsertFeedback(Feedback{GenerationID: "old", Source: SourceImplicit, Score: 1, CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, s.InsertFeedback(Feedback{GenerationID: "tiny", Source: SourceImplicit, Score: 0.1, CreatedAt: now}))
	require.NoError(t, s.InsertFeedback(Feedback{GenerationID: "new", Source: SourceExplicit, Score: -1, CreatedAt: now}))

	got, err := s.RecentFeedback(0.3, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].GenerationID)
	assert.Equal(t, RatingNegative, got[0].Rating)
	assert.Equal(t, "old", got[1].GenerationID)

	n, err := s.CountSignificant(0.3)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEmbeddings_RoundTrip(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.SaveEmbeddings([]Embedding{
		{SourceID: "p1", SourceType: "prompt", Text: "pricing table", Vector: []float32{0.1, -0.2, 0.3}},
		{SourceID: "p2", SourceType: "prompt", Text: "hero", Vector: []float32{1, 0, 0}},
		{SourceID: "c1", SourceType: "pattern", Text: "div", Vector: []float32{0, 1}},
	}))

	e, err := s.GetEmbedding("p1", "prompt")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, []float32{0.1, -0.2, 0.3}, e.Vector)
	assert.Equal(t, 3, e.Dimensions)

	missing, err := s.GetEmbedding("p1", "pattern")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.SaveEmbedding(Embedding{SourceID: "p1", SourceType: "prompt", Text: "updated", Vector: []float32{0, 0, 1, 0}}))
	e, err = s.GetEmbedding("p1", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "updated", e.Text)
	assert.Equal(t, 4, e.Dimensions)

	prompts, err := s.LoadEmbeddings("prompt")
	require.NoError(t, err)
	assert.Len(t, prompts, 2)

	n, err := s.CountEmbeddings("")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	deleted, err := s.DeleteEmbeddings("prompt")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	n, err = s.CountEmbeddings("prompt")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEmbeddings_RejectsEmptyVector(t *testing.T) {
	s := newTestStorage(t)
	assert.Error(t, s.SaveEmbedding(Embedding{SourceID: "x", SourceType: "prompt"}))
}

func TestGenerations_AndCleanup(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.SaveGeneration(Generation{ID: "old", ComponentType: "hero", Timestamp: time.Now().Add(-48 * time.Hour)}))
	require.NoError(t, s.SaveGeneration(Generation{ID: "new", ComponentType: "card", Style: "minimal", Timestamp: time.Now()}))

	g, err := s.GetGeneration("new")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, "card", g.ComponentType)
	assert.Equal(t, "minimal", g.Style)

	require.NoError(t, s.Cleanup(24*time.Hour))

	g, err = s.GetGeneration("old")
	require.NoError(t, err)
	assert.Nil(t, g)

	g, err = s.GetGeneration("new")
	require.NoError(t, err)
	assert.NotNil(t, g)
}

// TestGracefulDegradation verifies behavior when the DB is unavailable.
func TestGracefulDegradation(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	s := New(filepath.Join(blocker, "sub", "test.db"), nil)
	assert.Error(t, s.Init())
	assert.False(t, s.Enabled())

	p, err := s.UpsertPattern(CodePattern{SkeletonHash: "h", Skeleton: "div"}, 1)
	assert.NoError(t, err)
	assert.Nil(t, p)

	assert.NoError(t, s.InsertFeedback(Feedback{GenerationID: "g", Source: SourceImplicit}))
	assert.NoError(t, s.SaveEmbedding(Embedding{SourceID: "x", SourceType: "prompt", Vector: []float32{1}}))

	stats, err := s.FeedbackStats()
	assert.NoError(t, err)
	assert.Zero(t, stats.Total)

	embeddings, err := s.LoadEmbeddings("prompt")
	assert.NoError(t, err)
	assert.Empty(t, embeddings)
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0, 1.5, -2.25, 3.4028235e38}
	got, err := decodeVector(encodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
