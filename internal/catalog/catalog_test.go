package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.RegisterMany([]Entry{
		{ID: "hero-split", Name: "Split hero", ComponentType: "hero", Description: "Hero with image on the right", Code: "<section></section>", Tags: []string{"landing", "image"}},
		{ID: "pricing-3col", Name: "Three column pricing", ComponentType: "pricing", Description: "Pricing table with three tiers", Code: "<div></div>"},
		{ID: "hero-center", Name: "Centered hero", ComponentType: "hero", Description: "Centered headline with call to action", Code: "<header></header>"},
	}))
	return c
}

func TestRegisterAndGet(t *testing.T) {
	c := seed(t)

	n, err := c.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	e, err := c.Get("hero-split")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "Split hero", e.Name)
	assert.Equal(t, "hero", e.ComponentType)
	assert.Equal(t, "<section></section>", e.Code)
	assert.ElementsMatch(t, []string{"landing", "image"}, e.Tags)

	missing, err := c.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRegisterSnippet_OverwritesByID(t *testing.T) {
	c := seed(t)

	entry := Entry{
		ID:            "user-proven-abc",
		Name:          "Proven card",
		ComponentType: "card",
		Variant:       SourceUserProven,
		Source:        SourceUserProven,
		Code:          "<div><p></p></div>",
		Metadata:      map[string]string{"frequency": "3"},
	}
	require.NoError(t, c.RegisterSnippet(entry))
	entry.Metadata["frequency"] = "4"
	require.NoError(t, c.RegisterSnippet(entry))

	n, err := c.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	got, err := c.Get("user-proven-abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "4", got.Metadata["frequency"])
	assert.Equal(t, SourceUserProven, got.Variant)
}

func TestRegisterSnippet_RequiresID(t *testing.T) {
	c := seed(t)
	assert.Error(t, c.RegisterSnippet(Entry{Name: "anonymous"}))
}

func TestSearch(t *testing.T) {
	c := seed(t)

	results, err := c.Search("pricing tiers", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "pricing-3col", results[0].ID)
	assert.Greater(t, results[0].Score, 0.0)

	empty, err := c.Search("   ", 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestByComponentType(t *testing.T) {
	c := seed(t)

	heroes, err := c.ByComponentType("hero", "", 10)
	require.NoError(t, err)
	assert.Len(t, heroes, 2)
	for _, h := range heroes {
		assert.Equal(t, "hero", h.ComponentType)
	}

	centered, err := c.ByComponentType("hero", "centered headline", 10)
	require.NoError(t, err)
	require.Len(t, centered, 1)
	assert.Equal(t, "hero-center", centered[0].ID)
}

func TestOpen_PersistsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.bleve")

	c, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, c.RegisterSnippet(Entry{ID: "a", Name: "Navbar", ComponentType: "navbar"}))
	require.NoError(t, c.Close())

	c, err = Open(path)
	require.NoError(t, err)
	defer c.Close()

	e, err := c.Get("a")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "Navbar", e.Name)
}

func TestOpen_LockedIndexFailsFast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.bleve")

	first, err := Open(path)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		second, err := OpenTimeout(path, 100*time.Millisecond)
		if err == nil {
			_ = second.Close()
		}
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrLocked)
	case <-time.After(5 * time.Second):
		t.Fatal("second open did not give up on the held lock")
	}

	require.NoError(t, first.Close())

	reopened, err := OpenTimeout(path, 100*time.Millisecond)
	require.NoError(t, err)
	assert.NoError(t, reopened.Close())
}

func TestLoadEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.json")
	data, err := json.Marshal([]Entry{{ID: "x", Name: "Footer", ComponentType: "footer"}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	entries, err := LoadEntries(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Footer", entries[0].Name)

	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"no id"}]`), 0644))
	_, err = LoadEntries(path)
	assert.Error(t, err)
}

func TestSearchText(t *testing.T) {
	e := Entry{Name: "Split hero", ComponentType: "hero", Description: "image right"}
	assert.Equal(t, "Split hero hero: image right", e.SearchText())
}
