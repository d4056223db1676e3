package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/genloop/internal/catalog"
	"github.com/khanglvm/genloop/internal/learning"
	"github.com/khanglvm/genloop/internal/training"
)

const heroMarkup = `<section class="flex md:grid"><header><h1>Ship faster</h1></header>` +
	`<button aria-label="Start">Start</button></section>`

// useTestConfig points every command at a config in a fresh temp dir and
// returns that dir.
func useTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	toml := fmt.Sprintf(`[storage]
path = %q
retention_days = 90

[catalog]
index_path = %q

[embedding]
provider = "hashing"
dimension = 64

[training]
output_dir = %q

[logging]
level = "error"
`, filepath.Join(dir, "genloop.db"), filepath.Join(dir, "catalog.bleve"), filepath.Join(dir, "training"))
	require.NoError(t, os.WriteFile(path, []byte(toml), 0600))

	old := configPath
	configPath = path
	t.Cleanup(func() { configPath = old })
	return dir
}

func newTestRoot() *cobra.Command {
	root := &cobra.Command{Use: "genloop", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(
		NewServeCmd(), NewRecordCmd(), NewFeedbackCmd(), NewPromoteCmd(), NewPatternsCmd(),
		NewSearchCmd(), NewCatalogCmd(), NewIndexCmd(), NewStatsCmd(), NewExportCmd(),
		NewEnhanceCmd(), NewLearningCmd(), NewVersionCmd(),
	)
	return root
}

// run executes args against a fresh command tree with stdin as input.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newTestRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func recordHero(t *testing.T, extra ...string) learning.GenerationResult {
	t.Helper()
	args := append([]string{"record", "--type", "hero", "--industry", "saas", "--json"}, extra...)
	out, err := run(t, heroMarkup, args...)
	require.NoError(t, err)

	var result learning.GenerationResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	return result
}

func TestCommandTree(t *testing.T) {
	root := newTestRoot()
	for _, name := range []string{
		"serve", "record", "feedback", "promote", "patterns", "search",
		"catalog", "index", "stats", "export", "enhance", "learning", "version",
	} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
		assert.NotEmpty(t, cmd.Short, name)
	}

	serve, _, _ := root.Find([]string{"serve"})
	assert.NotNil(t, serve.Flags().Lookup("no-promotion"))
}

func TestServeHelp(t *testing.T) {
	out, err := run(t, "", "serve", "--help")
	require.NoError(t, err)
	for _, want := range []string{"stdio", "record_generation", "export_training_data"} {
		assert.Contains(t, out, want)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:")
	assert.Contains(t, out, "Commit:")
}

func TestRecord_RequiresType(t *testing.T) {
	useTestConfig(t)
	_, err := run(t, heroMarkup, "record")
	assert.EqualError(t, err, "--type is required")
}

func TestRecord_FromFile(t *testing.T) {
	dir := useTestConfig(t)
	file := filepath.Join(dir, "hero.html")
	require.NoError(t, os.WriteFile(file, []byte(heroMarkup), 0600))

	out, err := run(t, "", "record", "--type", "hero", "--code-file", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded generation")
	assert.Contains(t, out, "seen 1 times")
}

func TestFeedbackAndStats(t *testing.T) {
	useTestConfig(t)
	gen := recordHero(t, "--style", "bold", "--prompt", "a bold hero")

	_, err := run(t, "", "feedback", gen.Generation.ID, "meh")
	assert.ErrorIs(t, err, learning.ErrInvalidRating)

	out, err := run(t, "", "feedback", gen.Generation.ID, "positive", "-m", "love it")
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded positive feedback (1.5)")

	out, err = run(t, "", "stats", "--json")
	require.NoError(t, err)
	var report statsReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Feedback.Explicit)
	assert.InDelta(t, 1.5, report.ComponentScores["hero"], 1e-9)
	require.Len(t, report.Readiness, len(training.Adapters))

	out, err = run(t, "", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Training readiness")
	assert.Contains(t, out, "quality-scorer")
}

func TestPromoteAndPatterns(t *testing.T) {
	useTestConfig(t)
	var hash string
	for i := 0; i < 3; i++ {
		hash = recordHero(t).Fingerprint.Hash
	}

	out, err := run(t, "", "patterns")
	require.NoError(t, err)
	assert.Contains(t, out, hash+" [eligible]")

	out, err = run(t, "", "promote")
	require.NoError(t, err)
	assert.Contains(t, out, "Promoted 1 pattern(s)")

	out, err = run(t, "", "patterns")
	require.NoError(t, err)
	assert.Contains(t, out, hash+" [promoted]")

	_, err = run(t, "", "promote", "--hash", hash)
	assert.ErrorContains(t, err, "not eligible")

	out, err = run(t, "", "catalog", "list", "--json")
	require.NoError(t, err)
	var entries []catalog.Result
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, catalog.SourceUserProven, entries[0].Source)
	assert.Equal(t, "saas", entries[0].Category)
}

func TestCommands_WhileCatalogHeldByServe(t *testing.T) {
	dir := useTestConfig(t)
	held, err := catalog.Open(filepath.Join(dir, "catalog.bleve"))
	require.NoError(t, err)
	defer held.Close()

	gen := recordHero(t)
	_, err = run(t, "", "feedback", gen.Generation.ID, "positive")
	require.NoError(t, err)
	_, err = run(t, "", "stats")
	require.NoError(t, err)
	_, err = run(t, "", "patterns")
	require.NoError(t, err)

	_, err = run(t, "", "promote")
	assert.ErrorIs(t, err, catalog.ErrLocked)

	a, err := openApp(appOptions{catalog: preferCatalog})
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.catalog)
	assert.Equal(t, 0, a.loop.RunPromotionCycle(context.Background()))
	_, err = a.loop.Promote(context.Background(), gen.Fingerprint.Hash, "hero", "")
	assert.ErrorIs(t, err, learning.ErrPromotionDisabled)
}

func TestCatalogAddIndexSearch(t *testing.T) {
	dir := useTestConfig(t)
	seed := filepath.Join(dir, "snippets.json")
	require.NoError(t, os.WriteFile(seed, []byte(`[
  {"id": "pricing-3col", "name": "Three column pricing", "component_type": "pricing",
   "description": "pricing tiers with a highlighted plan", "code": "<section></section>"},
  {"id": "hero-split", "name": "Split hero", "component_type": "hero",
   "description": "image on the right, headline on the left", "code": "<section></section>"}
]`), 0600))

	out, err := run(t, "", "catalog", "add", seed)
	require.NoError(t, err)
	assert.Contains(t, out, "Registered 2 entries")

	out, err = run(t, "", "catalog", "search", "pricing", "tiers")
	require.NoError(t, err)
	assert.Contains(t, out, "pricing-3col")
	assert.NotContains(t, out, "hero-split")

	out, err = run(t, "", "index")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 2 catalog entries")

	out, err = run(t, "", "search", "--json", "pricing tiers highlighted plan")
	require.NoError(t, err)
	assert.Contains(t, out, `"source_id": "pricing-3col"`)

	out, err = run(t, "", "catalog", "search", "--hybrid", "--json", "pricing")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "pricing-3col"`)
}

func TestEnhance(t *testing.T) {
	useTestConfig(t)
	out, err := run(t, "", "enhance", "make a pricing page", "--framework", "react")
	require.NoError(t, err)
	assert.Contains(t, out, "make a pricing page")
	assert.Contains(t, out, "Target framework: react.")
}

func TestExport(t *testing.T) {
	dir := useTestConfig(t)
	gen := recordHero(t, "--prompt", "a hero")
	_, err := run(t, "", "feedback", gen.Generation.ID, "good")
	require.NoError(t, err)

	out, err := run(t, "", "export")
	require.NoError(t, err)
	assert.Contains(t, out, "skipped (1/100 examples)")

	outDir := filepath.Join(dir, "datasets")
	out, err = run(t, "", "export", "--force", "--adapter", training.AdapterQualityScorer, "-o", outDir, "--compress")
	require.NoError(t, err)
	assert.Contains(t, out, "1 examples")
	assert.FileExists(t, filepath.Join(outDir, training.FileName(training.AdapterQualityScorer, true)))
}

func TestLearningClear(t *testing.T) {
	dir := useTestConfig(t)
	recordHero(t)
	require.FileExists(t, filepath.Join(dir, "genloop.db"))

	out, err := run(t, "n\n", "learning", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled")
	assert.FileExists(t, filepath.Join(dir, "genloop.db"))

	out, err = run(t, "", "learning", "clear", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Learning data cleared successfully")
	assert.NoFileExists(t, filepath.Join(dir, "genloop.db"))

	out, err = run(t, "", "learning", "clear", "-y")
	require.NoError(t, err)
	assert.Contains(t, out, "No learning data found")
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", truncateText("short", 10))
	assert.Equal(t, "abcd...", truncateText("abcdefghij", 7))
	assert.Equal(t, "-", orDash(""))
}
