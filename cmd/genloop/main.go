/*
Package main is the entry point for the genloop CLI.

genloop is a self-improving feedback loop for AI UI generation. It records
generation events, infers user satisfaction from follow-up behavior,
promotes structural patterns that keep scoring well into a snippet
catalog, and exports the feedback log as adapter training data.

Usage:

	genloop [command]

Available Commands:

	serve       Run the MCP server (stdio transport)
	record      Record a generation event
	feedback    Rate a previous generation
	promote     Promote proven code patterns into the catalog
	patterns    List recorded code patterns
	search      Semantic search over stored embeddings
	catalog     Manage the component snippet catalog
	index       Embed catalog entries for semantic search
	stats       Show feedback statistics and training readiness
	export      Export adapter training datasets as JSONL
	enhance     Rewrite a vague UI request into a specific one
	learning    Inspect or reset the learning store
	version     Show version information

Examples:

	# Run as MCP server
	genloop serve

	# Export training data once enough feedback has accumulated
	genloop export --compress
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khanglvm/genloop/internal/cli"
	"github.com/khanglvm/genloop/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "genloop",
		Short: "Self-improving feedback loop for AI UI generation",
		Long: `genloop learns from every UI generation.

It fingerprints generated markup, infers implicit feedback from what the
user does next (praise, redo requests, quick follow-ups, task switches),
records explicit ratings, and promotes code patterns that keep scoring
well into a searchable component catalog. The feedback log can be
exported as training data for small task-specific adapter models:
  • quality-scorer     - grades generated components 0-10
  • prompt-enhancer    - rewrites weak prompts
  • style-recommender  - picks a style for a request`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cli.BindGlobalFlags(rootCmd)

	rootCmd.AddCommand(cli.NewServeCmd())
	rootCmd.AddCommand(cli.NewRecordCmd())
	rootCmd.AddCommand(cli.NewFeedbackCmd())
	rootCmd.AddCommand(cli.NewPromoteCmd())
	rootCmd.AddCommand(cli.NewPatternsCmd())
	rootCmd.AddCommand(cli.NewSearchCmd())
	rootCmd.AddCommand(cli.NewCatalogCmd())
	rootCmd.AddCommand(cli.NewIndexCmd())
	rootCmd.AddCommand(cli.NewStatsCmd())
	rootCmd.AddCommand(cli.NewExportCmd())
	rootCmd.AddCommand(cli.NewEnhanceCmd())
	rootCmd.AddCommand(cli.NewLearningCmd())
	rootCmd.AddCommand(cli.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
