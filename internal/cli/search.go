package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khanglvm/genloop/internal/search"
)

// NewSearchCmd creates the 'search' command for semantic search.
func NewSearchCmd() *cobra.Command {
	var (
		sourceType string
		topK       int
		threshold  float64
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Semantic search over stored embeddings",
		Long: `Embed the query and rank one embedding partition by cosine similarity.

Partitions:
  component    - catalog snippets (populate with 'genloop index')
  prompt       - prompts recorded by 'genloop serve'
  description  - free-form descriptions`,
		Example: `  genloop search "pricing table with three tiers"
  genloop search "dark hero" --source prompt --top-k 10`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(appOptions{embed: true})
			if err != nil {
				return err
			}
			defer a.Close()

			ix, err := a.indexer()
			if err != nil {
				return err
			}
			matches, err := ix.SearchText(cmd.Context(), strings.Join(args, " "), sourceType, topK, threshold)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, matches)
			}
			if len(matches) == 0 {
				fmt.Fprintln(out, "No matches.")
				return nil
			}
			for i, m := range matches {
				fmt.Fprintf(out, "%2d. %.3f  %s\n", i+1, m.Similarity, m.SourceID)
				fmt.Fprintf(out, "    %s\n", truncateText(m.Text, 100))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceType, "source", "s", search.SourceComponent, "Embedding partition: component, prompt or description")
	cmd.Flags().IntVarP(&topK, "top-k", "k", search.DefaultTopK, "Maximum results")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum similarity")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}
