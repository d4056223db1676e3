package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khanglvm/genloop/internal/catalog"
	"github.com/khanglvm/genloop/internal/search"
)

// NewCatalogCmd creates the 'catalog' command group.
func NewCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the component snippet catalog",
		Long: `The catalog holds retrievable component snippets: seeded entries plus
patterns promoted from real generations (source "user-proven").

Commands:
  search  Keyword or hybrid search
  add     Register entries from a JSON file
  list    List entries`,
	}

	cmd.AddCommand(newCatalogSearchCmd())
	cmd.AddCommand(newCatalogAddCmd())
	cmd.AddCommand(newCatalogListCmd())

	return cmd
}

func newCatalogSearchCmd() *cobra.Command {
	var (
		componentType string
		limit         int
		hybrid        bool
		jsonOutput    bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search catalog entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(appOptions{embed: hybrid, catalog: requireCatalog})
			if err != nil {
				return err
			}
			defer a.Close()

			query := strings.Join(args, " ")
			var results []catalog.Result
			switch {
			case componentType != "":
				results, err = a.catalog.ByComponentType(componentType, query, limit)
			case hybrid:
				results, err = a.loop.Indexer().SearchHybrid(cmd.Context(), a.catalog, query, limit, search.DefaultFusionConfig)
			default:
				results, err = a.catalog.Search(query, limit)
			}
			if err != nil {
				return fmt.Errorf("catalog search failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, results)
			}
			printEntries(cmd, results, true)
			return nil
		},
	}

	cmd.Flags().StringVarP(&componentType, "type", "t", "", "Restrict to one component type")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum results")
	cmd.Flags().BoolVar(&hybrid, "hybrid", false, "Fuse keyword and semantic scores")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

func newCatalogAddCmd() *cobra.Command {
	var index bool

	cmd := &cobra.Command{
		Use:   "add <entries.json>",
		Short: "Register catalog entries from a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := catalog.LoadEntries(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(appOptions{embed: index, catalog: requireCatalog})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.catalog.RegisterMany(entries); err != nil {
				return fmt.Errorf("failed to register entries: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %d entries\n", len(entries))

			if !index {
				return nil
			}
			ix, err := a.indexer()
			if err != nil {
				return err
			}
			docs := make([]search.Document, 0, len(entries))
			for _, e := range entries {
				docs = append(docs, search.Document{ID: e.ID, Text: e.SearchText()})
			}
			n, err := ix.IndexTexts(cmd.Context(), search.SourceComponent, docs)
			if err != nil {
				return fmt.Errorf("failed to index entries: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d entries\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&index, "index", false, "Also embed the new entries for semantic search")

	return cmd
}

func newCatalogListCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List catalog entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(appOptions{catalog: requireCatalog})
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.catalog.All(limit)
			if err != nil {
				return fmt.Errorf("failed to list catalog: %w", err)
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), results)
			}
			printEntries(cmd, results, false)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum entries")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

// NewIndexCmd creates the 'index' command that embeds the catalog.
func NewIndexCmd() *cobra.Command {
	var (
		limit   int
		rebuild bool
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Embed catalog entries for semantic search",
		Long: `Embed every catalog entry into the component partition of the
embedding store. Re-running the command refreshes existing vectors.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(appOptions{embed: true, catalog: requireCatalog})
			if err != nil {
				return err
			}
			defer a.Close()

			ix, err := a.indexer()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if rebuild {
				removed, err := ix.Engine().DeleteAll(search.SourceComponent)
				if err != nil {
					return fmt.Errorf("failed to clear component embeddings: %w", err)
				}
				fmt.Fprintf(out, "Removed %d component embeddings\n", removed)
			}

			n, err := ix.IndexCatalog(cmd.Context(), a.catalog, limit)
			if err != nil {
				return fmt.Errorf("indexing failed: %w", err)
			}
			fmt.Fprintf(out, "Indexed %d catalog entries\n", n)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10000, "Maximum entries to index")
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Drop existing component embeddings first")

	return cmd
}

func printEntries(cmd *cobra.Command, results []catalog.Result, withScore bool) {
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No catalog entries.")
		return
	}
	for _, r := range results {
		if withScore {
			fmt.Fprintf(out, "  %s (%.3f)\n", r.ID, r.Score)
		} else {
			fmt.Fprintf(out, "  %s\n", r.ID)
		}
		fmt.Fprintf(out, "    Name:    %s\n", orDash(r.Name))
		fmt.Fprintf(out, "    Type:    %s\n", orDash(r.ComponentType))
		fmt.Fprintf(out, "    Source:  %s\n", orDash(r.Source))
		fmt.Fprintln(out)
	}
}
