/*
Package cli implements the genloop commands.

Every command loads the config, wires the learning loop through openApp
and releases it before returning. Output goes to the command's writer so
commands can be exercised in tests.
*/
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khanglvm/genloop/internal/config"
	"github.com/khanglvm/genloop/internal/search"
)

// NewLearningCmd creates the learning command group.
func NewLearningCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learning",
		Short: "Inspect or reset the learning store",
		Long: `The learning store keeps generation events, feedback, code patterns and
embedding vectors in a local SQLite database (default ~/.genloop/genloop.db).

Commands:
  status  Show what the store holds
  clear   Delete all learning data`,
	}

	cmd.AddCommand(newLearningStatusCmd())
	cmd.AddCommand(newLearningClearCmd())

	return cmd
}

func newLearningStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show learning store status",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			counts, err := a.loop.Feedback().Counts()
			if err != nil {
				return err
			}
			list, err := a.loop.Ledger().List(0)
			if err != nil {
				return err
			}
			promoted := 0
			for _, p := range list {
				if p.Promoted {
					promoted++
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Learning Store Status")
			fmt.Fprintln(out, "=====================")
			fmt.Fprintf(out, "Database:   %s\n", orDash(a.store.Path()))
			fmt.Fprintf(out, "Feedback:   %d rows (%d explicit, %d implicit)\n", counts.Total, counts.Explicit, counts.Implicit)
			fmt.Fprintf(out, "Patterns:   %d (%d promoted)\n", len(list), promoted)
			for _, kind := range []string{search.SourceComponent, search.SourcePrompt, search.SourceDescription} {
				n, err := a.loop.Indexer().Engine().Count(kind)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Embeddings: %-12s %d\n", kind, n)
			}
			fmt.Fprintf(out, "Retention:  %d days\n", a.cfg.Storage.RetentionDays)
			return nil
		},
	}
}

func newLearningClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all learning data",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !yes {
				fmt.Fprint(out, "This will delete all learning data. Continue? (y/N): ")
				response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				response = strings.TrimSpace(response)
				if response != "y" && response != "Y" {
					fmt.Fprintln(out, "Cancelled")
					return nil
				}
			}

			cfg, err := config.LoadOrCreate(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			dbPath, err := config.ExpandPath(cfg.Storage.Path)
			if err != nil {
				return err
			}

			removed := false
			for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
				err := os.Remove(p)
				if err == nil {
					removed = true
					continue
				}
				if !os.IsNotExist(err) {
					return fmt.Errorf("failed to delete %s: %w", p, err)
				}
			}

			if !removed {
				fmt.Fprintln(out, "No learning data found")
				return nil
			}
			fmt.Fprintln(out, "Learning data cleared successfully")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}
