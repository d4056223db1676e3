package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khanglvm/genloop/internal/patterns"
)

// NewPromoteCmd creates the 'promote' command.
func NewPromoteCmd() *cobra.Command {
	var (
		hash          string
		componentType string
		category      string
	)

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Promote proven code patterns into the catalog",
		Long: `Run one promotion cycle: every pattern seen at least three times with
an average quality above 0.5 becomes a user-proven catalog entry.

With --hash, promote that single pattern instead.`,
		Example: `  genloop promote
  genloop promote --hash 9a0c2e4f1b3d5a7c --type hero --category saas`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(appOptions{catalog: requireCatalog})
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if hash == "" {
				n := a.loop.RunPromotionCycle(cmd.Context())
				fmt.Fprintf(out, "Promoted %d pattern(s)\n", n)
				return nil
			}

			p, err := a.loop.Promote(cmd.Context(), hash, componentType, category)
			if errors.Is(err, patterns.ErrNotEligible) {
				return fmt.Errorf("pattern %s is not eligible for promotion", hash)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Promoted %s as %s\n", p.SkeletonHash, patterns.EntryID(p.SkeletonHash))
			return nil
		},
	}

	cmd.Flags().StringVar(&hash, "hash", "", "Skeleton hash of a single pattern to promote")
	cmd.Flags().StringVarP(&componentType, "type", "t", "", "Component type override")
	cmd.Flags().StringVar(&category, "category", "", "Category override")

	return cmd
}

// NewPatternsCmd creates the 'patterns' command listing the pattern ledger.
func NewPatternsCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List recorded code patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.loop.Ledger().List(limit)
			if err != nil {
				return fmt.Errorf("failed to list patterns: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "No patterns recorded yet.")
				return nil
			}

			fmt.Fprintf(out, "Code Patterns (%d):\n\n", len(list))
			for _, p := range list {
				status := ""
				switch {
				case p.Promoted:
					status = " [promoted]"
				case patterns.Eligible(p):
					status = " [eligible]"
				}
				fmt.Fprintf(out, "  %s%s\n", p.SkeletonHash, status)
				fmt.Fprintf(out, "    Type:      %s\n", orDash(p.ComponentType))
				fmt.Fprintf(out, "    Category:  %s\n", orDash(p.Category))
				fmt.Fprintf(out, "    Seen:      %d times, avg score %.2f\n", p.Frequency, p.AvgScore)
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum patterns to show")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}
