package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/khanglvm/genloop/internal/storage"
	"github.com/khanglvm/genloop/internal/training"
)

// statsReport is the JSON form of the stats command.
type statsReport struct {
	Feedback        storage.FeedbackStats `json:"feedback"`
	ComponentScores map[string]float64    `json:"component_scores"`
	Readiness       []training.Readiness  `json:"readiness"`
}

// NewStatsCmd creates the 'stats' command.
func NewStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show feedback statistics and training readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := buildStatsReport(a)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, report)
			}

			fb := report.Feedback
			fmt.Fprintln(out, "Feedback")
			fmt.Fprintln(out, "========")
			fmt.Fprintf(out, "Total:     %d (explicit %d, implicit %d)\n", fb.Total, fb.Explicit, fb.Implicit)
			fmt.Fprintf(out, "Ratings:   %d positive, %d negative, %d neutral\n", fb.Positive, fb.Negative, fb.Neutral)
			fmt.Fprintf(out, "Avg score: %.3f\n", fb.AvgScore)

			if len(report.ComponentScores) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Component scores")
				fmt.Fprintln(out, "================")
				types := make([]string, 0, len(report.ComponentScores))
				for t := range report.ComponentScores {
					types = append(types, t)
				}
				sort.Strings(types)
				for _, t := range types {
					fmt.Fprintf(out, "  %-16s %.3f\n", t, report.ComponentScores[t])
				}
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Training readiness")
			fmt.Fprintln(out, "==================")
			for _, r := range report.Readiness {
				mark := "✗"
				if r.Ready {
					mark = "✓"
				}
				fmt.Fprintf(out, "  %s %-18s %d/%d\n", mark, r.Adapter, r.Count, r.Required)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

func buildStatsReport(a *app) (statsReport, error) {
	var report statsReport
	var err error

	if report.Feedback, err = a.loop.Feedback().Stats(); err != nil {
		return report, fmt.Errorf("failed to read feedback stats: %w", err)
	}
	if report.ComponentScores, err = a.loop.Feedback().ComponentScores(); err != nil {
		return report, fmt.Errorf("failed to read component scores: %w", err)
	}
	for _, adapter := range training.Adapters {
		r, err := a.loop.Exporter().HasEnoughData(adapter)
		if err != nil {
			return report, fmt.Errorf("failed to check %s readiness: %w", adapter, err)
		}
		report.Readiness = append(report.Readiness, r)
	}
	return report, nil
}
