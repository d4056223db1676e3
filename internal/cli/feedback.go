package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khanglvm/genloop/internal/learning"
)

// NewFeedbackCmd creates the 'feedback' command for explicit ratings.
func NewFeedbackCmd() *cobra.Command {
	var comment string

	cmd := &cobra.Command{
		Use:   "feedback <generation-id> <positive|negative>",
		Short: "Rate a previous generation",
		Args:  cobra.ExactArgs(2),
		Example: `  genloop feedback 3f1c... positive
  genloop feedback 3f1c... negative --comment "too busy"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := learning.ParseRating(args[1])
			if err != nil {
				return err
			}

			a, err := openApp(appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			fb, err := a.loop.RecordExplicitFeedback(args[0], rating, comment)
			if err != nil {
				return fmt.Errorf("failed to record feedback: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s feedback (%.1f) for %s\n", fb.Rating, fb.Score, fb.GenerationID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&comment, "comment", "m", "", "Optional comment")

	return cmd
}
