package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khanglvm/genloop/internal/inference"
)

// NewEnhanceCmd creates the 'enhance' command.
func NewEnhanceCmd() *cobra.Command {
	var (
		hints      inference.Hints
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "enhance <prompt>",
		Short:   "Rewrite a vague UI request into a specific one",
		Args:    cobra.MinimumNArgs(1),
		Example: `  genloop enhance "make a pricing page" --type pricing --framework react`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			e := a.enhancer.Enhance(cmd.Context(), strings.Join(args, " "), hints)
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), e)
			}
			fmt.Fprintln(cmd.OutOrStdout(), e.Prompt)
			return nil
		},
	}

	cmd.Flags().StringVarP(&hints.ComponentType, "type", "t", "", "Component type")
	cmd.Flags().StringVar(&hints.Style, "style", "", "Style preset")
	cmd.Flags().StringVar(&hints.Framework, "framework", "", "Target framework")
	cmd.Flags().StringVar(&hints.Mood, "mood", "", "Mood")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}
