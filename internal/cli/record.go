package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/khanglvm/genloop/internal/storage"
)

// NewRecordCmd creates the 'record' command that records one generation event.
func NewRecordCmd() *cobra.Command {
	var (
		gen           storage.Generation
		codeFile      string
		promptContext string
		jsonOutput    bool
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a generation event",
		Long: `Record a UI generation event and learn from it.

The generated code is read from --code-file, or from stdin when the flag
is "-" or omitted. The event is fingerprinted, quality scored and, when a
session id is given, compared with the previous generation of the session.

Sessions live in memory, so implicit feedback between separate record
invocations is only inferred by a long-running 'genloop serve'.`,
		Example: `  genloop record --type hero --framework react --prompt "bold hero" --code-file hero.tsx
  cat pricing.html | genloop record --type pricing --industry saas`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if gen.ComponentType == "" {
				return errors.New("--type is required")
			}
			code, err := readCode(cmd, codeFile)
			if err != nil {
				return err
			}

			a, err := openApp(appOptions{embed: true})
			if err != nil {
				return err
			}
			defer a.Close()

			result := a.loop.RecordGeneration(cmd.Context(), gen, code, promptContext)
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, result)
			}

			fmt.Fprintf(out, "Recorded generation %s\n", result.Generation.ID)
			fmt.Fprintf(out, "  Fingerprint: %s\n", result.Fingerprint.Hash)
			fmt.Fprintf(out, "  Quality:     %.2f (%s)\n", result.Quality.Value, result.Quality.Source)
			if p := result.Pattern; p != nil {
				fmt.Fprintf(out, "  Pattern:     seen %d times, avg score %.2f\n", p.Frequency, p.AvgScore)
			}
			if fb := result.ImplicitFeedback; fb != nil {
				fmt.Fprintf(out, "  Feedback:    %s (%.2f) on %s\n", fb.Rating, fb.Score, fb.GenerationID)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&gen.SessionID, "session", "", "Session id")
	f.StringVarP(&gen.ComponentType, "type", "t", "", "Component type (required)")
	f.StringVar(&gen.Variant, "variant", "", "Variant")
	f.StringVar(&gen.Mood, "mood", "", "Mood")
	f.StringVar(&gen.Industry, "industry", "", "Industry")
	f.StringVar(&gen.Style, "style", "", "Style preset")
	f.StringVar(&gen.Framework, "framework", "", "Target framework")
	f.StringVar(&gen.Tool, "tool", "cli", "Generating tool name")
	f.StringVarP(&gen.Prompt, "prompt", "p", "", "The user's request")
	f.StringVarP(&codeFile, "code-file", "f", "-", `Generated code file, "-" for stdin`)
	f.StringVar(&promptContext, "context", "", "Follow-up message from the user")
	f.BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

// readCode reads the artifact from path, or from the command's stdin for "-".
func readCode(cmd *cobra.Command, path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read code from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read code file: %w", err)
	}
	return string(data), nil
}
