package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khanglvm/genloop/internal/training"
)

// NewExportCmd creates the 'export' command that writes training datasets.
func NewExportCmd() *cobra.Command {
	var (
		adapter  string
		output   string
		compress bool
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export adapter training datasets as JSONL",
		Long: `Project the feedback log into one JSONL dataset per adapter:

  quality-scorer     (prompt, component type, style) with a 0-10 label
  prompt-enhancer    weak prompts paired with the best prompt of the same type
  style-recommender  well received prompts with the style they used

Adapters without enough significant feedback are skipped unless --force.`,
		Example: `  # Export every ready adapter to the configured directory
  genloop export

  # One adapter, zstd compressed, regardless of readiness
  genloop export --adapter quality-scorer --compress --force -o ./datasets`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if output == "" {
				if output, err = a.trainingDir(); err != nil {
					return err
				}
			}
			exporter := a.loop.Exporter()
			if cmd.Flags().Changed("compress") {
				exporter = training.NewExporter(a.store, training.Options{
					MinAbsScore: a.cfg.Training.MinAbsScore,
					Limit:       a.cfg.Training.Limit,
					Compress:    compress,
				}, a.logger)
			}

			adapters := training.Adapters
			if adapter != "" {
				adapters = []string{adapter}
			}

			out := cmd.OutOrStdout()
			for _, name := range adapters {
				ready, err := exporter.HasEnoughData(name)
				if err != nil {
					return err
				}
				if !ready.Ready && !force {
					fmt.Fprintf(out, "  - %-18s skipped (%d/%d examples)\n", name, ready.Count, ready.Required)
					continue
				}
				res, err := exporter.ExportForAdapter(cmd.Context(), name, output)
				if err != nil {
					return fmt.Errorf("export %s: %w", name, err)
				}
				fmt.Fprintf(out, "  ✓ %-18s %d examples → %s\n", res.Adapter, res.Count, res.Path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&adapter, "adapter", "a", "", "Adapter to export (default: all)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory (default: training.output_dir)")
	cmd.Flags().BoolVar(&compress, "compress", false, "Write .jsonl.zst files")
	cmd.Flags().BoolVar(&force, "force", false, "Export even when an adapter lacks enough data")

	return cmd
}
