package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanglvm/genloop/internal/mcp"
)

// NewServeCmd creates the 'serve' command for running the MCP server.
func NewServeCmd() *cobra.Command {
	var noPromotion bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server (stdio transport)",
		Long: `Start the genloop MCP server using stdio transport.

The server exposes the learning loop to AI clients:
  • record_generation     - Record a generation and infer feedback
  • record_feedback       - Rate a previous generation
  • run_promotion         - Promote proven patterns into the catalog
  • semantic_search       - Rank stored embeddings against a query
  • search_catalog        - Keyword or hybrid catalog search
  • feedback_stats        - Feedback breakdown and training readiness
  • export_training_data  - Write adapter datasets as JSONL
  • enhance_prompt        - Rewrite a vague UI request

Promotion cycles also run in the background on the configured interval.`,
		Example: `  # Run directly
  genloop serve

  # Add to Claude Code
  claude mcp add genloop -- genloop serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), noPromotion)
		},
	}

	cmd.Flags().BoolVar(&noPromotion, "no-promotion", false, "Disable background promotion cycles")

	return cmd
}

// runServe starts the MCP server with stdio transport and signal handling.
// Implements graceful shutdown on SIGINT/SIGTERM/SIGQUIT.
func runServe(parent context.Context, noPromotion bool) error {
	if parent == nil {
		parent = context.Background()
	}

	a, err := openApp(appOptions{embed: true, catalog: preferCatalog})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a.cleanup(ctx)

	if !noPromotion {
		scheduler := a.loop.NewScheduler(a.cfg.PromotionInterval())
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	dir, err := a.trainingDir()
	if err != nil {
		return err
	}
	server := mcp.NewServer(mcp.Options{
		Loop:        a.loop,
		Catalog:     a.catalog,
		Enhancer:    a.enhancer,
		TrainingDir: dir,
		Logger:      a.logger,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run(ctx)
	}()

	select {
	case sig := <-sigChan:
		a.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
		return nil

	case err := <-errChan:
		// stdin closed or read error
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}
