package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/athena-core/internal/core/domain"
)

var (
	highlightLimit int
	highlightPages int
	highlightAsync bool
)

var highlightCmd = &cobra.Command{
	Use:   "highlight <target>",
	Short: "Find, segment and render highlight clips about a target",
	Long: `Search for captioned videos about the target, segment their transcripts
and render every segment that scores above the similarity threshold.

The run result is printed as JSON. With --async the run is queued for a
worker and the task is printed instead.

Examples:
  athena-core highlight "rust borrow checker"
  athena-core highlight "binary search" --limit 3 --pages 1
  athena-core highlight "kubernetes operators" --async`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHighlight,
}

func init() {
	highlightCmd.Flags().IntVarP(&highlightLimit, "limit", "n", 0, "distinct videos to process (default VIDEO_LIMIT)")
	highlightCmd.Flags().IntVar(&highlightPages, "pages", domain.DefaultMaxPages, "maximum search pages to walk")
	highlightCmd.Flags().BoolVar(&highlightAsync, "async", false, "queue the run for a worker instead of running it here")
}

func runHighlight(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	req := domain.HighlightRequest{
		Target:   strings.Join(args, " "),
		Limit:    highlightLimit,
		MaxPages: highlightPages,
	}

	if highlightAsync {
		task, err := a.highlights.Submit(ctx, req)
		if err != nil {
			return fmt.Errorf("submit: %w", err)
		}
		return printJSON(task)
	}

	run, err := a.highlights.Run(ctx, req)
	if run != nil {
		if perr := printJSON(run); perr != nil {
			return perr
		}
	}
	if err != nil {
		return fmt.Errorf("highlight: %w", err)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
