package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var segmentJSON bool

var segmentCmd = &cobra.Command{
	Use:   "segment <video-id> <target>",
	Short: "Segment one video's transcript against a target without rendering",
	Long: `Fetch the transcript of a single video, split it into sentence-aligned
segments and score each one against the target. Nothing is downloaded.

Examples:
  athena-core segment dQw4w9WgXcQ "never gonna give you up"
  athena-core segment dQw4w9WgXcQ "dance moves" --json`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSegment,
}

func init() {
	segmentCmd.Flags().BoolVar(&segmentJSON, "json", false, "print segments as JSON")
}

func runSegment(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	videoID := args[0]
	target := strings.Join(args[1:], " ")

	segments, err := a.highlights.SegmentVideo(ctx, videoID, target)
	if err != nil {
		return fmt.Errorf("segment %s: %w", videoID, err)
	}

	if segmentJSON {
		return printJSON(segments)
	}

	if len(segments) == 0 {
		fmt.Println("No segments.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHUNK\tSTART\tEND\tSCORE\tDOWNLOAD\tTEXT")
	for _, s := range segments {
		fmt.Fprintf(tw, "%d\t%.2f\t%.2f\t%.3f\t%t\t%s\n",
			s.ChunkID, s.StartTime, s.EndTime, s.Similarity, s.Download, preview(s.Text, 60))
	}
	return tw.Flush()
}

func preview(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}
