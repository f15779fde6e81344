package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/athena-core/internal/config"
)

var (
	cfg       config.Config
	logger    *slog.Logger
	logClose  func() error
	logLevel  string
	logToFile string
)

var rootCmd = &cobra.Command{
	Use:   "athena-core",
	Short: "Transcript segmentation and highlight clip backend",
	Long: `athena-core searches YouTube for captioned videos about a target,
segments their transcripts into sentence-aligned chunks, scores each chunk
against the target and renders the relevant chunks into short clips.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if logLevel != "" {
			cfg.LogLevel = config.ParseLogLevel(logLevel)
		}
		if logToFile != "" {
			cfg.LogFile = logToFile
		}

		logger, logClose = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logClose != nil {
			_ = logClose()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&logToFile, "log-file", "", "JSON log file; overrides ATHENA_LOG_FILE")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(highlightCmd)
	rootCmd.AddCommand(segmentCmd)
}
