package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpapi "github.com/custodia-labs/athena-core/internal/adapters/driving/http"
	"github.com/custodia-labs/athena-core/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve [api|worker|all]",
	Short: "Run the HTTP API, the task worker, or both",
	Long: `Run athena-core as a long-lived process.

  api     HTTP server only
  worker  task worker and queue maintenance only
  all     both in one process (default, or RUN_MODE)`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"api", "worker", "all"},
	RunE:      runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		cfg.RunMode = args[0]
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Printf("athena-core %s starting in %s mode", version, cfg.RunMode)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutdown signal received, stopping...")
		cancel()
	}()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	switch cfg.RunMode {
	case "api":
		return runAPI(a)

	case "worker":
		return runWorkerMode(ctx, a)

	case "all":
		errCh := make(chan error, 1)
		go func() { errCh <- runWorkerMode(ctx, a) }()

		// API blocks until a shutdown signal
		apiErr := runAPI(a)
		cancel()
		if err := <-errCh; err != nil && apiErr == nil {
			return err
		}
		return apiErr

	default:
		return fmt.Errorf("unknown mode: %s (use: api, worker, or all)", cfg.RunMode)
	}
}

func runAPI(a *app) error {
	serverCfg := httpapi.DefaultConfig()
	serverCfg.Port = cfg.Port
	serverCfg.Version = version
	serverCfg.Logger = logger

	server := httpapi.NewServer(
		serverCfg,
		a.highlights,
		a.aiServices,
		a.taskQueue,
		a.db,
		a.redisHealth(),
	)

	log.Printf("API server starting on :%d", cfg.Port)
	return server.Start()
}

// runWorkerMode processes queued highlight tasks and runs queue maintenance
// until ctx is cancelled.
func runWorkerMode(ctx context.Context, a *app) error {
	log.Println("Starting worker mode...")

	w := worker.NewWorker(worker.WorkerConfig{
		TaskQueue:      a.taskQueue,
		Highlights:     a.highlights,
		Scheduler:      a.scheduler,
		Logger:         logger,
		Concurrency:    cfg.WorkerConcurrency,
		DequeueTimeout: cfg.WorkerDequeueTimeout,
	})

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	log.Println("Worker started, processing highlight tasks...")

	<-ctx.Done()

	log.Println("Stopping worker...")
	w.Stop()
	log.Println("Worker stopped")
	return nil
}
