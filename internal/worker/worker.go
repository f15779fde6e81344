package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/athena-core/internal/core/domain"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven"
	"github.com/custodia-labs/athena-core/internal/core/ports/driving"
	"github.com/custodia-labs/athena-core/internal/core/services"
)

// dequeueBackoff is how long a slot waits after the queue returns an error.
const dequeueBackoff = time.Second

// Worker pulls queued highlight runs and executes them through the
// highlight service. Each slot runs one highlight at a time, so Concurrency
// bounds how many searches and renders one process drives in parallel.
type Worker struct {
	queue      driven.TaskQueue
	highlights driving.HighlightService
	scheduler  *services.Scheduler
	logger     *slog.Logger

	slots       int
	pollSeconds int

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	Highlights     driving.HighlightService
	Scheduler      *services.Scheduler // Optional: purges finished tasks
	Logger         *slog.Logger
	Concurrency    int // Highlight runs executed in parallel (default: 1)
	DequeueTimeout int // Seconds a slot blocks on an empty queue (default: 5)
}

// NewWorker creates a new highlight worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	slots := cfg.Concurrency
	if slots <= 0 {
		slots = 1
	}

	poll := cfg.DequeueTimeout
	if poll <= 0 {
		poll = 5
	}

	return &Worker{
		queue:       cfg.TaskQueue,
		highlights:  cfg.Highlights,
		scheduler:   cfg.Scheduler,
		logger:      logger.With("component", "worker"),
		slots:       slots,
		pollSeconds: poll,
	}
}

// Start launches the slots and the optional scheduler and returns at once.
// The worker runs until Stop is called or ctx is cancelled. Starting a
// running worker is a no-op.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("highlight worker starting", "slots", w.slots, "poll_seconds", w.pollSeconds)

	if w.scheduler != nil {
		if err := w.scheduler.Start(ctx); err != nil {
			w.logger.Error("failed to start scheduler", "error", err)
		}
	}

	var g errgroup.Group
	for slot := 0; slot < w.slots; slot++ {
		g.Go(func() error {
			w.runSlot(ctx, slot)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop signals every slot, waits for in-flight runs to return, and stops
// the scheduler.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	if w.scheduler != nil {
		w.scheduler.Stop()
	}
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("highlight worker stopped")
}

// Wait blocks until every slot has returned.
func (w *Worker) Wait() {
	<-w.doneCh
}

func (w *Worker) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-w.stopCh:
		return true
	default:
		return false
	}
}

// runSlot dequeues and executes highlight tasks one after another.
func (w *Worker) runSlot(ctx context.Context, slot int) {
	logger := w.logger.With("slot", slot)
	logger.Debug("slot started")
	defer logger.Debug("slot stopped")

	for !w.stopping(ctx) {
		task, err := w.queue.DequeueWithTimeout(ctx, w.pollSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("dequeue failed", "error", err)
			select {
			case <-time.After(dequeueBackoff):
			case <-w.stopCh:
			case <-ctx.Done():
			}
			continue
		}
		if task == nil {
			continue
		}

		w.execute(ctx, task, logger)
	}
}

// execute runs one task and settles it on the queue. Failed and
// interrupted runs are nacked so the queue can schedule a retry.
func (w *Worker) execute(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "run_id", task.RunID(), "attempt", task.Attempts)
	settleCtx := context.WithoutCancel(ctx)

	if err := validate(task); err != nil {
		logger.Warn("rejecting task", "task_type", task.Type, "error", err)
		w.nack(settleCtx, task, err.Error(), logger)
		return
	}

	target := task.HighlightRequest().Target
	logger.Info("highlight run picked up", "target", target)
	started := time.Now()

	err := w.highlights.ProcessTask(ctx, task)
	elapsed := time.Since(started)

	switch {
	case err == nil:
		logger.Info("highlight run finished", "target", target, "duration", elapsed)
		if ackErr := w.queue.Ack(settleCtx, task.ID); ackErr != nil {
			logger.Error("failed to ack highlight task", "error", ackErr)
		}
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		logger.Warn("highlight run interrupted by shutdown", "target", target, "duration", elapsed)
		w.nack(settleCtx, task, "interrupted: "+err.Error(), logger)
	default:
		logger.Error("highlight run failed", "target", target, "duration", elapsed, "error", err)
		w.nack(settleCtx, task, err.Error(), logger)
	}
}

func (w *Worker) nack(ctx context.Context, task *domain.Task, reason string, logger *slog.Logger) {
	if err := w.queue.Nack(ctx, task.ID, reason); err != nil {
		logger.Error("failed to nack highlight task", "error", err)
	}
}

// validate rejects tasks this worker cannot run.
func validate(task *domain.Task) error {
	if task.Type != domain.TaskTypeHighlight {
		return fmt.Errorf("%w: unsupported task type %q", domain.ErrInvalidInput, task.Type)
	}
	if task.RunID() == "" {
		return fmt.Errorf("%w: highlight task has no run_id", domain.ErrInvalidInput)
	}
	return nil
}

// Status is a point-in-time view of the worker.
type Status struct {
	Running    bool   `json:"running"`
	Slots      int    `json:"slots"`
	QueueOK    bool   `json:"queue_ok"`
	QueueError string `json:"queue_error,omitempty"`
}

// Status reports whether the worker is running and its queue is reachable.
func (w *Worker) Status(ctx context.Context) Status {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	st := Status{Running: running, Slots: w.slots, QueueOK: true}
	if err := w.queue.Ping(ctx); err != nil {
		st.QueueOK = false
		st.QueueError = err.Error()
	}
	return st
}
