package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/athena-core/internal/core/ports/driven"
)

// schedulerLockName guards the maintenance cycle across instances
const schedulerLockName = "scheduler"

// Scheduler runs periodic queue maintenance on worker nodes.
// Each cycle purges completed and failed tasks older than the retention.
//
// For multi-worker deployments, configure a DistributedLock so that only one
// instance performs a cycle at a time.
type Scheduler struct {
	taskQueue driven.TaskQueue
	lock      driven.DistributedLock
	logger    *slog.Logger

	// Internal state
	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration

	retention time.Duration

	// Lock configuration
	lockTTL      time.Duration
	lockRequired bool
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	TaskQueue    driven.TaskQueue
	Lock         driven.DistributedLock // Optional: distributed lock for multi-instance coordination
	Logger       *slog.Logger
	PollInterval time.Duration // How often to run maintenance (default: 10m)
	Retention    time.Duration // Age after which finished tasks are purged (default: 24h)
	LockTTL      time.Duration // TTL for the distributed lock (default: 2x poll interval)
	LockRequired bool          // If true, skip the cycle when the lock errors (forced on when Lock is set)
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.PollInterval
	if interval == 0 {
		interval = 10 * time.Minute
	}

	retention := cfg.Retention
	if retention == 0 {
		retention = 24 * time.Hour
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 2 * interval
	}

	lockRequired := cfg.LockRequired || cfg.Lock != nil

	return &Scheduler{
		taskQueue:    cfg.TaskQueue,
		lock:         cfg.Lock,
		logger:       logger,
		interval:     interval,
		retention:    retention,
		lockTTL:      lockTTL,
		lockRequired: lockRequired,
	}
}

// Start begins the scheduler loop.
// It runs until Stop is called or context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("scheduler starting", "poll_interval", s.interval, "retention", s.retention)

	go s.run(ctx)

	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start
	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler context cancelled")
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle performs one maintenance pass under the distributed lock.
func (s *Scheduler) runCycle(ctx context.Context) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, schedulerLockName, s.lockTTL)
		if err != nil {
			s.logger.Warn("failed to acquire scheduler lock", "error", err)
			if s.lockRequired {
				return
			}
		} else if !acquired {
			s.logger.Debug("scheduler lock held by another instance, skipping cycle")
			return
		} else {
			defer func() {
				if err := s.lock.Release(context.WithoutCancel(ctx), schedulerLockName); err != nil {
					s.logger.Warn("failed to release scheduler lock", "error", err)
				}
			}()
		}
	}

	purged, err := s.taskQueue.PurgeTasks(ctx, int(s.retention.Seconds()))
	if err != nil {
		s.logger.Error("failed to purge tasks", "error", err)
		return
	}
	if purged > 0 {
		s.logger.Info("purged finished tasks", "count", purged, "retention", s.retention)
	}
}

// RunNow performs a maintenance cycle immediately.
func (s *Scheduler) RunNow(ctx context.Context) {
	s.runCycle(ctx)
}
