package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/athena-core/internal/core/domain"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/athena-core/internal/core/ports/driving"
	"github.com/custodia-labs/athena-core/internal/core/services"
)

// slowQueue waits briefly when empty so worker loops do not spin.
type slowQueue struct {
	*mocks.MockTaskQueue
	dequeueErr error
	pingErr    error
	ackErr     error
}

func newSlowQueue() *slowQueue {
	return &slowQueue{MockTaskQueue: mocks.NewMockTaskQueue()}
}

func (q *slowQueue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	if q.dequeueErr != nil {
		return nil, q.dequeueErr
	}
	task, err := q.MockTaskQueue.DequeueWithTimeout(ctx, timeout)
	if task == nil && err == nil {
		select {
		case <-time.After(10 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return task, err
}

func (q *slowQueue) Ack(ctx context.Context, taskID string) error {
	if q.ackErr != nil {
		return q.ackErr
	}
	return q.MockTaskQueue.Ack(ctx, taskID)
}

func (q *slowQueue) Ping(ctx context.Context) error {
	return q.pingErr
}

// mockHighlights implements driving.HighlightService for testing
type mockHighlights struct {
	mu        sync.Mutex
	processed []string
	processFn func(task *domain.Task) error
}

var _ driving.HighlightService = (*mockHighlights)(nil)

func (m *mockHighlights) Run(ctx context.Context, req domain.HighlightRequest) (*domain.HighlightRun, error) {
	return nil, nil
}

func (m *mockHighlights) Submit(ctx context.Context, req domain.HighlightRequest) (*domain.Task, error) {
	return nil, nil
}

func (m *mockHighlights) ProcessTask(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	m.processed = append(m.processed, task.ID)
	fn := m.processFn
	m.mu.Unlock()
	if fn != nil {
		return fn(task)
	}
	return nil
}

func (m *mockHighlights) GetRun(ctx context.Context, id string) (*domain.HighlightRun, error) {
	return nil, domain.ErrNotFound
}

func (m *mockHighlights) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return nil, domain.ErrNotFound
}

func (m *mockHighlights) QueueStats(ctx context.Context) (*driven.QueueStats, error) {
	return &driven.QueueStats{}, nil
}

func (m *mockHighlights) GetVideo(ctx context.Context, videoID string) (*domain.VideoMetadata, error) {
	return nil, domain.ErrNotFound
}

func (m *mockHighlights) ListSegments(ctx context.Context, videoID, target string) ([]*domain.ClosedSegment, error) {
	return nil, nil
}

func (m *mockHighlights) SegmentVideo(ctx context.Context, videoID, target string) ([]*domain.ClosedSegment, error) {
	return nil, nil
}

func (m *mockHighlights) processedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.processed))
	copy(out, m.processed)
	return out
}

func highlightTask() *domain.Task {
	return domain.NewHighlightTask("run-1", domain.HighlightRequest{Target: "graphs", Limit: 2, MaxPages: 1})
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNewWorker_Defaults(t *testing.T) {
	w := NewWorker(WorkerConfig{TaskQueue: newSlowQueue()})

	if w.slots != 1 {
		t.Errorf("expected default of 1 slot, got %d", w.slots)
	}
	if w.pollSeconds != 5 {
		t.Errorf("expected default poll of 5s, got %d", w.pollSeconds)
	}
	if w.logger == nil {
		t.Error("expected default logger")
	}
}

func TestWorker_StartStop(t *testing.T) {
	w := NewWorker(WorkerConfig{
		TaskQueue:      newSlowQueue(),
		Highlights:     &mockHighlights{},
		Concurrency:    2,
		DequeueTimeout: 1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	if st := w.Status(ctx); !st.Running || st.Slots != 2 {
		t.Error("expected worker to be running")
	}
	if err := w.Start(ctx); err != nil {
		t.Errorf("second start should not error: %v", err)
	}

	w.Stop()
	if w.Status(ctx).Running {
		t.Error("expected worker to be stopped")
	}
	w.Stop()
}

func TestWorker_ProcessesHighlightTasks(t *testing.T) {
	queue := newSlowQueue()
	highlights := &mockHighlights{}
	first, second := highlightTask(), highlightTask()
	_ = queue.Enqueue(context.Background(), first)
	_ = queue.Enqueue(context.Background(), second)

	w := NewWorker(WorkerConfig{TaskQueue: queue, Highlights: highlights, Concurrency: 2})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}

	waitFor(t, func() bool { return len(highlights.processedIDs()) == 2 })
	w.Stop()

	for _, task := range []*domain.Task{first, second} {
		if status := queue.StatusOf(task.ID); status != domain.TaskStatusCompleted {
			t.Errorf("task %s: expected completed, got %s", task.ID, status)
		}
	}
}

func TestWorker_FailedTaskIsNacked(t *testing.T) {
	queue := newSlowQueue()
	highlights := &mockHighlights{processFn: func(*domain.Task) error {
		return errors.New("search quota exceeded")
	}}
	task := highlightTask()
	_ = queue.Enqueue(context.Background(), task)

	w := NewWorker(WorkerConfig{TaskQueue: queue, Highlights: highlights})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = w.Start(ctx)

	waitFor(t, func() bool { return queue.StatusOf(task.ID) == domain.TaskStatusFailed })
	w.Stop()

	got, _ := queue.GetTask(context.Background(), task.ID)
	if got.Error != "search quota exceeded" {
		t.Errorf("expected nack reason recorded, got %q", got.Error)
	}
}

func TestWorker_UnknownTypeIsNacked(t *testing.T) {
	queue := newSlowQueue()
	highlights := &mockHighlights{}
	task := domain.NewTask("reindex", nil)
	_ = queue.Enqueue(context.Background(), task)

	w := NewWorker(WorkerConfig{TaskQueue: queue, Highlights: highlights})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = w.Start(ctx)

	waitFor(t, func() bool { return queue.StatusOf(task.ID) == domain.TaskStatusFailed })
	w.Stop()

	if n := len(highlights.processedIDs()); n != 0 {
		t.Errorf("expected no highlight processing, got %d", n)
	}
	got, _ := queue.GetTask(context.Background(), task.ID)
	if !strings.Contains(got.Error, "unsupported task type") {
		t.Errorf("expected rejection reason, got %q", got.Error)
	}
}

func TestWorker_MissingRunIDIsNacked(t *testing.T) {
	queue := newSlowQueue()
	highlights := &mockHighlights{}
	task := domain.NewTask(domain.TaskTypeHighlight, map[string]string{"target": "graphs"})
	_ = queue.Enqueue(context.Background(), task)

	w := NewWorker(WorkerConfig{TaskQueue: queue, Highlights: highlights})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = w.Start(ctx)

	waitFor(t, func() bool { return queue.StatusOf(task.ID) == domain.TaskStatusFailed })
	w.Stop()

	if n := len(highlights.processedIDs()); n != 0 {
		t.Errorf("expected task rejected before processing, got %d", n)
	}
}

func TestWorker_AckErrorDoesNotStopLoop(t *testing.T) {
	queue := newSlowQueue()
	queue.ackErr = errors.New("ack failed")
	highlights := &mockHighlights{}
	_ = queue.Enqueue(context.Background(), highlightTask())
	_ = queue.Enqueue(context.Background(), highlightTask())

	w := NewWorker(WorkerConfig{TaskQueue: queue, Highlights: highlights})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = w.Start(ctx)

	waitFor(t, func() bool { return len(highlights.processedIDs()) == 2 })
	w.Stop()
}

func TestWorker_Status_QueueError(t *testing.T) {
	queue := newSlowQueue()
	queue.pingErr = errors.New("connection refused")
	w := NewWorker(WorkerConfig{TaskQueue: queue})

	st := w.Status(context.Background())
	if st.QueueOK {
		t.Error("expected queue unreachable")
	}
	if st.QueueError != "connection refused" {
		t.Errorf("unexpected error %q", st.QueueError)
	}
}

func TestWorker_ShutdownInterruptsRunAndNacks(t *testing.T) {
	queue := newSlowQueue()
	started := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	highlights := &mockHighlights{processFn: func(*domain.Task) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}}
	task := highlightTask()
	_ = queue.Enqueue(context.Background(), task)

	w := NewWorker(WorkerConfig{TaskQueue: queue, Highlights: highlights})
	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("highlight run never started")
	}
	cancel()
	w.Wait()

	if status := queue.StatusOf(task.ID); status != domain.TaskStatusFailed {
		t.Fatalf("expected interrupted task to be nacked, got %s", status)
	}
	got, _ := queue.GetTask(context.Background(), task.ID)
	if !strings.HasPrefix(got.Error, "interrupted:") {
		t.Errorf("expected interruption reason, got %q", got.Error)
	}
}

func TestWorker_ContextCancellation(t *testing.T) {
	w := NewWorker(WorkerConfig{TaskQueue: newSlowQueue(), Highlights: &mockHighlights{}})

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}

func TestWorker_StartsScheduler(t *testing.T) {
	queue := newSlowQueue()
	scheduler := services.NewScheduler(services.SchedulerConfig{TaskQueue: queue, PollInterval: time.Hour})
	w := NewWorker(WorkerConfig{TaskQueue: queue, Highlights: &mockHighlights{}, Scheduler: scheduler})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = w.Start(ctx)

	waitFor(t, func() bool { return len(queue.Purges()) == 1 })
	w.Stop()
}
