package driving

import (
	"context"

	"github.com/custodia-labs/athena-core/internal/core/domain"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven"
)

// HighlightService turns a target query into rendered highlight clips.
type HighlightService interface {
	// Run searches, segments and renders synchronously.
	Run(ctx context.Context, req domain.HighlightRequest) (*domain.HighlightRun, error)

	// Submit records a pending run and enqueues it for a worker.
	Submit(ctx context.Context, req domain.HighlightRequest) (*domain.Task, error)

	// ProcessTask executes a queued highlight task.
	ProcessTask(ctx context.Context, task *domain.Task) error

	// GetRun retrieves a run by ID
	GetRun(ctx context.Context, id string) (*domain.HighlightRun, error)

	// GetTask retrieves a queued task by ID
	GetTask(ctx context.Context, id string) (*domain.Task, error)

	// QueueStats returns task queue statistics
	QueueStats(ctx context.Context) (*driven.QueueStats, error)

	// GetVideo returns the stored metadata of a visited video
	GetVideo(ctx context.Context, videoID string) (*domain.VideoMetadata, error)

	// ListSegments returns the persisted segments of a video, optionally for one target
	ListSegments(ctx context.Context, videoID, target string) ([]*domain.ClosedSegment, error)

	// SegmentVideo segments a single video against a target without rendering.
	SegmentVideo(ctx context.Context, videoID, target string) ([]*domain.ClosedSegment, error)
}
