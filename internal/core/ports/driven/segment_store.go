package driven

import (
	"context"

	"github.com/custodia-labs/athena-core/internal/core/domain"
)

// SegmentStore persists closed segments and the metadata of visited videos.
type SegmentStore interface {
	// SaveVideo creates or updates video metadata
	SaveVideo(ctx context.Context, video *domain.VideoMetadata) error

	// GetVideo retrieves video metadata by ID
	GetVideo(ctx context.Context, videoID string) (*domain.VideoMetadata, error)

	// ReplaceSegments swaps the stored pass for (videoID, target) with
	// segments. An empty slice clears the pass.
	ReplaceSegments(ctx context.Context, videoID, target string, segments []*domain.ClosedSegment) error

	// ListSegments returns a video's segments ordered by target, then chunk_id.
	// An empty target lists every stored pass.
	ListSegments(ctx context.Context, videoID, target string) ([]*domain.ClosedSegment, error)
}

// RunStore persists highlight runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *domain.HighlightRun) error

	// GetRun returns domain.ErrNotFound when no run has the ID
	GetRun(ctx context.Context, id string) (*domain.HighlightRun, error)
}
