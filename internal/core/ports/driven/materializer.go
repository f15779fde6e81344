package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/athena-core/internal/core/domain"
)

// ChunkMaterializer renders a time range of a video into a playable clip.
type ChunkMaterializer interface {
	// Render produces the clip for [start, end) with the given subtitles and
	// returns the artifact path. Failures are wrapped in domain.ErrRender.
	Render(ctx context.Context, videoID string, start, end float64, subtitles []domain.SubtitleEntry) (string, error)
}

// ArtifactStore publishes rendered clips.
type ArtifactStore interface {
	// Upload copies a local file to objectName.
	Upload(ctx context.Context, localPath, objectName string) error

	// SignedURL returns a time-limited download URL for objectName.
	SignedURL(ctx context.Context, objectName string, ttl time.Duration) (string, error)
}
