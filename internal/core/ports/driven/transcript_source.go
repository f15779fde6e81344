package driven

import (
	"context"

	"github.com/custodia-labs/athena-core/internal/core/domain"
)

// TranscriptSource fetches the timestamped transcript of a video.
type TranscriptSource interface {
	// Fetch returns the snippets of a video in chronological order.
	// Returns domain.ErrNotAvailable when the video has no transcript.
	Fetch(ctx context.Context, videoID string) ([]domain.Snippet, error)
}

// SnippetProcessor transforms fetched snippets before segmentation.
// Processors form a pipeline ordered by Order (lower runs first).
type SnippetProcessor interface {
	Process(snippets []domain.Snippet) []domain.Snippet
	Name() string
	Order() int
}
