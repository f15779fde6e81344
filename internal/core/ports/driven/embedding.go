package driven

import (
	"context"
)

// EmbeddingProvider turns text into a fixed-length vector.
// Upstream failures are reported wrapped in domain.ErrProvider.
type EmbeddingProvider interface {
	// Embed returns the embedding of a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// Model returns the model name being used
	Model() string

	// HealthCheck verifies the embedding service is available
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the embedding service
	Close() error
}
