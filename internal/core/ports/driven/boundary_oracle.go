package driven

import (
	"context"
)

// BoundaryOracle judges whether a transcript line ends a sentence.
// It sees the previous and next lines for context.
type BoundaryOracle interface {
	// IsSentenceEnd reports whether current ends a sentence.
	// Upstream failures are reported wrapped in domain.ErrProvider.
	IsSentenceEnd(ctx context.Context, past, current, next string) (bool, error)

	// Model returns the model name being used
	Model() string

	// Close releases resources held by the oracle
	Close() error
}
