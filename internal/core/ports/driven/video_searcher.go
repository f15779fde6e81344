package driven

import (
	"context"

	"github.com/custodia-labs/athena-core/internal/core/domain"
)

// VideoSearcher finds captioned videos matching a query.
type VideoSearcher interface {
	// Search returns one page of results. An empty pageToken requests the first page.
	Search(ctx context.Context, query, pageToken string, maxResults int) (*domain.SearchPage, error)
}
