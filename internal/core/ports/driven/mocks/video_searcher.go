package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/athena-core/internal/core/domain"
)

// MockVideoSearcher serves pre-built pages keyed by page token.
// The first page is stored under the empty token.
type MockVideoSearcher struct {
	mu      sync.Mutex
	pages   map[string]*domain.SearchPage
	queries []string

	SearchFn func(query, pageToken string) (*domain.SearchPage, error)
}

// NewMockVideoSearcher creates a new MockVideoSearcher
func NewMockVideoSearcher() *MockVideoSearcher {
	return &MockVideoSearcher{pages: make(map[string]*domain.SearchPage)}
}

func (m *MockVideoSearcher) Search(ctx context.Context, query, pageToken string, maxResults int) (*domain.SearchPage, error) {
	m.mu.Lock()
	m.queries = append(m.queries, pageToken)
	fn := m.SearchFn
	page, ok := m.pages[pageToken]
	m.mu.Unlock()

	if fn != nil {
		return fn(query, pageToken)
	}
	if !ok {
		return &domain.SearchPage{}, nil
	}
	return page, nil
}

// SetPage registers the page served for token.
func (m *MockVideoSearcher) SetPage(token string, page *domain.SearchPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[token] = page
}

// Requests returns the page tokens requested so far.
func (m *MockVideoSearcher) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.queries))
	copy(out, m.queries)
	return out
}

// PageOf builds a search page for the given video IDs.
func PageOf(next string, ids ...string) *domain.SearchPage {
	page := &domain.SearchPage{NextPageToken: next}
	for _, id := range ids {
		page.Results = append(page.Results, domain.SearchResult{VideoID: id, Title: "title " + id})
	}
	return page
}
