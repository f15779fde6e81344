package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/athena-core/internal/core/domain"
)

// MockTranscriptSource serves transcripts from memory.
// Videos without a registered transcript return domain.ErrNotAvailable.
type MockTranscriptSource struct {
	mu          sync.Mutex
	transcripts map[string][]domain.Snippet
	errs        map[string]error
	fetched     []string
}

// NewMockTranscriptSource creates a new MockTranscriptSource
func NewMockTranscriptSource() *MockTranscriptSource {
	return &MockTranscriptSource{
		transcripts: make(map[string][]domain.Snippet),
		errs:        make(map[string]error),
	}
}

func (m *MockTranscriptSource) Fetch(ctx context.Context, videoID string) ([]domain.Snippet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fetched = append(m.fetched, videoID)
	if err, ok := m.errs[videoID]; ok {
		return nil, err
	}
	t, ok := m.transcripts[videoID]
	if !ok {
		return nil, domain.ErrNotAvailable
	}
	out := make([]domain.Snippet, len(t))
	copy(out, t)
	return out, nil
}

// Set registers the transcript of a video.
func (m *MockTranscriptSource) Set(videoID string, snippets []domain.Snippet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcripts[videoID] = snippets
}

// SetError makes Fetch fail for a video.
func (m *MockTranscriptSource) SetError(videoID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[videoID] = err
}

// Fetched returns the video IDs requested so far.
func (m *MockTranscriptSource) Fetched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.fetched))
	copy(out, m.fetched)
	return out
}
