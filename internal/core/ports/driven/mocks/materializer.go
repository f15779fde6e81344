package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/athena-core/internal/core/domain"
)

// RenderCall records one Render invocation.
type RenderCall struct {
	VideoID   string
	Start     float64
	End       float64
	Subtitles []domain.SubtitleEntry
}

// MockChunkMaterializer is a mock implementation of ChunkMaterializer for testing.
type MockChunkMaterializer struct {
	mu    sync.Mutex
	calls []RenderCall

	// RenderFn overrides the default behaviour when set
	RenderFn func(videoID string, start, end float64) (string, error)

	// Delay simulates a slow render
	Delay time.Duration
}

// NewMockChunkMaterializer creates a new MockChunkMaterializer
func NewMockChunkMaterializer() *MockChunkMaterializer {
	return &MockChunkMaterializer{}
}

func (m *MockChunkMaterializer) Render(ctx context.Context, videoID string, start, end float64, subtitles []domain.SubtitleEntry) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, RenderCall{VideoID: videoID, Start: start, End: end, Subtitles: subtitles})
	fn := m.RenderFn
	delay := m.Delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", domain.ErrRender, ctx.Err())
		}
	}
	if fn != nil {
		return fn(videoID, start, end)
	}
	return fmt.Sprintf("chunks/final_%s_%.0f_%.0f.mp4", videoID, start, end), nil
}

// Calls returns the recorded renders in call order.
func (m *MockChunkMaterializer) Calls() []RenderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RenderCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// MockArtifactStore records uploads in memory.
type MockArtifactStore struct {
	mu       sync.Mutex
	uploads  map[string]string
	UploadFn func(localPath, objectName string) error
}

// NewMockArtifactStore creates a new MockArtifactStore
func NewMockArtifactStore() *MockArtifactStore {
	return &MockArtifactStore{uploads: make(map[string]string)}
}

func (m *MockArtifactStore) Upload(ctx context.Context, localPath, objectName string) error {
	if m.UploadFn != nil {
		if err := m.UploadFn(localPath, objectName); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads[objectName] = localPath
	return nil
}

func (m *MockArtifactStore) SignedURL(ctx context.Context, objectName string, ttl time.Duration) (string, error) {
	return "https://storage.example.test/" + objectName, nil
}

// Uploads returns objectName -> localPath for every upload.
func (m *MockArtifactStore) Uploads() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.uploads))
	for k, v := range m.uploads {
		out[k] = v
	}
	return out
}
