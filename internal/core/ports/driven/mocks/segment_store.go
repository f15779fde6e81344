package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/athena-core/internal/core/domain"
)

// MockSegmentStore is an in-memory SegmentStore and RunStore.
type MockSegmentStore struct {
	mu       sync.RWMutex
	videos   map[string]*domain.VideoMetadata
	segments map[segmentKey][]*domain.ClosedSegment
	runs     map[string]*domain.HighlightRun

	ReplaceSegmentsFn func(segments []*domain.ClosedSegment) error
}

type segmentKey struct {
	videoID string
	target  string
}

// NewMockSegmentStore creates a new MockSegmentStore
func NewMockSegmentStore() *MockSegmentStore {
	return &MockSegmentStore{
		videos:   make(map[string]*domain.VideoMetadata),
		segments: make(map[segmentKey][]*domain.ClosedSegment),
		runs:     make(map[string]*domain.HighlightRun),
	}
}

func (m *MockSegmentStore) SaveVideo(ctx context.Context, video *domain.VideoMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videos[video.VideoID] = video
	return nil
}

func (m *MockSegmentStore) GetVideo(ctx context.Context, videoID string) (*domain.VideoMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.videos[videoID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (m *MockSegmentStore) ReplaceSegments(ctx context.Context, videoID, target string, segments []*domain.ClosedSegment) error {
	if m.ReplaceSegmentsFn != nil {
		if err := m.ReplaceSegmentsFn(segments); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := segmentKey{videoID: videoID, target: target}
	if len(segments) == 0 {
		delete(m.segments, key)
		return nil
	}
	m.segments[key] = append([]*domain.ClosedSegment(nil), segments...)
	return nil
}

func (m *MockSegmentStore) ListSegments(ctx context.Context, videoID, target string) ([]*domain.ClosedSegment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.ClosedSegment
	for key, segs := range m.segments {
		if key.videoID != videoID || (target != "" && key.target != target) {
			continue
		}
		out = append(out, segs...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Target != out[j].Target {
			return out[i].Target < out[j].Target
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out, nil
}

func (m *MockSegmentStore) SaveRun(ctx context.Context, run *domain.HighlightRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *MockSegmentStore) GetRun(ctx context.Context, id string) (*domain.HighlightRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// VideoCount returns the number of stored videos.
func (m *MockSegmentStore) VideoCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.videos)
}
