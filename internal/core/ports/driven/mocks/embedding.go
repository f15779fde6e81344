package mocks

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/custodia-labs/athena-core/internal/core/domain"
)

// MockEmbeddingProvider is a deterministic EmbeddingProvider for testing.
// Texts registered with SetVector get that exact vector; every other text gets
// a pseudo-random vector derived from its hash.
type MockEmbeddingProvider struct {
	mu         sync.Mutex
	dimensions int
	model      string
	vectors    map[string][]float32
	calls      []string

	// FailFn, when set, is consulted before every call. Returning true
	// makes the call fail with domain.ErrProvider.
	FailFn func(text string) bool
}

// NewMockEmbeddingProvider creates a new MockEmbeddingProvider
func NewMockEmbeddingProvider() *MockEmbeddingProvider {
	return &MockEmbeddingProvider{
		dimensions: 8,
		model:      "mock-embedding-model",
		vectors:    make(map[string][]float32),
	}
}

func (m *MockEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, text)
	if m.FailFn != nil && m.FailFn(text) {
		return nil, fmt.Errorf("%w: mock embedding failure for %q", domain.ErrProvider, text)
	}
	if v, ok := m.vectors[text]; ok {
		out := make([]float32, len(v))
		copy(out, v)
		return out, nil
	}
	return m.generateEmbedding(text), nil
}

func (m *MockEmbeddingProvider) Model() string {
	return m.model
}

func (m *MockEmbeddingProvider) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MockEmbeddingProvider) Close() error {
	return nil
}

// generateEmbedding generates a deterministic embedding based on text hash
func (m *MockEmbeddingProvider) generateEmbedding(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	embedding := make([]float32, m.dimensions)
	for i := range embedding {
		seed = seed*1103515245 + 12345
		embedding[i] = float32(seed%1000)/1000.0 + 0.001
	}
	return embedding
}

// Helper methods for testing

// SetVector pins the embedding returned for text.
func (m *MockEmbeddingProvider) SetVector(text string, v []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[text] = v
}

// SetDimensions changes the size of generated vectors.
func (m *MockEmbeddingProvider) SetDimensions(dim int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimensions = dim
}

// Calls returns the texts embedded so far, in call order.
func (m *MockEmbeddingProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}
