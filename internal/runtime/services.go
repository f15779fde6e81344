package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/athena-core/internal/core/domain"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven"
)

// Services holds the AI backends used by segmentation.
// Backends can be swapped at runtime; callers holding Embedder() or Oracle()
// always reach the current one. Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	// Dynamic services (can be nil, updated at runtime)
	embedder driven.EmbeddingProvider
	oracle   driven.BoundaryOracle
}

// Status reports which backends are configured.
type Status struct {
	EmbeddingAvailable bool   `json:"embedding_available"`
	EmbeddingModel     string `json:"embedding_model,omitempty"`
	OracleAvailable    bool   `json:"oracle_available"`
	OracleModel        string `json:"oracle_model,omitempty"`
}

// NewServices creates an empty Services registry
func NewServices() *Services {
	return &Services{}
}

// Status returns the current capability flags
func (s *Services) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Status
	if s.embedder != nil {
		st.EmbeddingAvailable = true
		st.EmbeddingModel = s.embedder.Model()
	}
	if s.oracle != nil {
		st.OracleAvailable = true
		st.OracleModel = s.oracle.Model()
	}
	return st
}

// SetEmbedder updates the embedding provider, closing the old one.
func (s *Services) SetEmbedder(p driven.EmbeddingProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embedder != nil {
		_ = s.embedder.Close()
	}
	s.embedder = p
}

// SetOracle updates the boundary oracle, closing the old one.
func (s *Services) SetOracle(o driven.BoundaryOracle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.oracle != nil {
		_ = s.oracle.Close()
	}
	s.oracle = o
}

// ValidateAndSetEmbedder checks connectivity before installing p.
func (s *Services) ValidateAndSetEmbedder(ctx context.Context, p driven.EmbeddingProvider) error {
	if p == nil {
		s.SetEmbedder(nil)
		return nil
	}

	if err := p.HealthCheck(ctx); err != nil {
		_ = p.Close()
		return err
	}

	s.SetEmbedder(p)
	return nil
}

// Close shuts down all services
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embedder != nil {
		_ = s.embedder.Close()
		s.embedder = nil
	}
	if s.oracle != nil {
		_ = s.oracle.Close()
		s.oracle = nil
	}
	return nil
}

// Embedder returns a provider that delegates to the current backend.
func (s *Services) Embedder() driven.EmbeddingProvider {
	return embedderView{s}
}

// Oracle returns an oracle that delegates to the current backend.
func (s *Services) Oracle() driven.BoundaryOracle {
	return oracleView{s}
}

func (s *Services) currentEmbedder() (driven.EmbeddingProvider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", domain.ErrServiceUnavailable)
	}
	return s.embedder, nil
}

func (s *Services) currentOracle() (driven.BoundaryOracle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.oracle == nil {
		return nil, fmt.Errorf("%w: no boundary oracle configured", domain.ErrServiceUnavailable)
	}
	return s.oracle, nil
}

type embedderView struct{ s *Services }

func (v embedderView) Embed(ctx context.Context, text string) ([]float32, error) {
	p, err := v.s.currentEmbedder()
	if err != nil {
		return nil, err
	}
	return p.Embed(ctx, text)
}

func (v embedderView) Model() string {
	return v.s.Status().EmbeddingModel
}

func (v embedderView) HealthCheck(ctx context.Context) error {
	p, err := v.s.currentEmbedder()
	if err != nil {
		return err
	}
	return p.HealthCheck(ctx)
}

// Close is a no-op; the registry owns the backend.
func (v embedderView) Close() error { return nil }

type oracleView struct{ s *Services }

func (v oracleView) IsSentenceEnd(ctx context.Context, past, current, next string) (bool, error) {
	o, err := v.s.currentOracle()
	if err != nil {
		return false, err
	}
	return o.IsSentenceEnd(ctx, past, current, next)
}

func (v oracleView) Model() string {
	return v.s.Status().OracleModel
}

// Close is a no-op; the registry owns the backend.
func (v oracleView) Close() error { return nil }
