package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/athena-core/internal/core/domain"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven/mocks"
)

// closeTracker wraps an embedding provider to observe Close.
type closeTracker struct {
	*mocks.MockEmbeddingProvider
	healthErr error
	closed    bool
}

func (c *closeTracker) HealthCheck(ctx context.Context) error { return c.healthErr }

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func newTracker() *closeTracker {
	return &closeTracker{MockEmbeddingProvider: mocks.NewMockEmbeddingProvider()}
}

func TestNewServices(t *testing.T) {
	s := NewServices()
	st := s.Status()
	if st.EmbeddingAvailable || st.OracleAvailable {
		t.Errorf("expected nothing available, got %+v", st)
	}
}

func TestServices_UnconfiguredViewsFail(t *testing.T) {
	s := NewServices()

	if _, err := s.Embedder().Embed(context.Background(), "x"); !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}
	if _, err := s.Oracle().IsSentenceEnd(context.Background(), "a", "b", "c"); !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}
	if err := s.Embedder().HealthCheck(context.Background()); !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestServices_ViewsFollowSwaps(t *testing.T) {
	s := NewServices()
	embedder := s.Embedder()
	oracle := s.Oracle()

	first := mocks.NewMockEmbeddingProvider()
	first.SetVector("x", []float32{1, 2})
	s.SetEmbedder(first)
	s.SetOracle(mocks.NewMockBoundaryOracle("b"))

	v, err := embedder.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v) != 2 {
		t.Errorf("expected pinned vector, got %v", v)
	}
	end, err := oracle.IsSentenceEnd(context.Background(), "a", "b", "c")
	if err != nil || !end {
		t.Errorf("expected sentence end, got %v %v", end, err)
	}

	second := mocks.NewMockEmbeddingProvider()
	s.SetEmbedder(second)
	if _, err := embedder.Embed(context.Background(), "y"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second.Calls()) != 1 {
		t.Errorf("expected swapped provider to be called")
	}

	st := s.Status()
	if !st.EmbeddingAvailable || st.EmbeddingModel != "mock-embedding-model" {
		t.Errorf("unexpected status %+v", st)
	}
	if oracle.Model() != "mock-oracle" {
		t.Errorf("expected oracle model mock-oracle, got %q", oracle.Model())
	}
}

func TestServices_SetEmbedderClosesOld(t *testing.T) {
	s := NewServices()
	old := newTracker()
	s.SetEmbedder(old)
	s.SetEmbedder(newTracker())

	if !old.closed {
		t.Error("expected old provider to be closed")
	}
}

func TestServices_ValidateAndSetEmbedder(t *testing.T) {
	s := NewServices()

	bad := newTracker()
	bad.healthErr = errors.New("connection refused")
	if err := s.ValidateAndSetEmbedder(context.Background(), bad); err == nil {
		t.Fatal("expected error")
	}
	if !bad.closed {
		t.Error("expected failing provider to be closed")
	}
	if s.Status().EmbeddingAvailable {
		t.Error("failing provider must not be installed")
	}

	good := newTracker()
	if err := s.ValidateAndSetEmbedder(context.Background(), good); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Status().EmbeddingAvailable {
		t.Error("expected provider installed")
	}

	if err := s.ValidateAndSetEmbedder(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !good.closed || s.Status().EmbeddingAvailable {
		t.Error("expected nil to clear and close the provider")
	}
}

func TestServices_Close(t *testing.T) {
	s := NewServices()
	tracker := newTracker()
	s.SetEmbedder(tracker)
	s.SetOracle(mocks.NewMockBoundaryOracle())

	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tracker.closed {
		t.Error("expected provider closed")
	}
	if st := s.Status(); st.EmbeddingAvailable || st.OracleAvailable {
		t.Errorf("expected nothing available after close, got %+v", st)
	}
}
