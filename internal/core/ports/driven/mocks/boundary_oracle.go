package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/athena-core/internal/core/domain"
)

// OracleCall records the arguments of one IsSentenceEnd call.
type OracleCall struct {
	Past    string
	Current string
	Next    string
}

// MockBoundaryOracle is a mock implementation of BoundaryOracle for testing.
// By default it reports a sentence end for every line listed in Ends.
type MockBoundaryOracle struct {
	mu    sync.Mutex
	ends  map[string]bool
	calls []OracleCall

	// IsSentenceEndFn overrides the default behaviour when set
	IsSentenceEndFn func(past, current, next string) (bool, error)
}

// NewMockBoundaryOracle creates an oracle that reports a sentence end after
// each of the given lines and nowhere else.
func NewMockBoundaryOracle(ends ...string) *MockBoundaryOracle {
	m := &MockBoundaryOracle{ends: make(map[string]bool)}
	for _, e := range ends {
		m.ends[e] = true
	}
	return m
}

func (m *MockBoundaryOracle) IsSentenceEnd(ctx context.Context, past, current, next string) (bool, error) {
	m.mu.Lock()
	m.calls = append(m.calls, OracleCall{Past: past, Current: current, Next: next})
	fn := m.IsSentenceEndFn
	end := m.ends[current]
	m.mu.Unlock()

	if fn != nil {
		return fn(past, current, next)
	}
	return end, nil
}

func (m *MockBoundaryOracle) Model() string {
	return "mock-oracle"
}

func (m *MockBoundaryOracle) Close() error {
	return nil
}

// Calls returns the recorded calls in order.
func (m *MockBoundaryOracle) Calls() []OracleCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OracleCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// FailingOracle returns an IsSentenceEndFn that always fails with ErrProvider.
func FailingOracle() func(past, current, next string) (bool, error) {
	return func(past, current, next string) (bool, error) {
		return false, fmt.Errorf("%w: mock oracle unavailable", domain.ErrProvider)
	}
}
