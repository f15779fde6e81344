package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/athena-core/internal/core/domain"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven"
)

// Provider identifies an AI backend
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
)

// ProviderSettings selects and configures one backend.
type ProviderSettings struct {
	Provider Provider
	Model    string
	BaseURL  string
	APIKey   string
}

// IsConfigured reports whether a provider has been chosen.
// Ollama needs no API key; hosted providers do.
func (s *ProviderSettings) IsConfigured() bool {
	if s == nil || s.Provider == "" {
		return false
	}
	return s.kind() == ProviderOllama || s.APIKey != ""
}

func (s *ProviderSettings) kind() Provider {
	return Provider(strings.ToLower(strings.TrimSpace(string(s.Provider))))
}

// Factory creates AI services based on configuration
type Factory struct{}

// NewFactory creates a new AI service factory
func NewFactory() *Factory {
	return &Factory{}
}

// CreateEmbeddingProvider creates an embedding provider from settings.
// Unconfigured settings yield (nil, nil).
func (f *Factory) CreateEmbeddingProvider(ctx context.Context, settings *ProviderSettings) (driven.EmbeddingProvider, error) {
	if !settings.IsConfigured() {
		return nil, nil
	}

	var (
		p   driven.EmbeddingProvider
		err error
	)
	switch settings.kind() {
	case ProviderGemini:
		p, err = NewGeminiEmbedding(ctx, settings.APIKey, settings.Model)
	case ProviderOpenAI:
		p, err = NewOpenAIEmbedding(settings.APIKey, settings.Model, settings.BaseURL)
	case ProviderOllama:
		p, err = NewOllamaEmbedding(settings.BaseURL, settings.Model)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreateBoundaryOracle creates a boundary oracle from settings.
// Unconfigured settings yield (nil, nil).
func (f *Factory) CreateBoundaryOracle(settings *ProviderSettings) (driven.BoundaryOracle, error) {
	if !settings.IsConfigured() {
		return nil, nil
	}

	var (
		o   driven.BoundaryOracle
		err error
	)
	switch settings.kind() {
	case ProviderOpenAI:
		o, err = NewOpenAIBoundaryOracle(settings.APIKey, settings.Model, settings.BaseURL)
	case ProviderOllama:
		o, err = NewOllamaBoundaryOracle(settings.BaseURL, settings.Model)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}
