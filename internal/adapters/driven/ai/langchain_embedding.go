package ai

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/custodia-labs/athena-core/internal/core/domain"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven"
)

var _ driven.EmbeddingProvider = (*LangchainEmbedding)(nil)

// LangchainEmbedding adapts a langchaingo embedder to EmbeddingProvider.
type LangchainEmbedding struct {
	embedder embeddings.Embedder
	model    string
}

// NewLangchainEmbedding wraps an existing langchaingo embedder.
func NewLangchainEmbedding(embedder embeddings.Embedder, model string) *LangchainEmbedding {
	return &LangchainEmbedding{embedder: embedder, model: model}
}

// NewOllamaEmbedding creates an embedding provider backed by an Ollama server.
func NewOllamaEmbedding(baseURL, model string) (*LangchainEmbedding, error) {
	if model == "" {
		model = "nomic-embed-text"
	}

	opts := []ollama.Option{ollama.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, ollama.WithServerURL(baseURL))
	}

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create ollama embedder: %w", err)
	}
	return NewLangchainEmbedding(embedder, model), nil
}

// Embed generates the embedding of a single text
func (l *LangchainEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := l.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embed: %v", domain.ErrProvider, err)
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", domain.ErrProvider)
	}
	return v, nil
}

func (l *LangchainEmbedding) Model() string {
	return l.model
}

func (l *LangchainEmbedding) HealthCheck(ctx context.Context) error {
	_, err := l.Embed(ctx, "health check")
	return err
}

func (l *LangchainEmbedding) Close() error {
	return nil
}
