package ai

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/custodia-labs/athena-core/internal/core/domain"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven"
)

var _ driven.EmbeddingProvider = (*GeminiEmbedding)(nil)

// DefaultGeminiEmbeddingModel is used when no model is configured.
const DefaultGeminiEmbeddingModel = "gemini-embedding-exp-03-07"

// GeminiEmbedding implements EmbeddingProvider with the Gemini API.
type GeminiEmbedding struct {
	client *genai.Client
	model  *genai.EmbeddingModel
	name   string
}

// NewGeminiEmbedding creates a Gemini embedding provider. Extra client
// options are appended after the API key.
func NewGeminiEmbedding(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*GeminiEmbedding, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = DefaultGeminiEmbeddingModel
	}

	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiEmbedding{
		client: client,
		model:  client.EmbeddingModel(model),
		name:   model,
	}, nil
}

// Embed generates the embedding of a single text
func (g *GeminiEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := g.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("%w: gemini embed: %v", domain.ErrProvider, err)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: gemini returned no embedding", domain.ErrProvider)
	}
	return res.Embedding.Values, nil
}

func (g *GeminiEmbedding) Model() string {
	return g.name
}

func (g *GeminiEmbedding) HealthCheck(ctx context.Context) error {
	_, err := g.Embed(ctx, "health check")
	return err
}

func (g *GeminiEmbedding) Close() error {
	return g.client.Close()
}
