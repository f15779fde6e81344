package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/custodia-labs/athena-core/internal/core/domain"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven"
)

var _ driven.BoundaryOracle = (*LLMBoundaryOracle)(nil)

// Defaults target Groq's OpenAI-compatible endpoint.
const (
	DefaultOracleModel   = "llama3-70b-8192"
	DefaultOracleBaseURL = "https://api.groq.com/openai/v1"
)

const sentenceSlicerPrompt = `You are a sentence slicer that outputs a boolean value. Output true if the current chunk is the end of a sentence, and false otherwise. Use JSON-compliant boolean values (true/false).
The JSON object must use the schema: {"type": "object", "properties": {"is_sentence_end": {"type": "boolean"}}, "required": ["is_sentence_end"]}`

// sentenceVerdict is the JSON object the model must return.
type sentenceVerdict struct {
	IsSentenceEnd *bool `json:"is_sentence_end"`
}

// LLMBoundaryOracle asks a chat model whether a transcript line ends a sentence.
type LLMBoundaryOracle struct {
	llm   llms.Model
	model string
}

// NewLLMBoundaryOracle wraps an existing langchaingo model.
func NewLLMBoundaryOracle(llm llms.Model, model string) *LLMBoundaryOracle {
	return &LLMBoundaryOracle{llm: llm, model: model}
}

// NewOpenAIBoundaryOracle creates an oracle against an OpenAI-compatible chat API.
func NewOpenAIBoundaryOracle(apiKey, model, baseURL string) (*LLMBoundaryOracle, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("oracle API key is required")
	}
	if model == "" {
		model = DefaultOracleModel
	}
	if baseURL == "" {
		baseURL = DefaultOracleBaseURL
	}

	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(model),
		openai.WithBaseURL(baseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai model: %w", err)
	}
	return NewLLMBoundaryOracle(llm, model), nil
}

// NewOllamaBoundaryOracle creates an oracle backed by an Ollama server.
func NewOllamaBoundaryOracle(baseURL, model string) (*LLMBoundaryOracle, error) {
	if model == "" {
		model = "llama3"
	}

	opts := []ollama.Option{ollama.WithModel(model), ollama.WithFormat("json")}
	if baseURL != "" {
		opts = append(opts, ollama.WithServerURL(baseURL))
	}

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama model: %w", err)
	}
	return NewLLMBoundaryOracle(llm, model), nil
}

// IsSentenceEnd reports whether current ends a sentence.
func (o *LLMBoundaryOracle) IsSentenceEnd(ctx context.Context, past, current, next string) (bool, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, sentenceSlicerPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman,
			fmt.Sprintf("Past chunk: %s\nCurrent chunk: %s\nNext chunk: %s", past, current, next)),
	}

	resp, err := o.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(0),
		llms.WithJSONMode(),
	)
	if err != nil {
		return false, fmt.Errorf("%w: sentence slicer: %v", domain.ErrProvider, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return false, fmt.Errorf("%w: sentence slicer returned no choices", domain.ErrProvider)
	}

	return parseVerdict(resp.Choices[0].Content)
}

// parseVerdict decodes the model output, tolerating a fenced code block.
func parseVerdict(content string) (bool, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var v sentenceVerdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &v); err != nil {
		return false, fmt.Errorf("%w: malformed sentence slicer output %q: %v", domain.ErrProvider, content, err)
	}
	if v.IsSentenceEnd == nil {
		return false, fmt.Errorf("%w: sentence slicer output missing is_sentence_end", domain.ErrProvider)
	}
	return *v.IsSentenceEnd, nil
}

func (o *LLMBoundaryOracle) Model() string {
	return o.model
}

func (o *LLMBoundaryOracle) Close() error {
	return nil
}
