package postprocessors

import (
	"context"
	"html"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/athena-core/internal/core/domain"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven"
)

// Pipeline chains snippet processors in Order.
type Pipeline struct {
	mu         sync.RWMutex
	processors []driven.SnippetProcessor
	sorted     bool
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		processors: make([]driven.SnippetProcessor, 0),
	}
}

// Add adds a processor to the pipeline.
// Processors are sorted by Order() before processing.
func (p *Pipeline) Add(processor driven.SnippetProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processors = append(p.processors, processor)
	p.sorted = false
}

// Process applies all processors in order. The input slice is not modified.
func (p *Pipeline) Process(snippets []domain.Snippet) []domain.Snippet {
	p.mu.Lock()
	if !p.sorted {
		sort.SliceStable(p.processors, func(i, j int) bool {
			return p.processors[i].Order() < p.processors[j].Order()
		})
		p.sorted = true
	}
	processors := make([]driven.SnippetProcessor, len(p.processors))
	copy(processors, p.processors)
	p.mu.Unlock()

	out := make([]domain.Snippet, len(snippets))
	copy(out, snippets)
	for _, proc := range processors {
		out = proc.Process(out)
	}
	return out
}

// List returns processor names in order of addition, or in run order once
// the pipeline has processed.
func (p *Pipeline) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}

// DefaultPipeline creates a pipeline with the default cleaners.
func DefaultPipeline() *Pipeline {
	p := NewPipeline()
	p.Add(NewEntityDecoder())
	p.Add(NewCueStripper())
	p.Add(NewCommaStripper())
	p.Add(NewWhitespaceNormalizer())
	p.Add(NewRepeatCollapser())
	return p
}

// EntityDecoder unescapes HTML entities left in caption text.
type EntityDecoder struct{}

var _ driven.SnippetProcessor = (*EntityDecoder)(nil)

// NewEntityDecoder creates a new entity decoder.
func NewEntityDecoder() *EntityDecoder {
	return &EntityDecoder{}
}

func (d *EntityDecoder) Process(snippets []domain.Snippet) []domain.Snippet {
	for i := range snippets {
		snippets[i].Text = html.UnescapeString(snippets[i].Text)
	}
	return snippets
}

func (d *EntityDecoder) Name() string { return "entity-decoder" }

// Order returns 0 - entities must be decoded before any text matching.
func (d *EntityDecoder) Order() int { return 0 }

// cuePattern matches bracketed non-speech cues such as [Music] or [Applause].
var cuePattern = regexp.MustCompile(`\[[^\]]*\]`)

// CueStripper removes bracketed non-speech cues.
type CueStripper struct{}

var _ driven.SnippetProcessor = (*CueStripper)(nil)

// NewCueStripper creates a new cue stripper.
func NewCueStripper() *CueStripper {
	return &CueStripper{}
}

func (c *CueStripper) Process(snippets []domain.Snippet) []domain.Snippet {
	for i := range snippets {
		snippets[i].Text = cuePattern.ReplaceAllString(snippets[i].Text, " ")
	}
	return snippets
}

func (c *CueStripper) Name() string { return "cue-stripper" }

func (c *CueStripper) Order() int { return 1 }

// CommaStripper removes commas, which the boundary oracle reads as pauses.
type CommaStripper struct{}

var _ driven.SnippetProcessor = (*CommaStripper)(nil)

// NewCommaStripper creates a new comma stripper.
func NewCommaStripper() *CommaStripper {
	return &CommaStripper{}
}

func (c *CommaStripper) Process(snippets []domain.Snippet) []domain.Snippet {
	for i := range snippets {
		snippets[i].Text = strings.ReplaceAll(snippets[i].Text, ",", "")
	}
	return snippets
}

func (c *CommaStripper) Name() string { return "comma-stripper" }

func (c *CommaStripper) Order() int { return 5 }

// WhitespaceNormalizer collapses runs of whitespace, including newlines, to a
// single space and drops snippets left empty.
type WhitespaceNormalizer struct{}

var _ driven.SnippetProcessor = (*WhitespaceNormalizer)(nil)

// NewWhitespaceNormalizer creates a new whitespace normalizer.
func NewWhitespaceNormalizer() *WhitespaceNormalizer {
	return &WhitespaceNormalizer{}
}

func (w *WhitespaceNormalizer) Process(snippets []domain.Snippet) []domain.Snippet {
	result := make([]domain.Snippet, 0, len(snippets))
	for _, s := range snippets {
		s.Text = strings.Join(strings.Fields(s.Text), " ")
		if s.Text != "" {
			result = append(result, s)
		}
	}
	return result
}

func (w *WhitespaceNormalizer) Name() string { return "whitespace-normalizer" }

// Order returns 10 - runs after every text rewrite.
func (w *WhitespaceNormalizer) Order() int { return 10 }

// RepeatCollapser merges consecutive snippets with identical text into the
// first one, extending its duration to cover the repeats.
type RepeatCollapser struct{}

var _ driven.SnippetProcessor = (*RepeatCollapser)(nil)

// NewRepeatCollapser creates a new repeat collapser.
func NewRepeatCollapser() *RepeatCollapser {
	return &RepeatCollapser{}
}

func (r *RepeatCollapser) Process(snippets []domain.Snippet) []domain.Snippet {
	if len(snippets) <= 1 {
		return snippets
	}

	result := make([]domain.Snippet, 0, len(snippets))
	for _, s := range snippets {
		if n := len(result); n > 0 && strings.EqualFold(result[n-1].Text, s.Text) {
			if end := s.End(); end > result[n-1].End() {
				result[n-1].Duration = end - result[n-1].Start
			}
			continue
		}
		result = append(result, s)
	}
	return result
}

func (r *RepeatCollapser) Name() string { return "repeat-collapser" }

func (r *RepeatCollapser) Order() int { return 20 }

// Source decorates a TranscriptSource with a cleaning pipeline.
type Source struct {
	next     driven.TranscriptSource
	pipeline *Pipeline
}

var _ driven.TranscriptSource = (*Source)(nil)

// NewSource wraps next so fetched transcripts pass through pipeline.
func NewSource(next driven.TranscriptSource, pipeline *Pipeline) *Source {
	if pipeline == nil {
		pipeline = DefaultPipeline()
	}
	return &Source{next: next, pipeline: pipeline}
}

// Fetch returns the cleaned transcript. A transcript with nothing left after
// cleaning is reported as domain.ErrNotAvailable.
func (s *Source) Fetch(ctx context.Context, videoID string) ([]domain.Snippet, error) {
	snippets, err := s.next.Fetch(ctx, videoID)
	if err != nil {
		return nil, err
	}

	cleaned := s.pipeline.Process(snippets)
	if len(cleaned) == 0 {
		return nil, domain.ErrNotAvailable
	}
	return cleaned, nil
}
