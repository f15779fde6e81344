package postprocessors

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/custodia-labs/athena-core/internal/core/domain"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven/mocks"
)

func snippets(texts ...string) []domain.Snippet {
	out := make([]domain.Snippet, len(texts))
	for i, text := range texts {
		out[i] = domain.Snippet{Text: text, Start: float64(i * 2), Duration: 2}
	}
	return out
}

func texts(s []domain.Snippet) []string {
	out := make([]string, len(s))
	for i := range s {
		out[i] = s[i].Text
	}
	return out
}

func TestNewPipeline(t *testing.T) {
	p := NewPipeline()
	if p == nil {
		t.Fatal("expected non-nil pipeline")
	}
	if len(p.processors) != 0 {
		t.Errorf("expected empty processors, got %d", len(p.processors))
	}
}

func TestPipeline_SortsByOrder(t *testing.T) {
	p := NewPipeline()
	p.Add(NewRepeatCollapser())
	p.Add(NewWhitespaceNormalizer())
	p.Add(NewEntityDecoder())

	p.Process(nil)

	want := []string{"entity-decoder", "whitespace-normalizer", "repeat-collapser"}
	if got := p.List(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestPipeline_DoesNotModifyInput(t *testing.T) {
	input := snippets("hello, world")
	DefaultPipeline().Process(input)

	if input[0].Text != "hello, world" {
		t.Errorf("input modified: %q", input[0].Text)
	}
}

func TestDefaultPipeline(t *testing.T) {
	input := []domain.Snippet{
		{Text: "[Music]", Start: 0, Duration: 3},
		{Text: "so,  today we&#39;ll look", Start: 3, Duration: 2},
		{Text: "at  \n graphs [Applause]", Start: 5, Duration: 2},
		{Text: "at graphs", Start: 7, Duration: 2},
		{Text: "  ", Start: 9, Duration: 1},
		{Text: "fish &amp; chips", Start: 10, Duration: 2},
	}

	got := DefaultPipeline().Process(input)

	want := []domain.Snippet{
		{Text: "so today we'll look", Start: 3, Duration: 2},
		{Text: "at graphs", Start: 5, Duration: 4},
		{Text: "fish & chips", Start: 10, Duration: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestCueStripper(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"[Music]", " "},
		{"hello [Laughter] there", "hello   there"},
		{"no cues", "no cues"},
		{"unclosed [bracket", "unclosed [bracket"},
	}

	c := NewCueStripper()
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := c.Process(snippets(tt.input))
			if got[0].Text != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got[0].Text)
			}
		})
	}
}

func TestCommaStripper(t *testing.T) {
	got := NewCommaStripper().Process(snippets("a, b,c", "none"))
	want := []string{"a bc", "none"}
	if !reflect.DeepEqual(texts(got), want) {
		t.Errorf("expected %v, got %v", want, texts(got))
	}
}

func TestWhitespaceNormalizer_DropsEmpty(t *testing.T) {
	got := NewWhitespaceNormalizer().Process(snippets(" hello ", "\n\t", "a\r\nb", ""))
	want := []string{"hello", "a b"}
	if !reflect.DeepEqual(texts(got), want) {
		t.Errorf("expected %v, got %v", want, texts(got))
	}
}

func TestRepeatCollapser(t *testing.T) {
	input := []domain.Snippet{
		{Text: "one", Start: 0, Duration: 2},
		{Text: "One", Start: 2, Duration: 2},
		{Text: "two", Start: 4, Duration: 2},
		{Text: "one", Start: 6, Duration: 2},
	}

	got := NewRepeatCollapser().Process(input)

	want := []domain.Snippet{
		{Text: "one", Start: 0, Duration: 4},
		{Text: "two", Start: 4, Duration: 2},
		{Text: "one", Start: 6, Duration: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestSource_Fetch(t *testing.T) {
	inner := mocks.NewMockTranscriptSource()
	inner.Set("abc", snippets("hello, there", "[Music]"))
	inner.Set("silent", snippets("[Music]", "[Applause]"))
	src := NewSource(inner, nil)

	got, err := src.Fetch(context.Background(), "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(texts(got), []string{"hello there"}) {
		t.Errorf("unexpected snippets %v", texts(got))
	}

	if _, err := src.Fetch(context.Background(), "silent"); !errors.Is(err, domain.ErrNotAvailable) {
		t.Errorf("expected ErrNotAvailable for cue-only transcript, got %v", err)
	}

	if _, err := src.Fetch(context.Background(), "missing"); !errors.Is(err, domain.ErrNotAvailable) {
		t.Errorf("expected ErrNotAvailable, got %v", err)
	}
}
