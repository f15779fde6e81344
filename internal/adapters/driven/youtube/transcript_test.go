package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/custodia-labs/athena-core/internal/core/domain"
)

const timedTextXML = `<?xml version="1.0" encoding="utf-8" ?><transcript>
<text start="0.5" dur="2.1">so today we&amp;#39;ll look</text>
<text start="2.6" dur="3">at linear regression</text>
</transcript>`

func TestTimedTextSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("v") != "abc123" {
			t.Errorf("unexpected video id %q", r.URL.Query().Get("v"))
		}
		if r.URL.Query().Get("lang") != "en" {
			t.Errorf("unexpected lang %q", r.URL.Query().Get("lang"))
		}
		_, _ = w.Write([]byte(timedTextXML))
	}))
	defer server.Close()

	src := NewTimedTextSource(TimedTextConfig{BaseURL: server.URL})
	snippets, err := src.Fetch(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(snippets) != 2 {
		t.Fatalf("expected 2 snippets, got %d", len(snippets))
	}
	// One level of escaping is left for the cleaning pipeline.
	if snippets[0].Text != "so today we&#39;ll look" {
		t.Errorf("unexpected text %q", snippets[0].Text)
	}
	if snippets[1].Start != 2.6 || snippets[1].Duration != 3 {
		t.Errorf("unexpected timing %+v", snippets[1])
	}
}

func TestTimedTextSource_FallsBackToASR(t *testing.T) {
	var kinds []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind := r.URL.Query().Get("kind")
		kinds = append(kinds, kind)
		if kind == "asr" {
			_, _ = w.Write([]byte(timedTextXML))
		}
	}))
	defer server.Close()

	src := NewTimedTextSource(TimedTextConfig{BaseURL: server.URL})
	snippets, err := src.Fetch(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snippets) != 2 {
		t.Errorf("expected asr snippets, got %d", len(snippets))
	}
	if len(kinds) != 2 || kinds[0] != "" || kinds[1] != "asr" {
		t.Errorf("unexpected request sequence %v", kinds)
	}
}

func TestTimedTextSource_NotAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	src := NewTimedTextSource(TimedTextConfig{BaseURL: server.URL})
	if _, err := src.Fetch(context.Background(), "nocaps"); !errors.Is(err, domain.ErrNotAvailable) {
		t.Errorf("expected ErrNotAvailable, got %v", err)
	}
}

func TestTimedTextSource_ProviderErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, ""},
		{"malformed xml", http.StatusOK, "<transcript><text start="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			src := NewTimedTextSource(TimedTextConfig{BaseURL: server.URL})
			if _, err := src.Fetch(context.Background(), "x"); !errors.Is(err, domain.ErrProvider) {
				t.Errorf("expected ErrProvider, got %v", err)
			}
		})
	}
}
