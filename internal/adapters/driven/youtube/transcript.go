package youtube

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/custodia-labs/athena-core/internal/core/domain"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TranscriptSource = (*TimedTextSource)(nil)

// DefaultTimedTextURL is the public caption endpoint.
const DefaultTimedTextURL = "https://www.youtube.com/api/timedtext"

// TimedTextSource fetches captions from the timedtext endpoint.
// It tries manual captions first and falls back to auto-generated ones.
type TimedTextSource struct {
	baseURL  string
	language string
	client   *http.Client
	logger   *slog.Logger
}

// TimedTextConfig holds configuration for TimedTextSource.
type TimedTextConfig struct {
	BaseURL  string // default: DefaultTimedTextURL
	Language string // default: en
	Client   *http.Client
	Logger   *slog.Logger
}

// NewTimedTextSource creates a new timedtext transcript source.
func NewTimedTextSource(cfg TimedTextConfig) *TimedTextSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTimedTextURL
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &TimedTextSource{
		baseURL:  cfg.BaseURL,
		language: cfg.Language,
		client:   cfg.Client,
		logger:   cfg.Logger,
	}
}

// timedText is the XML document served by the endpoint.
type timedText struct {
	Texts []struct {
		Start    float64 `xml:"start,attr"`
		Duration float64 `xml:"dur,attr"`
		Text     string  `xml:",chardata"`
	} `xml:"text"`
}

// Fetch returns the video's caption lines in order.
func (s *TimedTextSource) Fetch(ctx context.Context, videoID string) ([]domain.Snippet, error) {
	for _, kind := range []string{"", "asr"} {
		snippets, err := s.fetch(ctx, videoID, kind)
		if err != nil {
			return nil, err
		}
		if len(snippets) > 0 {
			s.logger.Debug("transcript fetched", "video_id", videoID, "kind", kind, "snippets", len(snippets))
			return snippets, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrNotAvailable, videoID)
}

func (s *TimedTextSource) fetch(ctx context.Context, videoID, kind string) ([]domain.Snippet, error) {
	q := url.Values{}
	q.Set("v", videoID)
	q.Set("lang", s.language)
	if kind != "" {
		q.Set("kind", kind)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: timedtext request: %v", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: timedtext returned status %d", domain.ErrProvider, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read timedtext: %v", domain.ErrProvider, err)
	}
	if len(body) == 0 {
		return nil, nil
	}

	var doc timedText
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse timedtext: %v", domain.ErrProvider, err)
	}

	snippets := make([]domain.Snippet, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		snippets = append(snippets, domain.Snippet{
			Text:     t.Text,
			Start:    t.Start,
			Duration: t.Duration,
		})
	}
	return snippets, nil
}
