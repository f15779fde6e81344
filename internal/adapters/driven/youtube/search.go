package youtube

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/custodia-labs/athena-core/internal/core/domain"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VideoSearcher = (*Searcher)(nil)

// Searcher finds captioned videos with the YouTube Data API.
type Searcher struct {
	service *yt.Service
	logger  *slog.Logger
}

// NewSearcher creates a searcher authenticated with an API key. Extra
// options are appended after the key.
func NewSearcher(ctx context.Context, apiKey string, logger *slog.Logger, opts ...option.ClientOption) (*Searcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: YouTube API key is required", domain.ErrInvalidInput)
	}
	if logger == nil {
		logger = slog.Default()
	}

	service, err := yt.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &Searcher{service: service, logger: logger}, nil
}

// Search returns one page of captioned videos matching query.
func (s *Searcher) Search(ctx context.Context, query, pageToken string, maxResults int) (*domain.SearchPage, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	call := s.service.Search.List([]string{"snippet"}).
		Q(query).
		MaxResults(int64(maxResults)).
		VideoCaption("closedCaption").
		Type("video")
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: youtube search: %v", domain.ErrProvider, err)
	}

	page := &domain.SearchPage{
		NextPageToken: resp.NextPageToken,
		PrevPageToken: resp.PrevPageToken,
	}
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		result := domain.SearchResult{VideoID: item.Id.VideoId}
		if sn := item.Snippet; sn != nil {
			result.Title = sn.Title
			result.Description = sn.Description
			result.ThumbnailURL = thumbnailURL(sn.Thumbnails)
		}
		page.Results = append(page.Results, result)
	}

	s.logger.Debug("youtube search page",
		"query", query,
		"page_token", pageToken,
		"results", len(page.Results),
		"has_next", page.HasNext(),
	)
	return page, nil
}

// thumbnailURL picks the largest available thumbnail.
func thumbnailURL(t *yt.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*yt.Thumbnail{t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}
