package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/custodia-labs/athena-core/internal/core/domain"
)

const searchResponse = `{
  "kind": "youtube#searchListResponse",
  "nextPageToken": "CAoQAA",
  "items": [
    {
      "id": {"kind": "youtube#video", "videoId": "abc123"},
      "snippet": {
        "title": "Linear Regression",
        "description": "Intro lecture",
        "thumbnails": {"default": {"url": "https://i.ytimg.com/vi/abc123/default.jpg"}, "high": {"url": "https://i.ytimg.com/vi/abc123/hqdefault.jpg"}}
      }
    },
    {"id": {"kind": "youtube#channel", "channelId": "chan"}},
    {"id": {"kind": "youtube#video", "videoId": "def456"}, "snippet": {"title": "Gradient Descent"}}
  ]
}`

func newTestSearcher(t *testing.T, handler http.HandlerFunc) *Searcher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	s, err := NewSearcher(context.Background(), "test-key", nil,
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)
	return s
}

func TestSearcher_Search(t *testing.T) {
	var query map[string][]string
	s := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchResponse))
	})

	page, err := s.Search(context.Background(), "linear regression", "", 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"linear regression"}, query["q"])
	assert.Equal(t, []string{"snippet"}, query["part"])
	assert.Equal(t, []string{"closedCaption"}, query["videoCaption"])
	assert.Equal(t, []string{"video"}, query["type"])
	assert.Equal(t, []string{"10"}, query["maxResults"])
	assert.Empty(t, query["pageToken"])

	require.Len(t, page.Results, 2)
	assert.Equal(t, "abc123", page.Results[0].VideoID)
	assert.Equal(t, "Linear Regression", page.Results[0].Title)
	assert.Equal(t, "https://i.ytimg.com/vi/abc123/hqdefault.jpg", page.Results[0].ThumbnailURL)
	assert.Equal(t, "def456", page.Results[1].VideoID)
	assert.Empty(t, page.Results[1].ThumbnailURL)
	assert.Equal(t, "CAoQAA", page.NextPageToken)
	assert.True(t, page.HasNext())
}

func TestSearcher_Search_PageToken(t *testing.T) {
	var token string
	s := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
		token = r.URL.Query().Get("pageToken")
		_, _ = w.Write([]byte(`{"items": []}`))
	})

	page, err := s.Search(context.Background(), "q", "CAoQAA", 0)
	require.NoError(t, err)
	assert.Equal(t, "CAoQAA", token)
	assert.False(t, page.HasNext())
}

func TestSearcher_Search_Error(t *testing.T) {
	s := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"code": 403, "message": "quotaExceeded"}}`))
	})

	_, err := s.Search(context.Background(), "q", "", 10)
	assert.True(t, errors.Is(err, domain.ErrProvider))
}

func TestNewSearcher_RequiresAPIKey(t *testing.T) {
	_, err := NewSearcher(context.Background(), "", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
