package domain

import "time"

// SearchResult is one captioned video returned by a video search.
type SearchResult struct {
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// SearchPage is one page of search results plus its paging tokens.
type SearchPage struct {
	Results       []SearchResult `json:"results"`
	NextPageToken string         `json:"next_page_token,omitempty"`
	PrevPageToken string         `json:"prev_page_token,omitempty"`
}

// HasNext reports whether another page can be requested.
func (p *SearchPage) HasNext() bool {
	return p != nil && p.NextPageToken != ""
}

// VideoMetadata is the persisted description of a visited video.
type VideoMetadata struct {
	VideoID      string    `json:"video_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnail_url"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// NewVideoMetadata converts a search result into metadata stamped now.
func NewVideoMetadata(r SearchResult) *VideoMetadata {
	return &VideoMetadata{
		VideoID:      r.VideoID,
		Title:        r.Title,
		Description:  r.Description,
		ThumbnailURL: r.ThumbnailURL,
		FetchedAt:    time.Now(),
	}
}
