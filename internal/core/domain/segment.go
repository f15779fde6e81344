package domain

import "strings"

// SegmentBuilder accumulates consecutive snippets into one candidate segment.
// Closing it produces an independent ClosedSegment and the caller seeds a
// fresh builder for the next run of snippets.
type SegmentBuilder struct {
	videoID   string
	text      strings.Builder
	startTime float64
	endTime   float64
	first     int
	last      int
}

// NewSegmentBuilder seeds a builder from the snippet at index.
func NewSegmentBuilder(videoID string, s Snippet, index int) *SegmentBuilder {
	b := &SegmentBuilder{
		videoID:   videoID,
		startTime: s.Start,
		endTime:   s.End(),
		first:     index,
		last:      index,
	}
	b.text.WriteString(s.Text)
	return b
}

// Append merges the snippet at index into the builder.
func (b *SegmentBuilder) Append(s Snippet, index int) {
	b.text.WriteString(" ")
	b.text.WriteString(s.Text)
	b.endTime = s.End()
	b.last = index
}

// Text returns the space-joined text accumulated so far.
func (b *SegmentBuilder) Text() string {
	return b.text.String()
}

// StartTime returns the start of the first merged snippet.
func (b *SegmentBuilder) StartTime() float64 {
	return b.startTime
}

// EndTime returns the end of the last merged snippet.
func (b *SegmentBuilder) EndTime() float64 {
	return b.endTime
}

// Duration returns the accumulated duration in seconds.
func (b *SegmentBuilder) Duration() float64 {
	return b.endTime - b.startTime
}

// Close snapshots the builder into an immutable segment.
func (b *SegmentBuilder) Close(chunkID int, embedding []float32, similarity float64, download bool, subtitles []SubtitleEntry) *ClosedSegment {
	end := b.endTime
	if end < b.startTime {
		end = b.startTime
	}
	return &ClosedSegment{
		VideoID:      b.videoID,
		ChunkID:      chunkID,
		Text:         b.text.String(),
		StartTime:    b.startTime,
		EndTime:      end,
		Embedding:    embedding,
		Similarity:   similarity,
		Download:     download,
		Subtitles:    subtitles,
		FirstSnippet: b.first,
		LastSnippet:  b.last,
	}
}

// ClosedSegment is a scored, numbered run of snippets from one video.
type ClosedSegment struct {
	VideoID    string          `json:"video_id"`
	Target     string          `json:"target"`
	ChunkID    int             `json:"chunk_id"`
	Text       string          `json:"text"`
	StartTime  float64         `json:"start_time"`
	EndTime    float64         `json:"end_time"`
	Embedding  []float32       `json:"embedding,omitempty"`
	Similarity float64         `json:"similarity"`
	Download   bool            `json:"download"`
	Subtitles  []SubtitleEntry `json:"subtitles,omitempty"`

	// FirstSnippet and LastSnippet are inclusive transcript indices of the
	// snippets merged into this segment.
	FirstSnippet int `json:"first_snippet"`
	LastSnippet  int `json:"last_snippet"`
}

// Duration returns the segment length in seconds.
func (s *ClosedSegment) Duration() float64 {
	return s.EndTime - s.StartTime
}
