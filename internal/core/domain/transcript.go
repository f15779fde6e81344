package domain

import "fmt"

// Snippet is one timestamped line of a transcript.
// Start and Duration are in seconds.
type Snippet struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// End returns the time at which the snippet stops being spoken.
func (s Snippet) End() float64 {
	return s.Start + s.Duration
}

// Validate rejects snippets with negative timings.
func (s Snippet) Validate() error {
	if s.Start < 0 {
		return fmt.Errorf("%w: snippet start %.3f is negative", ErrContractViolation, s.Start)
	}
	if s.Duration < 0 {
		return fmt.Errorf("%w: snippet duration %.3f is negative", ErrContractViolation, s.Duration)
	}
	return nil
}

// ValidateTranscript validates every snippet in order and reports the first offender.
func ValidateTranscript(transcript []Snippet) error {
	for i, s := range transcript {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("snippet %d: %w", i, err)
		}
	}
	return nil
}

// SubtitleEntry is a subtitle line positioned relative to the start of a segment.
type SubtitleEntry struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// End returns the relative end of the subtitle.
func (e SubtitleEntry) End() float64 {
	return e.Start + e.Duration
}

// ExtractSubtitles returns the transcript lines overlapping [start, end).
// Overlap is half-open: a snippet qualifies when it ends after start and
// begins before end. Subtitle starts are relative to start and never negative.
func ExtractSubtitles(transcript []Snippet, start, end float64) []SubtitleEntry {
	var entries []SubtitleEntry
	for _, s := range transcript {
		if s.End() > start && s.Start < end {
			rel := s.Start - start
			if rel < 0 {
				rel = 0
			}
			entries = append(entries, SubtitleEntry{
				Text:     s.Text,
				Start:    rel,
				Duration: s.Duration,
			})
		}
	}
	return entries
}
