package domain

import (
	"fmt"
	"math"
)

// DefaultVideoLimit is how many distinct videos one orchestration run visits.
const DefaultVideoLimit = 10

// SegmentationPolicy holds the tunable thresholds of a segmentation pass.
type SegmentationPolicy struct {
	// MinDuration is the duration a segment must exceed before a sentence
	// boundary is allowed to close it.
	MinDuration float64 `json:"min_duration"`

	// MaxDuration forces closure once reached, sentence boundary or not.
	MaxDuration float64 `json:"max_duration"`

	// SimilarityThreshold is the cosine score a segment must strictly exceed
	// to be marked for download.
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

// DefaultSegmentationPolicy returns the 20s / 60s / 0.3 policy.
func DefaultSegmentationPolicy() SegmentationPolicy {
	return SegmentationPolicy{
		MinDuration:         20,
		MaxDuration:         60,
		SimilarityThreshold: 0.3,
	}
}

// Validate checks the thresholds are usable.
func (p SegmentationPolicy) Validate() error {
	if p.MinDuration < 0 || math.IsNaN(p.MinDuration) {
		return fmt.Errorf("%w: min duration must be non-negative", ErrInvalidInput)
	}
	if p.MaxDuration <= 0 || math.IsNaN(p.MaxDuration) {
		return fmt.Errorf("%w: max duration must be positive", ErrInvalidInput)
	}
	if p.MinDuration > p.MaxDuration {
		return fmt.Errorf("%w: min duration %.1f exceeds max duration %.1f", ErrInvalidInput, p.MinDuration, p.MaxDuration)
	}
	if p.SimilarityThreshold < -1 || p.SimilarityThreshold > 1 || math.IsNaN(p.SimilarityThreshold) {
		return fmt.Errorf("%w: similarity threshold must be within [-1, 1]", ErrInvalidInput)
	}
	return nil
}

// ShouldClose reports whether a segment of the given duration closes.
func (p SegmentationPolicy) ShouldClose(sentenceEnd bool, duration float64) bool {
	return (sentenceEnd && duration > p.MinDuration) || duration >= p.MaxDuration
}
