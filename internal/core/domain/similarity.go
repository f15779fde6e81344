package domain

import (
	"fmt"
	"math"
)

// CosineSimilarity returns dot(a,b) / (|a| * |b|).
// Vectors must be non-empty, of equal length and have non-zero norm.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("%w: empty vector", ErrContractViolation)
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: vector length mismatch %d != %d", ErrContractViolation, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("%w: zero-norm vector", ErrContractViolation)
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
