package embeddings

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyVector is returned when either vector has no dimensions.
	ErrEmptyVector = errors.New("embeddings: vector is empty")
	// ErrDimensionMismatch is returned when the vectors have different lengths.
	ErrDimensionMismatch = errors.New("embeddings: vector dimension mismatch")
	// ErrZeroMagnitude is returned when either vector has zero length, which leaves the angle undefined.
	ErrZeroMagnitude = errors.New("embeddings: vector has zero magnitude")
)

// CosineSimilarity returns dot(a, b) / (|a| * |b|), in [-1, 1].
// Accumulation is done in float64 so float32 model output does not drift past the bounds.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, ErrEmptyVector
	}

	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64

	for i := range a {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}

	if normA == 0 || normB == 0 {
		return 0, ErrZeroMagnitude
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))

	// Rounding error can push parallel vectors a hair past 1.
	return math.Max(-1, math.Min(1, sim)), nil
}

// RoundTo rounds x to the given number of decimal places, half away from zero.
func RoundTo(x float64, places int) float64 {
	scale := math.Pow(10, float64(places))

	return math.Round(x*scale) / scale
}
