// Package matcher assigns detected face embeddings to enrolled students.
// It is a pure in-memory computation over a template snapshot loaded by the
// caller, so matching runs are reproducible and testable in isolation.
package matcher

import "math"

// EuclideanDistance computes the Euclidean distance between two vectors.
// Returns +Inf for mismatched or empty inputs so invalid pairs never match.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Normalize returns the L2-normalized copy of a vector. Zero vectors are
// returned unchanged.
func Normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
