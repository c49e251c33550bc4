package vectordb

import (
	"fmt"
	"math"
	"sort"
)

// innerProduct computes the dot product of two equal-length vectors.
// For normalized vectors this equals cosine similarity.
func innerProduct(v1, v2 []float32) float32 {
	var dot float32
	for i := 0; i < len(v1); i++ {
		dot += v1[i] * v2[i]
	}
	return dot
}

// vectorNorm computes the L2 norm of a vector.
func vectorNorm(v []float32) float32 {
	var sum float32
	for _, val := range v {
		sum += val * val
	}
	return float32(math.Sqrt(float64(sum)))
}

// normalizeVector returns a unit-length copy of v. Zero vectors are
// returned as-is since they cannot be normalized.
func normalizeVector(v []float32) []float32 {
	norm := vectorNorm(v)
	if norm == 0 {
		return v
	}
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}

// ValidateVector checks a vector for emptiness and dimension mismatch.
func ValidateVector(vector []float32, expectedDim int) error {
	if len(vector) == 0 {
		return ErrEmptyVector
	}
	if expectedDim > 0 && len(vector) != expectedDim {
		return fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, expectedDim, len(vector))
	}
	return nil
}

// topKByScore sorts results by score descending, keeping insertion order
// among equal scores, and truncates to k. The sort must be stable so that
// equal-scoring segments come back in the order they were indexed.
func topKByScore(results []SearchResult, k int) []SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	for i := range results {
		results[i].Rank = i
	}
	return results
}
