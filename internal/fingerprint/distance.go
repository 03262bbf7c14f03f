package fingerprint

import (
	"fmt"
	"math"
)

// Metric names accepted by NewPredicate.
const (
	MetricEuclidean = "euclidean"
	MetricCosine    = "cosine"
)

// EuclideanDistance computes the L2 distance between two vectors.
// Returns +Inf for vectors of different or zero length.
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

// CosineDistance computes the cosine distance between two vectors
// Returns a value between 0 (identical) and 2 (opposite)
// Cosine distance = 1 - cosine similarity
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0 // Maximum distance for invalid input
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2.0 // Maximum distance for zero vectors
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	similarity = max(-1, min(1, similarity))

	return 1 - similarity
}

// DistanceFunc measures how far apart two embeddings are.
type DistanceFunc func(a, b []float32) float64

// ThresholdPredicate matches two embeddings whose distance is at most Threshold.
type ThresholdPredicate struct {
	Distance  DistanceFunc
	Threshold float64
}

// Match implements matcher.Predicate.
func (p ThresholdPredicate) Match(query, stored []float32) bool {
	if len(query) != len(stored) {
		return false
	}
	return p.Distance(query, stored) <= p.Threshold
}

// EuclideanTolerance matches faces within tolerance in L2 distance.
// 0.6 is the usual cut-off for 128-dim face descriptors.
func EuclideanTolerance(tolerance float64) ThresholdPredicate {
	return ThresholdPredicate{Distance: EuclideanDistance, Threshold: tolerance}
}

// CosineThreshold matches faces whose cosine distance is at most threshold.
func CosineThreshold(threshold float64) ThresholdPredicate {
	return ThresholdPredicate{Distance: CosineDistance, Threshold: threshold}
}

// NewPredicate returns the predicate for a metric name.
func NewPredicate(metric string, threshold float64) (ThresholdPredicate, error) {
	if threshold <= 0 {
		return ThresholdPredicate{}, fmt.Errorf("threshold must be positive, got %v", threshold)
	}
	switch metric {
	case MetricEuclidean:
		return EuclideanTolerance(threshold), nil
	case MetricCosine:
		return CosineThreshold(threshold), nil
	}
	return ThresholdPredicate{}, fmt.Errorf("unknown metric %q", metric)
}
