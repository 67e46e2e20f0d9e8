package clustering

import "math"

// DistanceFunc measures the distance between two embedding vectors.
type DistanceFunc func(a, b []float32) float64

// CosineDistance computes the cosine distance between two vectors.
// Returns a value between 0 (identical direction) and 2 (opposite).
// Invalid input (mismatched lengths, empty or zero vectors) yields the
// maximum distance instead of an error so callers can treat such points
// as unreachable.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2.0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}

	return 1 - similarity
}

// Centroid returns the component-wise mean of the given vectors. Returns
// nil when the input is empty or the vectors disagree on dimensionality.
func Centroid(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil
	}

	sum := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
	}

	centroid := make([]float32, dim)
	for i, s := range sum {
		centroid[i] = float32(s / float64(len(vectors)))
	}
	return centroid
}
