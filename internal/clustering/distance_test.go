package clustering

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical vectors", []float32{1, 0, 0}, []float32{1, 0, 0}, 0},
		{"scaled copy", []float32{1, 2, 3}, []float32{2, 4, 6}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"mismatched lengths", []float32{1, 0}, []float32{1, 0, 0}, 2},
		{"empty vectors", []float32{}, []float32{}, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineDistance(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosineDistance_Symmetric(t *testing.T) {
	a := []float32{0.3, -0.7, 0.2, 0.1}
	b := []float32{-0.1, 0.5, 0.9, -0.4}
	assert.InDelta(t, CosineDistance(a, b), CosineDistance(b, a), 1e-12)
}

func TestCentroid(t *testing.T) {
	vectors := [][]float32{
		{1, 2, 3},
		{3, 2, 1},
	}
	centroid := Centroid(vectors)
	assert.Equal(t, []float32{2, 2, 2}, centroid)
}

func TestCentroid_Degenerate(t *testing.T) {
	assert.Nil(t, Centroid(nil))
	assert.Nil(t, Centroid([][]float32{}))
	assert.Nil(t, Centroid([][]float32{{}}))
	assert.Nil(t, Centroid([][]float32{{1, 2}, {1, 2, 3}}))
}
