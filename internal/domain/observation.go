package domain

import (
	"time"

	"github.com/google/uuid"
)

// BoundingBox locates a detected face inside its source image, in pixels.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns the box area in square pixels.
func (b BoundingBox) Area() int {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// AspectRatio returns width/height, or 0 for a degenerate box.
func (b BoundingBox) AspectRatio() float64 {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return float64(b.Width) / float64(b.Height)
}

// IsValid reports whether the box has positive extent.
func (b BoundingBox) IsValid() bool {
	return b.Width > 0 && b.Height > 0
}

// FaceObservation is one detected face instance inside a collection.
// Observations are produced by the detection pipeline and are read-only
// to the clustering engine.
type FaceObservation struct {
	ID                 uuid.UUID   `json:"id"`
	CollectionID       uuid.UUID   `json:"-"`
	SourceImagePath    string      `json:"source_image_path"`
	CropPath           string      `json:"crop_path"`
	Box                BoundingBox `json:"bounding_box"`
	DetectorConfidence float64     `json:"detector_confidence"`
	Embedding          []float32   `json:"-"`
	CreatedAt          time.Time   `json:"created_at"`
}

// HasEmbedding reports whether the observation carries a usable embedding
// of the expected dimensionality. dim <= 0 accepts any non-empty vector.
func (o *FaceObservation) HasEmbedding(dim int) bool {
	if len(o.Embedding) == 0 {
		return false
	}
	if dim > 0 && len(o.Embedding) != dim {
		return false
	}
	return true
}
