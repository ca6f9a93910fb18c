// Package facematch provides the face geometry, alignment and embedding matching logic
// shared between the CLI runners and the web handlers.
package facematch

import "errors"

// Landmark names reported by the face detector.
const (
	KeypointLeftEye    = "left_eye"
	KeypointRightEye   = "right_eye"
	KeypointNose       = "nose"
	KeypointMouthLeft  = "mouth_left"
	KeypointMouthRight = "mouth_right"
)

var (
	// ErrMissingKeypoints is returned when a face cannot be aligned because its eye landmarks
	// are absent or degenerate.
	ErrMissingKeypoints = errors.New("face is missing the required eye keypoints")
	// ErrEmptyCrop is returned when the face bounding box lies outside the image.
	ErrEmptyCrop = errors.New("face bounding box does not intersect the image")
)

// Point is a pixel position in source image coordinates. Positions are relative to the
// top-left corner of the image bounds, so an image whose Bounds().Min is not (0, 0)
// still has its first pixel at (0, 0).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BBox is a face bounding box in pixels, top-left corner plus size, in the same
// coordinates as Point.
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Corners returns the box as [x1, y1, x2, y2].
func (b BBox) Corners() []float64 {
	return []float64{b.X, b.Y, b.X + b.Width, b.Y + b.Height}
}

// Area returns width*height, zero for degenerate boxes.
func (b BBox) Area() float64 {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// DetectedFace is a single detector result. It is never persisted.
type DetectedFace struct {
	BBox       BBox             `json:"bbox"`
	Confidence float64          `json:"confidence"`
	Keypoints  map[string]Point `json:"keypoints"`
}

// Keypoint returns a named landmark and whether it is present.
func (f DetectedFace) Keypoint(name string) (Point, bool) {
	p, ok := f.Keypoints[name]
	return p, ok
}
