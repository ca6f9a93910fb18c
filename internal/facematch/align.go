package facematch

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// DesiredEyeDistance is the inter-eye distance, in pixels, that alignment scales faces to.
const DesiredEyeDistance = 60.0

// AlignmentParams derives the pivot, rotation (degrees) and scale used to level the eyes.
// The pivot is the eye midpoint truncated to whole pixels.
func AlignmentParams(face DetectedFace) (image.Point, float64, float64, error) {
	left, okLeft := face.Keypoint(KeypointLeftEye)
	right, okRight := face.Keypoint(KeypointRightEye)
	if !okLeft || !okRight {
		return image.Point{}, 0, 0, ErrMissingKeypoints
	}

	center := image.Pt(int((left.X+right.X)/2), int((left.Y+right.Y)/2))

	dx := right.X - left.X
	dy := right.Y - left.Y
	angle := math.Atan2(dy, dx) * 180 / math.Pi

	dist := math.Hypot(dx, dy)
	if dist == 0 {
		return image.Point{}, 0, 0, fmt.Errorf("%w: eyes share the same position", ErrMissingKeypoints)
	}

	return center, angle, DesiredEyeDistance / dist, nil
}

// RotationMatrix2D builds the 2x3 affine matrix that rotates by angle degrees
// (counter-clockwise on screen) and scales around center. Layout matches OpenCV's
// getRotationMatrix2D: pixel centers sit on integer coordinates.
func RotationMatrix2D(center image.Point, angle, scale float64) f64.Aff3 {
	rad := angle * math.Pi / 180
	alpha := scale * math.Cos(rad)
	beta := scale * math.Sin(rad)
	cx, cy := float64(center.X), float64(center.Y)

	return f64.Aff3{
		alpha, beta, (1-alpha)*cx - beta*cy,
		-beta, alpha, beta*cx + (1-alpha)*cy,
	}
}

// Apply maps a point through an affine matrix.
func Apply(m f64.Aff3, p Point) Point {
	return Point{
		X: m[0]*p.X + m[1]*p.Y + m[2],
		Y: m[3]*p.X + m[4]*p.Y + m[5],
	}
}

// toDrawSpace converts a matrix expressed in zero-origin, pixel-center coordinates into the
// continuous coordinates x/image/draw uses, where pixel (i, j) covers [i, i+1) and the source
// rectangle starts at origin.
func toDrawSpace(m f64.Aff3, origin image.Point) f64.Aff3 {
	ox, oy := float64(origin.X)+0.5, float64(origin.Y)+0.5
	return f64.Aff3{
		m[0], m[1], m[2] + 0.5 - m[0]*ox - m[1]*oy,
		m[3], m[4], m[5] + 0.5 - m[3]*ox - m[4]*oy,
	}
}

// AlignFace rotates and scales the whole image so the eyes are level and DesiredEyeDistance
// apart, then crops the face's original bounding box out of the result. The box is not
// recomputed after the warp.
func AlignFace(img image.Image, face DetectedFace) (*image.RGBA, error) {
	center, angle, scale, err := AlignmentParams(face)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	warped := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	m := toDrawSpace(RotationMatrix2D(center, angle, scale), b.Min)
	draw.CatmullRom.Transform(warped, m, img, b, draw.Src, nil)

	return cropBBox(warped, face.BBox)
}

// cropBBox copies the bbox region (truncated to ints, clamped to the image) into a new
// zero-origin image.
func cropBBox(img *image.RGBA, box BBox) (*image.RGBA, error) {
	x, y := int(box.X), int(box.Y)
	w, h := int(box.Width), int(box.Height)

	rect := image.Rect(x, y, x+w, y+h).Intersect(img.Bounds())
	if rect.Empty() {
		return nil, ErrEmptyCrop
	}

	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out, nil
}
