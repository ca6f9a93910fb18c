package facematch

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

func eyes(lx, ly, rx, ry float64) DetectedFace {
	return DetectedFace{
		BBox: BBox{X: 10, Y: 10, Width: 40, Height: 30},
		Keypoints: map[string]Point{
			KeypointLeftEye:  {X: lx, Y: ly},
			KeypointRightEye: {X: rx, Y: ry},
		},
	}
}

// gradient fills an image with a pattern that differs on every pixel.
func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x * 3), G: uint8(y * 5), B: uint8((x + y) % 256), A: 255})
		}
	}
	return img
}

func TestAlignmentParams_LevelEyes(t *testing.T) {
	center, angle, scale, err := AlignmentParams(eyes(20, 25, 80, 25))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if center != image.Pt(50, 25) {
		t.Errorf("center = %v, want (50,25)", center)
	}
	if math.Abs(angle) > 1e-9 {
		t.Errorf("angle = %v, want 0", angle)
	}
	if math.Abs(scale-1) > 1e-9 {
		t.Errorf("scale = %v, want 1", scale)
	}
}

func TestAlignmentParams(t *testing.T) {
	tests := []struct {
		name      string
		face      DetectedFace
		center    image.Point
		angle     float64
		scale     float64
		wantError error
	}{
		{
			name:   "tilted 45 degrees",
			face:   eyes(40, 40, 70, 70),
			center: image.Pt(55, 55),
			angle:  45,
			scale:  60 / math.Hypot(30, 30),
		},
		{
			name:   "eyes 30px apart",
			face:   eyes(0, 0, 30, 0),
			center: image.Pt(15, 0),
			angle:  0,
			scale:  2,
		},
		{
			name:   "center truncates",
			face:   eyes(10, 10, 21, 13),
			center: image.Pt(15, 11),
			angle:  math.Atan2(3, 11) * 180 / math.Pi,
			scale:  60 / math.Hypot(11, 3),
		},
		{
			name:      "missing right eye",
			face:      DetectedFace{Keypoints: map[string]Point{KeypointLeftEye: {1, 1}}},
			wantError: ErrMissingKeypoints,
		},
		{
			name:      "no keypoints",
			face:      DetectedFace{},
			wantError: ErrMissingKeypoints,
		},
		{
			name:      "coincident eyes",
			face:      eyes(5, 5, 5, 5),
			wantError: ErrMissingKeypoints,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			center, angle, scale, err := AlignmentParams(tt.face)
			if tt.wantError != nil {
				if !errors.Is(err, tt.wantError) {
					t.Fatalf("error = %v, want %v", err, tt.wantError)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if center != tt.center {
				t.Errorf("center = %v, want %v", center, tt.center)
			}
			if math.Abs(angle-tt.angle) > 1e-9 {
				t.Errorf("angle = %v, want %v", angle, tt.angle)
			}
			if math.Abs(scale-tt.scale) > 1e-9 {
				t.Errorf("scale = %v, want %v", scale, tt.scale)
			}
		})
	}
}

func TestRotationMatrix2D_Identity(t *testing.T) {
	m := RotationMatrix2D(image.Pt(30, 40), 0, 1)
	want := [6]float64{1, 0, 0, 0, 1, 0}
	for i := range want {
		if math.Abs(m[i]-want[i]) > 1e-12 {
			t.Fatalf("matrix = %v, want identity", m)
		}
	}
}

func TestRotationMatrix2D_LevelsEyes(t *testing.T) {
	face := eyes(40, 40, 70, 70)
	center, angle, scale, err := AlignmentParams(face)
	if err != nil {
		t.Fatal(err)
	}
	m := RotationMatrix2D(center, angle, scale)

	left := Apply(m, face.Keypoints[KeypointLeftEye])
	right := Apply(m, face.Keypoints[KeypointRightEye])

	if math.Abs(left.Y-right.Y) > 1e-9 {
		t.Errorf("eyes not level after transform: %v %v", left, right)
	}
	if d := math.Hypot(right.X-left.X, right.Y-left.Y); math.Abs(d-DesiredEyeDistance) > 1e-9 {
		t.Errorf("eye distance after transform = %v, want %v", d, DesiredEyeDistance)
	}
	pivot := Apply(m, Point{X: float64(center.X), Y: float64(center.Y)})
	if math.Abs(pivot.X-float64(center.X)) > 1e-9 || math.Abs(pivot.Y-float64(center.Y)) > 1e-9 {
		t.Errorf("pivot moved to %v", pivot)
	}
}

func TestAlignFace_IdentityCrop(t *testing.T) {
	src := gradient(80, 60)
	face := eyes(20, 25, 80, 25) // level and 60px apart
	face.BBox = BBox{X: 10.9, Y: 5.2, Width: 30.7, Height: 20.1}

	patch, err := AlignFace(src, face)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patch.Bounds() != image.Rect(0, 0, 30, 20) {
		t.Fatalf("patch bounds = %v, want 30x20", patch.Bounds())
	}

	for y := range 20 {
		for x := range 30 {
			got := patch.RGBAAt(x, y)
			want := src.RGBAAt(x+10, y+5)
			if absDiff(got.R, want.R) > 1 || absDiff(got.G, want.G) > 1 || absDiff(got.B, want.B) > 1 {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestAlignFace_ClampsToImage(t *testing.T) {
	src := gradient(50, 40)
	face := eyes(10, 10, 40, 10)
	face.BBox = BBox{X: 30, Y: 25, Width: 100, Height: 100}

	patch, err := AlignFace(src, face)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patch.Bounds().Dx() != 20 || patch.Bounds().Dy() != 15 {
		t.Errorf("patch bounds = %v, want 20x15", patch.Bounds())
	}
}

func TestAlignFace_Errors(t *testing.T) {
	src := gradient(20, 20)

	if _, err := AlignFace(src, DetectedFace{BBox: BBox{0, 0, 10, 10}}); !errors.Is(err, ErrMissingKeypoints) {
		t.Errorf("expected ErrMissingKeypoints, got %v", err)
	}

	face := eyes(2, 2, 12, 2)
	face.BBox = BBox{X: 100, Y: 100, Width: 10, Height: 10}
	if _, err := AlignFace(src, face); !errors.Is(err, ErrEmptyCrop) {
		t.Errorf("expected ErrEmptyCrop, got %v", err)
	}
}

func TestAlignFace_NonZeroOrigin(t *testing.T) {
	full := gradient(80, 60)
	sub := full.SubImage(image.Rect(10, 10, 70, 50)).(*image.RGBA)

	face := eyes(5, 10, 65, 10)
	face.BBox = BBox{X: 0, Y: 0, Width: 10, Height: 10}

	patch, err := AlignFace(sub, face)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := patch.RGBAAt(0, 0)
	want := full.RGBAAt(10, 10)
	if absDiff(got.R, want.R) > 1 || absDiff(got.G, want.G) > 1 {
		t.Errorf("origin pixel = %v, want %v", got, want)
	}
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
