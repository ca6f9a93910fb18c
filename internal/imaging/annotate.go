package imaging

import (
	"image"
	"image/color"

	"github.com/kozaktomas/face-matcher/internal/facematch"
)

var (
	boxColor      = color.RGBA{G: 255, A: 255}
	keypointColor = color.RGBA{R: 255, A: 255}
)

// Annotate returns a copy of img with face boxes and landmarks drawn on it.
func Annotate(img image.Image, faces []facematch.DetectedFace) *image.RGBA {
	out := ToRGBA(img)
	if out == img {
		out = copyRGBA(out)
	}

	for _, f := range faces {
		x1, y1 := int(f.BBox.X), int(f.BBox.Y)
		x2, y2 := int(f.BBox.X+f.BBox.Width), int(f.BBox.Y+f.BBox.Height)
		drawRect(out, image.Rect(x1, y1, x2, y2), 2, boxColor)

		for _, p := range f.Keypoints {
			cx, cy := int(p.X), int(p.Y)
			drawRect(out, image.Rect(cx-2, cy-2, cx+3, cy+3), 3, keypointColor)
		}
	}
	return out
}

// drawRect strokes r with the given thickness, clipped to the image.
func drawRect(img *image.RGBA, r image.Rectangle, thickness int, c color.RGBA) {
	bounds := img.Bounds()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			onEdge := x < r.Min.X+thickness || x >= r.Max.X-thickness ||
				y < r.Min.Y+thickness || y >= r.Max.Y-thickness
			if onEdge && image.Pt(x, y).In(bounds) {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func copyRGBA(src *image.RGBA) *image.RGBA {
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	return out
}
