// Package imaging turns image files of any supported format into decoded pixel buffers
// and converts them to JPEG.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"slices"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecodeFailure is returned for unreadable or corrupt images.
	ErrDecodeFailure = errors.New("image decode failure")
	// ErrUnsupportedFormat is a decode failure caused by an unknown file type.
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported format", ErrDecodeFailure)
)

// RawExtensions are camera RAW formats decoded through an external converter.
var RawExtensions = []string{".cr2", ".nef", ".arw", ".dng", ".orf", ".rw2"}

// HEIFExtensions are HEIF container formats decoded through an external converter.
var HEIFExtensions = []string{".heic", ".heif"}

// StandardExtensions are decoded in-process.
var StandardExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// Kind classifies a file by extension.
type Kind int

const (
	KindUnknown Kind = iota
	KindStandard
	KindRaw
	KindHEIF
)

// KindOf returns the decoder family for path.
func KindOf(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case slices.Contains(StandardExtensions, ext):
		return KindStandard
	case slices.Contains(RawExtensions, ext):
		return KindRaw
	case slices.Contains(HEIFExtensions, ext):
		return KindHEIF
	}
	return KindUnknown
}

// HasExtension reports whether path ends in one of exts, ignoring case.
func HasExtension(path string, exts []string) bool {
	return slices.Contains(exts, strings.ToLower(filepath.Ext(path)))
}

// Decode reads any in-process format (JPEG, PNG, GIF, BMP, TIFF, WebP).
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailure, err)
	}
	return img, nil
}

// ToRGBA returns img as a zero-origin RGBA buffer, copying only when needed.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// EncodeJPEG encodes img as a JPEG with the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: clampQuality(quality)}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// ResizeToFit scales img down so neither side exceeds maxSize, keeping aspect ratio.
// It returns the image unchanged when it already fits, plus the applied scale factor.
func ResizeToFit(img image.Image, maxSize int) (image.Image, float64) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return img, 1
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = int(float64(height) * float64(maxSize) / float64(width))
	} else {
		newHeight = maxSize
		newWidth = int(float64(width) * float64(maxSize) / float64(height))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized, float64(newWidth) / float64(width)
}

func clampQuality(q int) int {
	return max(1, min(100, q))
}
