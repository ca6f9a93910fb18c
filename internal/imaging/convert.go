package imaging

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

// ConvertOptions mirrors the converter settings (QUALITY, OPTIMIZE, PROGRESSIVE).
type ConvertOptions struct {
	Quality     int
	Optimize    bool
	Progressive bool
}

// DefaultOutputPath replaces the extension of input with .jpg.
func DefaultOutputPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".jpg"
}

// ConvertToJPEG decodes input and writes an RGB JPEG to output (or next to input when
// output is empty). It returns the written path.
func (l *Loader) ConvertToJPEG(ctx context.Context, input, output string, opts ConvertOptions) (string, error) {
	if output == "" {
		output = DefaultOutputPath(input)
	}
	if opts.Quality == 0 {
		opts.Quality = 85
	}
	if opts.Optimize || opts.Progressive {
		// image/jpeg writes baseline, Huffman tables are fixed.
		l.logger.Debug("jpeg encoder ignores optimize/progressive",
			"optimize", opts.Optimize, "progressive", opts.Progressive)
	}

	img, err := l.Load(ctx, input)
	if err != nil {
		return "", err
	}

	data, err := EncodeJPEG(flatten(img), opts.Quality)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil { //nolint:gosec // converted photos are meant to be shared
		return "", fmt.Errorf("write %s: %w", output, err)
	}

	l.logger.Info("converted image", "input", input, "output", output,
		"quality", opts.Quality, "optimize", opts.Optimize, "progressive", opts.Progressive)
	return output, nil
}

// ConvertResult is the outcome for one file of a folder conversion.
type ConvertResult struct {
	Input  string
	Output string
	Err    error
}

// ConvertFolder converts every decodable file in dir. Outputs go to outDir, or next to
// the inputs when outDir is empty. A failing file does not stop the others.
func (l *Loader) ConvertFolder(ctx context.Context, dir, outDir string, opts ConvertOptions) ([]ConvertResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read folder %s: %w", dir, err)
	}

	var results []ConvertResult
	for _, e := range entries {
		if e.IsDir() || KindOf(e.Name()) == KindUnknown {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		input := filepath.Join(dir, e.Name())
		output := ""
		if outDir != "" {
			output = DefaultOutputPath(filepath.Join(outDir, e.Name()))
		}
		written, err := l.ConvertToJPEG(ctx, input, output, opts)
		if err != nil {
			l.logger.Error("conversion failed", "input", input, "error", err)
		}
		results = append(results, ConvertResult{Input: input, Output: written, Err: err})
	}
	return results, nil
}

// flatten composes img over white so transparent PNG/WebP pixels do not turn black.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}
