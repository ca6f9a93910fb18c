package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
)

// Options configures the external converters.
type Options struct {
	RawDecoder  string // dcraw-compatible: "-c -w -T <file>" writes TIFF to stdout
	HEIFDecoder string // heif-convert-compatible: "<in> <out.png>"
	Runner      CommandRunner
}

// Loader decodes files from disk into pixel buffers.
type Loader struct {
	rawDecoder  string
	heifDecoder string
	runner      CommandRunner
	logger      *slog.Logger
}

// NewLoader creates a loader. Empty decoder names fall back to dcraw and heif-convert.
func NewLoader(opts Options, logger *slog.Logger) *Loader {
	l := &Loader{
		rawDecoder:  opts.RawDecoder,
		heifDecoder: opts.HEIFDecoder,
		runner:      opts.Runner,
		logger:      logger,
	}
	if l.rawDecoder == "" {
		l.rawDecoder = "dcraw"
	}
	if l.heifDecoder == "" {
		l.heifDecoder = "heif-convert"
	}
	if l.runner == nil {
		l.runner = ExecRunner{}
	}
	return l
}

// Load decodes path. Every failure wraps ErrDecodeFailure.
func (l *Loader) Load(ctx context.Context, path string) (image.Image, error) {
	switch KindOf(path) {
	case KindRaw:
		return l.loadRaw(ctx, path)
	case KindHEIF:
		return l.loadHEIF(ctx, path)
	default:
		// Unknown extensions still get a content-sniffing attempt.
		return loadStandard(path)
	}
}

func loadStandard(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailure, err)
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func (l *Loader) loadRaw(ctx context.Context, path string) (image.Image, error) {
	l.logger.Debug("decoding RAW image", "path", path, "decoder", l.rawDecoder)

	out, err := l.runner.Run(ctx, l.rawDecoder, "-c", "-w", "-T", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecodeFailure, filepath.Base(path), err)
	}

	img, err := Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("%s: RAW output: %w", filepath.Base(path), err)
	}
	return img, nil
}

func (l *Loader) loadHEIF(ctx context.Context, path string) (image.Image, error) {
	l.logger.Debug("decoding HEIF image", "path", path, "decoder", l.heifDecoder)

	tmpDir, err := os.MkdirTemp("", "face-matcher-heif-")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp dir: %w", ErrDecodeFailure, err)
	}
	defer os.RemoveAll(tmpDir)

	target := filepath.Join(tmpDir, "decoded.png")
	if _, err := l.runner.Run(ctx, l.heifDecoder, path, target); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecodeFailure, filepath.Base(path), err)
	}

	return loadStandard(target)
}
