// Package runner orchestrates the add and search workflows:
// load, detect, align, extract, then store or match.
package runner

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/kozaktomas/face-matcher/internal/database"
	"github.com/kozaktomas/face-matcher/internal/facematch"
	"github.com/kozaktomas/face-matcher/internal/vision"
)

// ImageLoader decodes an image file from disk.
type ImageLoader interface {
	Load(ctx context.Context, path string) (image.Image, error)
}

// Options configures a Runner.
type Options struct {
	Model         string
	ExpectedDim   int    // 0 disables the check
	FaceSelection string // first, largest or confident
	MinConfidence float64
	DedupeIoU     float64 // 0 disables duplicate box removal
	Force         bool    // recompute filenames that are already stored
	Progress      io.Writer
}

// Runner runs the face pipeline against one store.
type Runner struct {
	store     database.EmbeddingWriter
	loader    ImageLoader
	detector  vision.Detector
	extractor vision.Extractor
	opts      Options
	logger    *slog.Logger
}

// New creates a Runner.
func New(store database.EmbeddingWriter, loader ImageLoader, detector vision.Detector, extractor vision.Extractor, opts Options, logger *slog.Logger) *Runner {
	if opts.Model == "" {
		opts.Model = "Facenet"
	}
	return &Runner{
		store:     store,
		loader:    loader,
		detector:  detector,
		extractor: extractor,
		opts:      opts,
		logger:    logger,
	}
}

// WithForce returns a copy of r that recomputes already stored filenames when force is set.
func (r *Runner) WithForce(force bool) *Runner {
	c := *r
	c.opts.Force = force
	return &c
}

// Store returns the store the runner writes to.
func (r *Runner) Store() database.EmbeddingWriter {
	return r.store
}

// Status of a single add.
type Status string

const (
	StatusAdded   Status = "added"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome describes the result of adding one image.
type Outcome struct {
	Filename  string             `json:"filename"`
	Namespace database.Namespace `json:"namespace"`
	Status    Status             `json:"status"`
	Faces     int                `json:"faces,omitempty"`
	Dim       int                `json:"dim,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// Detection is the output of the detect stage for one image.
type Detection struct {
	Image image.Image
	Faces []facematch.DetectedFace
}

// Detect loads path and returns the faces kept after confidence filtering and deduplication.
func (r *Runner) Detect(ctx context.Context, path string) (*Detection, error) {
	img, err := r.loader.Load(ctx, path)
	if err != nil {
		return nil, stageErr(StageDecode, path, err)
	}

	faces, err := r.detector.Detect(ctx, img)
	if err != nil {
		return nil, stageErr(StageDetect, path, err)
	}
	faces = facematch.FilterByConfidence(faces, r.opts.MinConfidence)
	if r.opts.DedupeIoU > 0 {
		faces = facematch.DedupeFaces(faces, r.opts.DedupeIoU)
	}
	return &Detection{Image: img, Faces: faces}, nil
}

// Embed runs the whole pipeline for path and returns the embedding of the selected face
// together with the number of faces detected.
func (r *Runner) Embed(ctx context.Context, path string) ([]float32, int, error) {
	det, err := r.Detect(ctx, path)
	if err != nil {
		return nil, 0, err
	}
	if len(det.Faces) == 0 {
		return nil, 0, stageErr(StageDetect, path, ErrNoFaceDetected)
	}

	face, err := facematch.SelectFace(det.Faces, r.opts.FaceSelection)
	if err != nil {
		return nil, len(det.Faces), stageErr(StageDetect, path, err)
	}

	patch, err := facematch.AlignFace(det.Image, face)
	if err != nil {
		return nil, len(det.Faces), stageErr(StageAlign, path, err)
	}

	embedding, err := r.extractor.Extract(ctx, patch, r.opts.Model)
	if err != nil {
		return nil, len(det.Faces), stageErr(StageExtract, path, err)
	}
	if r.opts.ExpectedDim > 0 && len(embedding) != r.opts.ExpectedDim {
		err := fmt.Errorf("%w: model %s returned %d values, want %d",
			vision.ErrExtractionFailure, r.opts.Model, len(embedding), r.opts.ExpectedDim)
		return nil, len(det.Faces), stageErr(StageExtract, path, err)
	}

	r.logger.Debug("face embedded", "path", path, "faces", len(det.Faces), "dim", len(embedding))
	return embedding, len(det.Faces), nil
}

// AddReference stores the embedding of the face in path under its base filename.
func (r *Runner) AddReference(ctx context.Context, path string) (*Outcome, error) {
	return r.add(ctx, database.NamespaceReference, path)
}

// AddGroup stores the embedding of the face in path in the group namespace.
func (r *Runner) AddGroup(ctx context.Context, path string) (*Outcome, error) {
	return r.add(ctx, database.NamespaceGroup, path)
}

// Add stores path into ns.
func (r *Runner) Add(ctx context.Context, ns database.Namespace, path string) (*Outcome, error) {
	return r.add(ctx, ns, path)
}

func (r *Runner) add(ctx context.Context, ns database.Namespace, path string) (*Outcome, error) {
	return r.addAs(ctx, ns, path, filepath.Base(path))
}

// AddAs is Add with an explicit stored filename, used for uploads saved under a temporary name.
func (r *Runner) AddAs(ctx context.Context, ns database.Namespace, path, filename string) (*Outcome, error) {
	return r.addAs(ctx, ns, path, filename)
}

func (r *Runner) addAs(ctx context.Context, ns database.Namespace, path, filename string) (*Outcome, error) {
	outcome := &Outcome{Filename: filename, Namespace: ns}

	if !r.opts.Force {
		exists, err := r.store.Exists(ctx, ns, filename)
		if err != nil {
			return nil, stageErr(StageStore, path, err)
		}
		if exists {
			r.logger.Info("image already stored", "namespace", ns, "filename", filename)
			outcome.Status = StatusSkipped
			return outcome, nil
		}
	}

	embedding, faces, err := r.Embed(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := r.store.Upsert(ctx, ns, filename, embedding, r.opts.Model); err != nil {
		return nil, stageErr(StageStore, path, err)
	}

	outcome.Status = StatusAdded
	outcome.Faces = faces
	outcome.Dim = len(embedding)
	r.logger.Info("image added", "namespace", ns, "filename", filename, "faces", faces, "dim", len(embedding))
	return outcome, nil
}
