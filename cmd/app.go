package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kozaktomas/face-matcher/internal/config"
	"github.com/kozaktomas/face-matcher/internal/constants"
	"github.com/kozaktomas/face-matcher/internal/database"
	"github.com/kozaktomas/face-matcher/internal/imaging"
	"github.com/kozaktomas/face-matcher/internal/runner"
	"github.com/kozaktomas/face-matcher/internal/vision"
)

// openStore validates the storage settings and opens the configured backend.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (database.EmbeddingWriter, error) {
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}
	store, err := database.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	return store, nil
}

func newLoader(cfg *config.Config, logger *slog.Logger) *imaging.Loader {
	return imaging.NewLoader(imaging.Options{
		RawDecoder:  cfg.Convert.RawDecoder,
		HEIFDecoder: cfg.Convert.HEIFDecoder,
	}, logger)
}

// newRunner wires the loader, the vision service clients and the store into a Runner.
func newRunner(cfg *config.Config, store database.EmbeddingWriter, logger *slog.Logger) *runner.Runner {
	timeout := time.Duration(cfg.Vision.TimeoutSeconds) * time.Second

	expectedDim := 0
	if info, ok := cfg.Model(cfg.Run.ModelName); ok {
		expectedDim = info.Dim
	} else {
		logger.Warn("model not in catalog, embedding dimension is not checked", "model", cfg.Run.ModelName)
	}

	return runner.New(
		store,
		newLoader(cfg, logger),
		vision.NewDetectorClient(cfg.Vision.DetectorURL, timeout),
		vision.NewExtractorClient(cfg.Vision.EmbeddingURL, timeout),
		runner.Options{
			Model:         cfg.Run.ModelName,
			ExpectedDim:   expectedDim,
			FaceSelection: cfg.Run.FaceSelection,
			MinConfidence: cfg.Run.MinConfidence,
			DedupeIoU:     constants.DedupeIoUThreshold,
			Progress:      os.Stderr,
		},
		logger,
	)
}

// closeStore closes the store and logs a failure instead of masking the command's error.
func closeStore(store database.EmbeddingWriter, logger *slog.Logger) {
	if err := store.Close(); err != nil {
		logger.Warn("failed to close store", "error", err)
	}
}

// outputJSON writes data as indented JSON to stdout.
func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// parseNamespaceArg accepts the CLI spellings ref/group as well as the stored namespace names.
func parseNamespaceArg(s string) (database.Namespace, error) {
	ns, err := database.ParseNamespace(s)
	if err != nil {
		return "", fmt.Errorf("invalid namespace '%s'. Use 'ref' or 'group'", s)
	}
	return ns, nil
}
