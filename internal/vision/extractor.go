package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"
)

// ErrExtractionFailure is returned when no embedding could be obtained for a face patch.
var ErrExtractionFailure = errors.New("embedding extraction failed")

// Extractor turns an aligned face patch into an identity embedding.
type Extractor interface {
	Extract(ctx context.Context, patch image.Image, model string) ([]float32, error)
}

// ExtractorClient calls POST /represent with a multipart "file" (PNG) and "model" field,
// answering {"embedding": [...], "model": "...", "dim": n}.
type ExtractorClient struct {
	client
}

// NewExtractorClient creates an embedding client for baseURL.
func NewExtractorClient(baseURL string, timeout time.Duration) *ExtractorClient {
	return &ExtractorClient{client: newClient(baseURL, timeout)}
}

type representResponse struct {
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
	Dim       int       `json:"dim"`
}

// Extract sends the patch losslessly and validates the returned vector.
func (c *ExtractorClient) Extract(ctx context.Context, patch image.Image, model string) ([]float32, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, patch); err != nil {
		return nil, fmt.Errorf("%w: encode patch: %w", ErrExtractionFailure, err)
	}

	body, err := c.postMultipartImage(ctx, "/represent", buf.Bytes(), map[string]string{"model": model})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailure, err)
	}

	var resp representResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %w", ErrExtractionFailure, err)
	}

	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding returned", ErrExtractionFailure)
	}
	if resp.Dim != 0 && resp.Dim != len(resp.Embedding) {
		return nil, fmt.Errorf("%w: service reported dim %d but sent %d values",
			ErrExtractionFailure, resp.Dim, len(resp.Embedding))
	}

	return resp.Embedding, nil
}
