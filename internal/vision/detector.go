package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/kozaktomas/face-matcher/internal/constants"
	"github.com/kozaktomas/face-matcher/internal/facematch"
	"github.com/kozaktomas/face-matcher/internal/imaging"
)

// ErrDetectionFailure wraps transport and protocol errors from the detector service.
var ErrDetectionFailure = errors.New("face detection failed")

// Detector finds faces in an image. An empty result is not an error.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]facematch.DetectedFace, error)
}

// DetectorClient calls an MTCNN-style service: POST /detect with a multipart "file",
// answering {"faces": [{"box": [x, y, w, h], "confidence": c, "keypoints": {"left_eye": [x, y], ...}}]}.
type DetectorClient struct {
	client
}

// NewDetectorClient creates a detector client for baseURL.
func NewDetectorClient(baseURL string, timeout time.Duration) *DetectorClient {
	return &DetectorClient{client: newClient(baseURL, timeout)}
}

type detectResponse struct {
	Faces []detectedFace `json:"faces"`
}

type detectedFace struct {
	Box        []float64             `json:"box"`
	Confidence float64               `json:"confidence"`
	Keypoints  map[string][2]float64 `json:"keypoints"`
}

// Detect uploads img (downscaled if large) and converts the answer to source pixel coordinates,
// relative to the top-left corner of img.Bounds() like every facematch position.
func (c *DetectorClient) Detect(ctx context.Context, img image.Image) ([]facematch.DetectedFace, error) {
	small, scale := imaging.ResizeToFit(img, constants.MaxDetectSide)
	data, err := imaging.EncodeJPEG(small, 95)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDetectionFailure, err)
	}

	body, err := c.postMultipartImage(ctx, "/detect", data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDetectionFailure, err)
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %w", ErrDetectionFailure, err)
	}

	faces := make([]facematch.DetectedFace, 0, len(resp.Faces))
	for i, f := range resp.Faces {
		if len(f.Box) != 4 {
			return nil, fmt.Errorf("%w: face %d has a malformed box %v", ErrDetectionFailure, i, f.Box)
		}
		face := facematch.DetectedFace{
			BBox: facematch.BBox{
				X:      f.Box[0] / scale,
				Y:      f.Box[1] / scale,
				Width:  f.Box[2] / scale,
				Height: f.Box[3] / scale,
			},
			Confidence: f.Confidence,
			Keypoints:  make(map[string]facematch.Point, len(f.Keypoints)),
		}
		for name, p := range f.Keypoints {
			face.Keypoints[name] = facematch.Point{
				X: p[0] / scale,
				Y: p[1] / scale,
			}
		}
		faces = append(faces, face)
	}
	return faces, nil
}
