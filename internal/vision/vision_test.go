package vision

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/face-matcher/internal/facematch"
)

func solidImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 200, G: 150, B: 100, A: 255})
		}
	}
	return img
}

// setupMockServer serves a single endpoint and records the parsed multipart request.
func setupMockServer(t *testing.T, path string, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("failed to parse multipart form: %v", err)
		}
		handler(w, r)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestDetectorClient_Detect(t *testing.T) {
	server := setupMockServer(t, "/detect", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if len(data) == 0 {
			t.Error("empty upload")
		}
		if ct := header.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("Content-Type = %q, want image/jpeg", ct)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"faces": []map[string]any{{
				"box":        []float64{10, 20, 30, 40},
				"confidence": 0.99,
				"keypoints": map[string][]float64{
					"left_eye":  {15, 30},
					"right_eye": {30, 31},
					"nose":      {22, 38},
				},
			}},
		})
	})

	d := NewDetectorClient(server.URL, 5*time.Second)
	faces, err := d.Detect(context.Background(), solidImage(100, 80))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(faces) != 1 {
		t.Fatalf("expected 1 face, got %d", len(faces))
	}

	f := faces[0]
	if f.BBox != (facematch.BBox{X: 10, Y: 20, Width: 30, Height: 40}) {
		t.Errorf("bbox = %+v", f.BBox)
	}
	if f.Confidence != 0.99 {
		t.Errorf("confidence = %v", f.Confidence)
	}
	if p := f.Keypoints[facematch.KeypointRightEye]; p.X != 30 || p.Y != 31 {
		t.Errorf("right eye = %+v", p)
	}
}

func TestDetectorClient_ScalesLargeImages(t *testing.T) {
	server := setupMockServer(t, "/detect", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"faces": []map[string]any{{
				"box":        []float64{100, 100, 50, 50},
				"confidence": 0.9,
				"keypoints":  map[string][]float64{"left_eye": {110, 120}},
			}},
		})
	})

	// 3200 wide is downscaled by 2 before upload.
	faces, err := NewDetectorClient(server.URL, 0).Detect(context.Background(), solidImage(3200, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := faces[0].BBox; math.Abs(got.X-200) > 1e-9 || math.Abs(got.Width-100) > 1e-9 {
		t.Errorf("bbox not scaled back: %+v", got)
	}
	if p := faces[0].Keypoints[facematch.KeypointLeftEye]; math.Abs(p.X-220) > 1e-9 || math.Abs(p.Y-240) > 1e-9 {
		t.Errorf("keypoint not scaled back: %+v", p)
	}
}

func TestDetectorClient_SubImageKeepsRelativeCoordinates(t *testing.T) {
	server := setupMockServer(t, "/detect", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"faces": []map[string]any{{
				"box":        []float64{5, 6, 20, 20},
				"confidence": 0.9,
				"keypoints": map[string][]float64{
					"left_eye":  {10, 12},
					"right_eye": {20, 12},
				},
			}},
		})
	})

	sub := solidImage(100, 80).SubImage(image.Rect(30, 40, 90, 80))
	faces, err := NewDetectorClient(server.URL, 0).Detect(context.Background(), sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := faces[0].BBox; got != (facematch.BBox{X: 5, Y: 6, Width: 20, Height: 20}) {
		t.Errorf("bbox = %+v, want it relative to the image origin", got)
	}
	if p := faces[0].Keypoints[facematch.KeypointLeftEye]; p.X != 10 || p.Y != 12 {
		t.Errorf("left eye = %+v, want it relative to the image origin", p)
	}

	// The same positions must align against the same image without leaving its bounds.
	patch, err := facematch.AlignFace(sub, faces[0])
	if err != nil {
		t.Fatalf("AlignFace() error = %v", err)
	}
	if b := patch.Bounds(); b.Dx() != 20 || b.Dy() != 20 {
		t.Errorf("patch bounds = %v, want 20x20", b)
	}
}

func TestDetectorClient_NoFaces(t *testing.T) {
	server := setupMockServer(t, "/detect", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"faces": []}`))
	})

	faces, err := NewDetectorClient(server.URL, 0).Detect(context.Background(), solidImage(10, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(faces) != 0 {
		t.Errorf("expected no faces, got %d", len(faces))
	}
}

func TestDetectorClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, "boom"},
		{"bad json", http.StatusOK, "{not json"},
		{"malformed box", http.StatusOK, `{"faces": [{"box": [1, 2], "confidence": 1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupMockServer(t, "/detect", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := NewDetectorClient(server.URL, 0).Detect(context.Background(), solidImage(10, 10))
			if !errors.Is(err, ErrDetectionFailure) {
				t.Errorf("expected ErrDetectionFailure, got %v", err)
			}
		})
	}
}

func TestExtractorClient_Extract(t *testing.T) {
	server := setupMockServer(t, "/represent", func(w http.ResponseWriter, r *http.Request) {
		if got := r.FormValue("model"); got != "ArcFace" {
			t.Errorf("model = %q, want ArcFace", got)
		}
		_, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if ct := header.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("Content-Type = %q, want image/png", ct)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"embedding": []float32{0.1, 0.2, 0.3},
			"model":     "ArcFace",
			"dim":       3,
		})
	})

	emb, err := NewExtractorClient(server.URL, 0).Extract(context.Background(), solidImage(20, 20), "ArcFace")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(emb) != 3 || emb[2] != 0.3 {
		t.Errorf("embedding = %v", emb)
	}
}

func TestExtractorClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusBadGateway, "model not loaded"},
		{"empty embedding", http.StatusOK, `{"embedding": [], "dim": 0}`},
		{"dim mismatch", http.StatusOK, `{"embedding": [1, 2], "dim": 128}`},
		{"bad json", http.StatusOK, `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupMockServer(t, "/represent", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := NewExtractorClient(server.URL, 0).Extract(context.Background(), solidImage(4, 4), "Facenet")
			if !errors.Is(err, ErrExtractionFailure) {
				t.Errorf("expected ErrExtractionFailure, got %v", err)
			}
		})
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"short", []byte{0xFF}, "application/octet-stream"},
		{"unknown", []byte("GIF89a.."), "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMIMEType(tt.data); got != tt.expected {
				t.Errorf("detectMIMEType = %q, want %q", got, tt.expected)
			}
		})
	}
}
