package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-matcher/internal/config"
	"github.com/kozaktomas/face-matcher/internal/database/mock"
	"github.com/kozaktomas/face-matcher/internal/facematch"
	"github.com/kozaktomas/face-matcher/internal/imaging"
	"github.com/kozaktomas/face-matcher/internal/logger"
	"github.com/kozaktomas/face-matcher/internal/runner"
)

// stubLoader ignores file contents unless they start with "corrupt".
type stubLoader struct{}

func (stubLoader) Load(ctx context.Context, path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil || strings.HasPrefix(string(data), "corrupt") {
		return nil, imaging.ErrDecodeFailure
	}
	return image.NewRGBA(image.Rect(0, 0, 100, 100)), nil
}

type stubDetector struct {
	faces []facematch.DetectedFace
}

func (d *stubDetector) Detect(ctx context.Context, img image.Image) ([]facematch.DetectedFace, error) {
	return d.faces, nil
}

type stubExtractor struct {
	embedding []float32
}

func (e *stubExtractor) Extract(ctx context.Context, patch image.Image, model string) ([]float32, error) {
	return e.embedding, nil
}

func stubFace() facematch.DetectedFace {
	return facematch.DetectedFace{
		BBox:       facematch.BBox{X: 20, Y: 20, Width: 60, Height: 60},
		Confidence: 0.99,
		Keypoints: map[string]facematch.Point{
			facematch.KeypointLeftEye:  {X: 35, Y: 40},
			facematch.KeypointRightEye: {X: 65, Y: 40},
		},
	}
}

type testEnv struct {
	cfg      *config.Config
	store    *mock.MockStore
	detector *stubDetector
	runner   *runner.Runner
	dir      string
}

// newTestEnv wires a runner over the mock store with stub vision services.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	threshold := 0.8
	cfg := &config.Config{
		Run: config.RunConfig{
			Metric:        "cosine",
			SearchAgainst: "group",
			ModelName:     "Facenet",
			Threshold:     &threshold,
		},
		Web: config.WebConfig{UploadDir: filepath.Join(dir, "uploads")},
	}
	store := mock.NewMockStore()
	detector := &stubDetector{faces: []facematch.DetectedFace{stubFace()}}
	r := runner.New(store, stubLoader{}, detector, &stubExtractor{embedding: []float32{1, 0, 0}},
		runner.Options{Model: "Facenet"}, logger.Nop())
	return &testEnv{cfg: cfg, store: store, detector: detector, runner: r, dir: dir}
}

// writeImage creates a file that stubLoader accepts.
func (e *testEnv) writeImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, []byte("image"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// jsonRequest builds a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// multipartRequest builds a request uploading content as the "file" field
func multipartRequest(t *testing.T, path, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
