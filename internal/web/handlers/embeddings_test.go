package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/kozaktomas/face-matcher/internal/database"
	"github.com/kozaktomas/face-matcher/internal/logger"
	"github.com/kozaktomas/face-matcher/internal/runner"
)

func newEmbeddingsHandler(env *testEnv) *EmbeddingsHandler {
	return NewEmbeddingsHandler(env.store, env.runner, env.cfg.Web.UploadDir, logger.Nop())
}

func TestEmbeddingsHandler_List(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_ = env.store.Upsert(ctx, database.NamespaceGroup, "b.jpg", []float32{1, 2, 3}, "Facenet")
	_ = env.store.Upsert(ctx, database.NamespaceGroup, "a.jpg", []float32{1, 2, 3}, "Facenet")
	h := newEmbeddingsHandler(env)

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/group/embeddings", nil),
		map[string]string{"namespace": "group"})
	recorder := httptest.NewRecorder()
	h.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var result struct {
		Count int                `json:"count"`
		Items []EmbeddingSummary `json:"items"`
	}
	parseJSONResponse(t, recorder, &result)
	if result.Count != 2 || result.Items[0].Filename != "a.jpg" || result.Items[0].Dim != 3 {
		t.Errorf("unexpected list: %+v", result)
	}
}

func TestEmbeddingsHandler_InvalidNamespace(t *testing.T) {
	env := newTestEnv(t)
	h := newEmbeddingsHandler(env)

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/people/embeddings", nil),
		map[string]string{"namespace": "people"})
	recorder := httptest.NewRecorder()
	h.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestEmbeddingsHandler_GetAndDelete(t *testing.T) {
	env := newTestEnv(t)
	_ = env.store.Upsert(context.Background(), database.NamespaceReference, "alice.jpg", []float32{0.5, 0.5}, "Facenet")
	h := newEmbeddingsHandler(env)
	params := map[string]string{"namespace": "ref", "filename": "alice.jpg"}

	recorder := httptest.NewRecorder()
	h.Get(recorder, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), params))
	assertStatusCode(t, recorder, http.StatusOK)
	var rec database.EmbeddingRecord
	parseJSONResponse(t, recorder, &rec)
	if rec.Filename != "alice.jpg" || len(rec.Embedding) != 2 {
		t.Errorf("unexpected record: %+v", rec)
	}

	recorder = httptest.NewRecorder()
	h.Delete(recorder, requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/", nil), params))
	assertStatusCode(t, recorder, http.StatusNoContent)

	recorder = httptest.NewRecorder()
	h.Get(recorder, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), params))
	assertStatusCode(t, recorder, http.StatusNotFound)

	recorder = httptest.NewRecorder()
	h.Delete(recorder, requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/", nil), params))
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestEmbeddingsHandler_CreateFromPath(t *testing.T) {
	env := newTestEnv(t)
	h := newEmbeddingsHandler(env)
	path := env.writeImage(t, "party.jpg")
	params := map[string]string{"namespace": "group"}

	recorder := httptest.NewRecorder()
	h.Create(recorder, requestWithChiParams(jsonRequest(t, http.MethodPost, "/", map[string]string{"path": path}), params))
	assertStatusCode(t, recorder, http.StatusCreated)

	var outcome runner.Outcome
	parseJSONResponse(t, recorder, &outcome)
	if outcome.Status != runner.StatusAdded || outcome.Filename != "party.jpg" {
		t.Errorf("unexpected outcome: %+v", outcome)
	}

	// Second add without force is a no-op.
	recorder = httptest.NewRecorder()
	h.Create(recorder, requestWithChiParams(jsonRequest(t, http.MethodPost, "/", map[string]string{"path": path}), params))
	assertStatusCode(t, recorder, http.StatusOK)

	// With force it is recomputed.
	recorder = httptest.NewRecorder()
	h.Create(recorder, requestWithChiParams(jsonRequest(t, http.MethodPost, "/?force=true", map[string]string{"path": path}), params))
	assertStatusCode(t, recorder, http.StatusCreated)
	if env.store.UpsertCalls != 2 {
		t.Errorf("expected 2 upserts, got %d", env.store.UpsertCalls)
	}
}

func TestEmbeddingsHandler_CreateErrors(t *testing.T) {
	env := newTestEnv(t)
	h := newEmbeddingsHandler(env)
	params := map[string]string{"namespace": "group"}

	tests := []struct {
		name   string
		req    func() *http.Request
		setup  func()
		status int
	}{
		{
			name:   "missing path",
			req:    func() *http.Request { return jsonRequest(t, http.MethodPost, "/", map[string]string{}) },
			status: http.StatusBadRequest,
		},
		{
			name: "nonexistent path",
			req: func() *http.Request {
				return jsonRequest(t, http.MethodPost, "/", map[string]string{"path": "/does/not/exist.jpg"})
			},
			status: http.StatusBadRequest,
		},
		{
			name: "no face",
			req: func() *http.Request {
				return jsonRequest(t, http.MethodPost, "/", map[string]string{"path": env.writeImage(t, "empty.jpg")})
			},
			setup:  func() { env.detector.faces = nil },
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "corrupt upload",
			req:    func() *http.Request { return multipartRequest(t, "/", "bad.jpg", "corrupt", nil) },
			status: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			recorder := httptest.NewRecorder()
			h.Create(recorder, requestWithChiParams(tt.req(), params))
			assertStatusCode(t, recorder, tt.status)
		})
	}
}

func TestEmbeddingsHandler_CreateFromUpload(t *testing.T) {
	env := newTestEnv(t)
	h := newEmbeddingsHandler(env)

	req := multipartRequest(t, "/", "../../alice.jpg", "image", nil)
	recorder := httptest.NewRecorder()
	h.Create(recorder, requestWithChiParams(req, map[string]string{"namespace": "reference"}))
	assertStatusCode(t, recorder, http.StatusCreated)

	ok, _ := env.store.Exists(context.Background(), database.NamespaceReference, "alice.jpg")
	if !ok {
		t.Error("upload should be stored under its base filename")
	}

	entries, _ := os.ReadDir(env.cfg.Web.UploadDir)
	if len(entries) != 0 {
		t.Errorf("upload dir not cleaned up: %d files left", len(entries))
	}
}
