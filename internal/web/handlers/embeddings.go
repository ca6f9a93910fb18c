package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-matcher/internal/database"
	"github.com/kozaktomas/face-matcher/internal/runner"
)

// EmbeddingsHandler serves the per-namespace embedding collections.
type EmbeddingsHandler struct {
	store     database.EmbeddingWriter
	runner    *runner.Runner
	uploadDir string
	logger    *slog.Logger
}

// NewEmbeddingsHandler creates a new embeddings handler.
func NewEmbeddingsHandler(store database.EmbeddingWriter, r *runner.Runner, uploadDir string, logger *slog.Logger) *EmbeddingsHandler {
	return &EmbeddingsHandler{
		store:     store,
		runner:    r,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// EmbeddingSummary is the list view of a stored record.
type EmbeddingSummary struct {
	Filename  string `json:"filename"`
	Model     string `json:"model"`
	Dim       int    `json:"dim"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type addRequest struct {
	Path string `json:"path"`
}

func namespaceParam(r *http.Request) (database.Namespace, error) {
	return database.ParseNamespace(chi.URLParam(r, "namespace"))
}

// List returns every record of the namespace without the vectors.
func (h *EmbeddingsHandler) List(w http.ResponseWriter, r *http.Request) {
	ns, err := namespaceParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.store.List(r.Context(), ns)
	if err != nil {
		respondFailure(w, h.logger, err)
		return
	}

	items := make([]EmbeddingSummary, 0, len(records))
	for _, rec := range records {
		items = append(items, EmbeddingSummary{
			Filename:  rec.Filename,
			Model:     rec.Model,
			Dim:       rec.Dim(),
			CreatedAt: rec.CreatedAt.Format(time.RFC3339),
			UpdatedAt: rec.UpdatedAt.Format(time.RFC3339),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"namespace": ns,
		"count":     len(items),
		"items":     items,
	})
}

// Get returns one record including its embedding.
func (h *EmbeddingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ns, err := namespaceParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.store.Get(r.Context(), ns, chi.URLParam(r, "filename"))
	if err != nil {
		respondFailure(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// Delete removes one record.
func (h *EmbeddingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ns, err := namespaceParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	filename := chi.URLParam(r, "filename")
	exists, err := h.store.Exists(r.Context(), ns, filename)
	if err != nil {
		respondFailure(w, h.logger, err)
		return
	}
	if !exists {
		respondError(w, http.StatusNotFound, "embedding not found")
		return
	}

	if err := h.store.Delete(r.Context(), ns, filename); err != nil {
		respondFailure(w, h.logger, err)
		return
	}
	h.logger.Info("embedding deleted", "namespace", ns, "filename", sanitizeForLog(filename))
	w.WriteHeader(http.StatusNoContent)
}

// Create computes and stores the embedding of an uploaded file or of a server-side path.
func (h *EmbeddingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ns, err := namespaceParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	run := h.runner.WithForce(force)

	var outcome *runner.Outcome
	if isMultipart(r) {
		up, err := saveUploadedFile(r, h.uploadDir)
		if err != nil {
			respondUploadError(w, h.logger, err)
			return
		}
		defer up.Remove()
		outcome, err = run.AddAs(r.Context(), ns, up.Path, up.Filename)
		if err != nil {
			respondFailure(w, h.logger, err)
			return
		}
	} else {
		var req addRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
		if req.Path == "" {
			respondError(w, http.StatusBadRequest, "path is required")
			return
		}
		if _, err := os.Stat(req.Path); err != nil {
			respondError(w, http.StatusBadRequest, "path does not exist")
			return
		}
		outcome, err = run.AddAs(r.Context(), ns, req.Path, filepath.Base(req.Path))
		if err != nil {
			respondFailure(w, h.logger, err)
			return
		}
	}

	status := http.StatusCreated
	if outcome.Status == runner.StatusSkipped {
		status = http.StatusOK
	}
	respondJSON(w, status, outcome)
}

func respondUploadError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if errors.Is(err, errBadUpload) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	logger.Error("failed to store upload", "error", err)
	respondError(w, http.StatusInternalServerError, "failed to store upload")
}
