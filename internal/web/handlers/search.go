package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kozaktomas/face-matcher/internal/config"
	"github.com/kozaktomas/face-matcher/internal/database"
	"github.com/kozaktomas/face-matcher/internal/facematch"
	"github.com/kozaktomas/face-matcher/internal/runner"
)

// SearchHandler matches a query image against the stored embeddings.
type SearchHandler struct {
	config    *config.Config
	runner    *runner.Runner
	uploadDir string
	logger    *slog.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(cfg *config.Config, r *runner.Runner, uploadDir string, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		config:    cfg,
		runner:    r,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// searchRequest carries the search parameters. Threshold nil falls back to configuration;
// NoThreshold reports every candidate as a match.
type searchRequest struct {
	Path        string   `json:"path"`
	Metric      string   `json:"metric"`
	Threshold   *float64 `json:"threshold"`
	NoThreshold bool     `json:"no_threshold"`
	Against     string   `json:"against"`
	TopK        int      `json:"top_k"`
	UseIndex    bool     `json:"use_index"`
}

// Search handles POST /api/v1/search with a JSON body or a multipart upload.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	var queryPath, filename string

	if isMultipart(r) {
		up, err := saveUploadedFile(r, h.uploadDir)
		if err != nil {
			respondUploadError(w, h.logger, err)
			return
		}
		defer up.Remove()
		queryPath, filename = up.Path, up.Filename
		req = searchRequestFromForm(r)
	} else {
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
		queryPath, filename = req.Path, filepath.Base(req.Path)
	}

	opts, err := h.searchOptions(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.runner.SearchAs(r.Context(), queryPath, filename, opts)
	if err != nil {
		respondFailure(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *SearchHandler) searchOptions(req searchRequest) (runner.SearchOptions, error) {
	metricName := req.Metric
	if metricName == "" {
		metricName = h.config.Run.Metric
	}
	metric, err := facematch.ParseMetric(metricName)
	if err != nil {
		return runner.SearchOptions{}, err
	}

	against := h.config.Run.SearchAgainst
	if req.Against != "" {
		against = req.Against
	}
	ns, err := database.ParseNamespace(against)
	if err != nil {
		return runner.SearchOptions{}, err
	}

	threshold := req.Threshold
	if threshold == nil && !req.NoThreshold {
		threshold = h.config.ThresholdFor(string(metric))
	}

	return runner.SearchOptions{
		Metric:    metric,
		Threshold: threshold,
		Against:   ns,
		UseIndex:  req.UseIndex,
		IndexPath: h.config.Store.HNSWIndexPath,
		TopK:      req.TopK,
	}, nil
}

// searchRequestFromForm reads the optional search fields sent next to an upload.
func searchRequestFromForm(r *http.Request) searchRequest {
	req := searchRequest{
		Metric:  r.FormValue("metric"),
		Against: r.FormValue("against"),
	}
	if v, err := strconv.ParseFloat(r.FormValue("threshold"), 64); err == nil {
		req.Threshold = &v
	}
	req.NoThreshold, _ = strconv.ParseBool(r.FormValue("no_threshold"))
	req.TopK, _ = strconv.Atoi(r.FormValue("top_k"))
	req.UseIndex, _ = strconv.ParseBool(r.FormValue("use_index"))
	return req
}
