package runner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/kozaktomas/face-matcher/internal/database"
	"github.com/kozaktomas/face-matcher/internal/facematch"
)

// SearchOptions controls a search.
type SearchOptions struct {
	Metric    facematch.Metric
	Threshold *float64 // nil reports every candidate as a match
	// Against selects the namespace searched. The query itself is always stored as a reference.
	Against database.Namespace
	// UseIndex preselects candidates with an HNSW index before exact scoring.
	UseIndex bool
	// IndexPath is the HNSW base path; an index saved there for the namespace is loaded
	// instead of being rebuilt.
	IndexPath string
	TopK      int // 0 keeps every result
}

// SearchResult is one scored candidate.
type SearchResult struct {
	Filename string  `json:"filename"`
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Match    bool    `json:"match"`
}

// SearchReport is the outcome of a search, results ranked best first.
type SearchReport struct {
	Query      string                   `json:"query"`
	Against    database.Namespace       `json:"against"`
	Metric     facematch.Metric         `json:"metric"`
	Threshold  *float64                 `json:"threshold"`
	QueryAdded bool                     `json:"query_added"`
	Candidates int                      `json:"candidates"`
	Results    []SearchResult           `json:"results"`
	Skipped    []database.SkippedRecord `json:"-"`
}

// Matches returns only the results that passed the threshold.
func (s *SearchReport) Matches() []SearchResult {
	var out []SearchResult
	for _, r := range s.Results {
		if r.Match {
			out = append(out, r)
		}
	}
	return out
}

// Search makes sure queryPath is stored as a reference, then scores its embedding
// against every embedding in opts.Against.
func (r *Runner) Search(ctx context.Context, queryPath string, opts SearchOptions) (*SearchReport, error) {
	return r.SearchAs(ctx, queryPath, filepath.Base(queryPath), opts)
}

// SearchAs is Search with an explicit reference filename for the query.
func (r *Runner) SearchAs(ctx context.Context, queryPath, filename string, opts SearchOptions) (*SearchReport, error) {
	if opts.Metric == "" {
		opts.Metric = facematch.MetricCosine
	}
	if err := opts.Metric.Validate(); err != nil {
		return nil, err
	}
	if opts.Against == "" {
		opts.Against = database.NamespaceGroup
	}
	if err := opts.Against.Validate(); err != nil {
		return nil, err
	}

	report := &SearchReport{
		Query:     filename,
		Against:   opts.Against,
		Metric:    opts.Metric,
		Threshold: opts.Threshold,
	}

	query, added, err := r.ensureReference(ctx, queryPath, filename)
	if err != nil {
		return nil, err
	}
	report.QueryAdded = added

	candidates, skipped, err := r.store.GetAll(ctx, opts.Against)
	if err != nil {
		return nil, stageErr(StageStore, queryPath, err)
	}
	for _, s := range skipped {
		r.logger.Warn("skipping unreadable embedding", "namespace", opts.Against, "filename", s.Filename, "error", s.Err)
	}
	if opts.Against == database.NamespaceReference {
		delete(candidates, filename)
	}
	for name, emb := range candidates {
		if len(emb) != len(query) {
			r.logger.Warn("skipping embedding with a different dimension",
				"filename", name, "dim", len(emb), "want", len(query))
			skipped = append(skipped, database.SkippedRecord{Filename: name, Err: facematch.ErrDimensionMismatch})
			delete(candidates, name)
		}
	}
	report.Skipped = skipped

	if len(candidates) == 0 {
		r.logger.Warn("no candidates to search", "namespace", opts.Against)
		return report, nil
	}

	if opts.UseIndex {
		candidates, err = r.preselect(query, candidates, opts)
		if err != nil {
			return nil, err
		}
	}
	report.Candidates = len(candidates)

	scores, err := facematch.Match(query, candidates, opts.Metric, nil)
	if err != nil {
		return nil, err
	}
	for _, res := range facematch.Rank(scores, opts.Metric) {
		report.Results = append(report.Results, SearchResult{
			Filename: res.ID,
			Name:     facematch.DisplayName(res.ID),
			Score:    res.Score,
			Match:    facematch.Passes(opts.Metric, res.Score, opts.Threshold),
		})
	}
	if opts.TopK > 0 && len(report.Results) > opts.TopK {
		report.Results = report.Results[:opts.TopK]
	}

	r.logger.Info("search finished", "query", filename, "against", opts.Against,
		"candidates", report.Candidates, "matches", len(report.Matches()))
	return report, nil
}

// ensureReference returns the stored reference embedding for filename, computing and
// storing it from path first when it is missing.
func (r *Runner) ensureReference(ctx context.Context, path, filename string) ([]float32, bool, error) {
	rec, err := r.store.Get(ctx, database.NamespaceReference, filename)
	if err == nil && !r.opts.Force {
		return rec.Embedding, false, nil
	}
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, false, stageErr(StageStore, path, err)
	}

	r.logger.Info("query not stored as reference, adding it", "filename", filename)
	embedding, _, err := r.Embed(ctx, path)
	if err != nil {
		return nil, false, err
	}
	if err := r.store.Upsert(ctx, database.NamespaceReference, filename, embedding, r.opts.Model); err != nil {
		return nil, false, stageErr(StageStore, path, err)
	}
	return embedding, true, nil
}

// preselect narrows candidates to the nearest neighbours found by an HNSW index.
func (r *Runner) preselect(query []float32, candidates map[string][]float32, opts SearchOptions) (map[string][]float32, error) {
	idx, err := database.NewHNSWIndex(opts.Against, opts.Metric)
	if err != nil {
		return nil, err
	}

	loaded := false
	if opts.IndexPath != "" {
		path := database.IndexPath(opts.IndexPath, opts.Against)
		if meta, err := idx.Load(path); errors.Is(err, fs.ErrNotExist) {
			r.logger.Debug("no saved index, building one", "path", path)
		} else if err != nil {
			r.logger.Warn("saved index unusable, building one", "path", path, "error", err)
		} else {
			loaded = true
			r.logger.Debug("loaded saved index", "path", path, "count", meta.Count, "built", meta.BuildTime)
		}
	}
	if !loaded {
		idx.Build(candidates)
	}

	k := opts.TopK
	if k <= 0 {
		k = len(candidates)
	}
	names, err := idx.Search(query, k)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	// A saved index may hold names deleted since; keep only live candidates.
	selected := make(map[string][]float32, len(names))
	for _, name := range names {
		if emb, ok := candidates[name]; ok {
			selected[name] = emb
		}
	}
	r.logger.Debug("index preselected candidates", "selected", len(selected), "total", len(candidates))
	return selected, nil
}
