package facematch

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Metric selects how two embeddings are compared.
type Metric string

const (
	// MetricCosine scores pairs by cosine similarity; higher is more similar.
	MetricCosine Metric = "cosine"
	// MetricEuclidean scores pairs by L2 distance; lower is more similar.
	MetricEuclidean Metric = "euclidean"
)

var (
	ErrUnsupportedMetric = errors.New("unsupported metric, choose either 'cosine' or 'euclidean'")
	ErrDimensionMismatch = errors.New("embedding dimensions differ")
)

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	if err := m.Validate(); err != nil {
		return "", err
	}
	return m, nil
}

// Validate returns ErrUnsupportedMetric for anything but cosine and euclidean.
func (m Metric) Validate() error {
	switch m {
	case MetricCosine, MetricEuclidean:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedMetric, string(m))
}

// HigherIsBetter reports whether larger scores mean more similar faces.
func (m Metric) HigherIsBetter() bool {
	return m == MetricCosine
}

// CosineSimilarity returns 1 - cosine distance, in [-1, 1].
// Empty, mismatched or zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	return max(-1, min(1, similarity))
}

// EuclideanDistance returns the L2 norm of a - b. Mismatched lengths give +Inf.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Score compares two embeddings under metric.
func Score(metric Metric, a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	switch metric {
	case MetricCosine:
		return CosineSimilarity(a, b), nil
	case MetricEuclidean:
		return EuclideanDistance(a, b), nil
	}
	return 0, metric.Validate()
}

// Passes reports whether score clears threshold. A nil threshold passes everything.
func Passes(metric Metric, score float64, threshold *float64) bool {
	if threshold == nil {
		return true
	}
	if metric.HigherIsBetter() {
		return score >= *threshold
	}
	return score <= *threshold
}

// Match scores query against every candidate and keeps those passing threshold.
// The returned map has no order; use Rank for display.
func Match(query []float32, candidates map[string][]float32, metric Metric, threshold *float64) (map[string]float64, error) {
	if err := metric.Validate(); err != nil {
		return nil, err
	}

	matches := make(map[string]float64)
	for id, candidate := range candidates {
		score, err := Score(metric, query, candidate)
		if err != nil {
			return nil, fmt.Errorf("candidate %s: %w", id, err)
		}
		if Passes(metric, score, threshold) {
			matches[id] = score
		}
	}
	return matches, nil
}

// MatchReverse scores every candidate against query with the candidate as the first operand.
// Scores are identical to Match for the same pairs.
func MatchReverse(candidates map[string][]float32, query []float32, metric Metric, threshold *float64) (map[string]float64, error) {
	if err := metric.Validate(); err != nil {
		return nil, err
	}

	matches := make(map[string]float64)
	for id, candidate := range candidates {
		score, err := Score(metric, candidate, query)
		if err != nil {
			return nil, fmt.Errorf("candidate %s: %w", id, err)
		}
		if Passes(metric, score, threshold) {
			matches[id] = score
		}
	}
	return matches, nil
}

// Result is one ranked match.
type Result struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Rank orders matches best-first: descending for cosine, ascending for euclidean.
// Ties are broken by ID so output is stable.
func Rank(matches map[string]float64, metric Metric) []Result {
	results := make([]Result, 0, len(matches))
	for id, score := range matches {
		results = append(results, Result{ID: id, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			if metric.HigherIsBetter() {
				return results[i].Score > results[j].Score
			}
			return results[i].Score < results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	return results
}
