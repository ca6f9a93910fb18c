package runner

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-matcher/internal/database"
	"github.com/kozaktomas/face-matcher/internal/facematch"
)

func seed(t *testing.T, store database.EmbeddingWriter, ns database.Namespace, records map[string][]float32) {
	t.Helper()
	for name, emb := range records {
		if err := store.Upsert(context.Background(), ns, name, emb, "Facenet"); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSearchAgainstGroup(t *testing.T) {
	ctx := context.Background()
	query := writeFile(t, t.TempDir(), "alice.jpg", "image")

	f := newFixture(t, Options{})
	seed(t, f.store, database.NamespaceGroup, map[string][]float32{
		"party.jpg":   {0.9, 0.1, 0},
		"wedding.jpg": {1, 0, 0},
		"beach.jpg":   {0, 1, 0},
	})

	threshold := 0.8
	report, err := f.runner.Search(ctx, query, SearchOptions{
		Metric:    facematch.MetricCosine,
		Threshold: &threshold,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if !report.QueryAdded {
		t.Error("QueryAdded = false, want true for a new query")
	}
	if ok, _ := f.store.Exists(ctx, database.NamespaceReference, "alice.jpg"); !ok {
		t.Error("query was not stored as a reference")
	}
	if report.Candidates != 3 || len(report.Results) != 3 {
		t.Fatalf("report candidates=%d results=%d, want 3/3", report.Candidates, len(report.Results))
	}
	if report.Results[0].Filename != "wedding.jpg" || report.Results[1].Filename != "party.jpg" {
		t.Errorf("ranking = %v", report.Results)
	}

	matches := report.Matches()
	if len(matches) != 2 {
		t.Errorf("Matches() = %v, want 2", matches)
	}
	if report.Results[2].Match {
		t.Error("beach.jpg should not pass the threshold")
	}
	if report.Results[0].Name != "wedding" {
		t.Errorf("Name = %q, want display name", report.Results[0].Name)
	}

	t.Run("stored query is reused", func(t *testing.T) {
		calls := f.extractor.calls
		report, err := f.runner.Search(ctx, query, SearchOptions{Metric: facematch.MetricCosine})
		if err != nil {
			t.Fatal(err)
		}
		if report.QueryAdded || f.extractor.calls != calls {
			t.Error("stored reference should not be recomputed")
		}
		if len(report.Matches()) != 3 {
			t.Errorf("nil threshold should match every candidate, got %d", len(report.Matches()))
		}
	})
}

func TestSearchAgainstReferences(t *testing.T) {
	ctx := context.Background()
	query := writeFile(t, t.TempDir(), "group_photo.jpg", "image")

	f := newFixture(t, Options{})
	seed(t, f.store, database.NamespaceReference, map[string][]float32{
		"bob.jpg":   {1, 0, 0},
		"carol.jpg": {0, 0, 1},
	})

	report, err := f.runner.Search(ctx, query, SearchOptions{Against: database.NamespaceReference})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for _, r := range report.Results {
		if r.Filename == "group_photo.jpg" {
			t.Error("query must not be matched against itself")
		}
	}
	if len(report.Results) != 2 {
		t.Errorf("results = %v, want bob and carol", report.Results)
	}
}

func TestSearchEuclideanAndTopK(t *testing.T) {
	query := writeFile(t, t.TempDir(), "q.jpg", "image")
	f := newFixture(t, Options{})
	seed(t, f.store, database.NamespaceGroup, map[string][]float32{
		"near.jpg": {1, 0.1, 0},
		"mid.jpg":  {1, 1, 0},
		"far.jpg":  {-5, 0, 0},
	})

	threshold := 2.0
	report, err := f.runner.Search(context.Background(), query, SearchOptions{
		Metric:    facematch.MetricEuclidean,
		Threshold: &threshold,
		TopK:      2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Results) != 2 {
		t.Fatalf("TopK=2 returned %d results", len(report.Results))
	}
	if report.Results[0].Filename != "near.jpg" || report.Results[1].Filename != "mid.jpg" {
		t.Errorf("ranking = %v, want ascending distance", report.Results)
	}
	if !report.Results[0].Match || !report.Results[1].Match {
		t.Errorf("both nearest should pass threshold 2.0: %v", report.Results)
	}
}

func TestSearchSkipsBadCandidates(t *testing.T) {
	query := writeFile(t, t.TempDir(), "q.jpg", "image")
	f := newFixture(t, Options{})
	seed(t, f.store, database.NamespaceGroup, map[string][]float32{
		"ok.jpg":    {1, 0, 0},
		"wrong.jpg": {1, 0},
	})
	f.store.AddCorrupt(database.NamespaceGroup, "broken.jpg", errors.New("bad json"))

	report, err := f.runner.Search(context.Background(), query, SearchOptions{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(report.Results) != 1 || report.Results[0].Filename != "ok.jpg" {
		t.Errorf("results = %v, want only ok.jpg", report.Results)
	}
	if len(report.Skipped) != 2 {
		t.Errorf("skipped = %v, want broken.jpg and wrong.jpg", report.Skipped)
	}
}

func TestSearchWithIndex(t *testing.T) {
	query := writeFile(t, t.TempDir(), "q.jpg", "image")
	f := newFixture(t, Options{})
	seed(t, f.store, database.NamespaceGroup, map[string][]float32{
		"a.jpg": {1, 0, 0},
		"b.jpg": {0.8, 0.2, 0},
		"c.jpg": {0, 1, 0},
		"d.jpg": {0, 0, 1},
	})

	report, err := f.runner.Search(context.Background(), query, SearchOptions{
		UseIndex:  true,
		IndexPath: filepath.Join(t.TempDir(), "faces"),
		TopK:      1,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(report.Results) != 1 || report.Results[0].Filename != "a.jpg" {
		t.Errorf("results = %v, want a.jpg", report.Results)
	}
}

func TestSearchUsesSavedIndex(t *testing.T) {
	query := writeFile(t, t.TempDir(), "q.jpg", "image")
	f := newFixture(t, Options{})
	seed(t, f.store, database.NamespaceGroup, map[string][]float32{
		"a.jpg": {1, 0, 0},
		"b.jpg": {0.8, 0.2, 0},
		"c.jpg": {0, 1, 0},
	})

	// The saved index only knows c.jpg, so a loaded index can only preselect c.jpg
	// while a rebuilt one would rank a.jpg first.
	base := filepath.Join(t.TempDir(), "faces")
	saved, err := database.NewHNSWIndex(database.NamespaceGroup, facematch.MetricCosine)
	if err != nil {
		t.Fatal(err)
	}
	saved.Build(map[string][]float32{"c.jpg": {0, 1, 0}})
	if err := saved.Save(database.IndexPath(base, database.NamespaceGroup)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	report, err := f.runner.Search(context.Background(), query, SearchOptions{
		UseIndex:  true,
		IndexPath: base,
		TopK:      1,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if report.Candidates != 1 || len(report.Results) != 1 || report.Results[0].Filename != "c.jpg" {
		t.Errorf("results = %v (candidates %d), want only c.jpg from the saved index",
			report.Results, report.Candidates)
	}
}

func TestSearchIndexForOtherMetricIsRebuilt(t *testing.T) {
	query := writeFile(t, t.TempDir(), "q.jpg", "image")
	f := newFixture(t, Options{})
	seed(t, f.store, database.NamespaceGroup, map[string][]float32{
		"a.jpg": {1, 0, 0},
		"c.jpg": {0, 1, 0},
	})

	base := filepath.Join(t.TempDir(), "faces")
	saved, _ := database.NewHNSWIndex(database.NamespaceGroup, facematch.MetricEuclidean)
	saved.Build(map[string][]float32{"c.jpg": {0, 1, 0}})
	if err := saved.Save(database.IndexPath(base, database.NamespaceGroup)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	report, err := f.runner.Search(context.Background(), query, SearchOptions{
		Metric:    facematch.MetricCosine,
		UseIndex:  true,
		IndexPath: base,
		TopK:      1,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(report.Results) != 1 || report.Results[0].Filename != "a.jpg" {
		t.Errorf("results = %v, want a.jpg from a rebuilt index", report.Results)
	}
}

func TestSearchValidation(t *testing.T) {
	query := writeFile(t, t.TempDir(), "q.jpg", "image")
	f := newFixture(t, Options{})

	_, err := f.runner.Search(context.Background(), query, SearchOptions{Metric: "manhattan"})
	if !errors.Is(err, facematch.ErrUnsupportedMetric) {
		t.Errorf("error = %v, want ErrUnsupportedMetric", err)
	}
	if f.extractor.calls != 0 {
		t.Error("invalid metric must be rejected before any work")
	}

	_, err = f.runner.Search(context.Background(), query, SearchOptions{Against: "everything"})
	if !errors.Is(err, database.ErrInvalidNamespace) {
		t.Errorf("error = %v, want ErrInvalidNamespace", err)
	}
}

func TestSearchEmptyStore(t *testing.T) {
	query := writeFile(t, t.TempDir(), "q.jpg", "image")
	f := newFixture(t, Options{})

	report, err := f.runner.Search(context.Background(), query, SearchOptions{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(report.Results) != 0 {
		t.Errorf("results = %v, want none", report.Results)
	}
}
