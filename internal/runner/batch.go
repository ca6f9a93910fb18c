package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/kozaktomas/face-matcher/internal/database"
)

// FolderExtensions are the files picked up by a folder add, matched case-insensitively.
var FolderExtensions = []string{".jpg", ".jpeg", ".png"}

// BatchReport summarizes a folder add.
type BatchReport struct {
	Folder   string     `json:"folder"`
	Total    int        `json:"total"`
	Added    int        `json:"added"`
	Skipped  int        `json:"skipped"`
	Failed   int        `json:"failed"`
	Outcomes []*Outcome `json:"outcomes"`
}

// ListImages returns the allow-listed image files directly inside dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read folder %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, allowed := range FolderExtensions {
			if ext == allowed {
				files = append(files, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// AddGroupFolder adds every allow-listed image in dir to the group namespace.
// A failing file is logged and counted and the batch moves on; only cancellation stops it early.
func (r *Runner) AddGroupFolder(ctx context.Context, dir string) (*BatchReport, error) {
	return r.AddFolder(ctx, database.NamespaceGroup, dir)
}

// AddFolder is AddGroupFolder for an arbitrary namespace.
func (r *Runner) AddFolder(ctx context.Context, ns database.Namespace, dir string) (*BatchReport, error) {
	files, err := ListImages(dir)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{Folder: dir, Total: len(files)}
	if len(files) == 0 {
		r.logger.Warn("no images found in folder", "folder", dir)
		return report, nil
	}
	r.logger.Info("adding images from folder", "folder", dir, "count", len(files), "namespace", ns)

	var bar *progressbar.ProgressBar
	if r.opts.Progress != nil {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetWriter(r.opts.Progress),
			progressbar.OptionSetDescription("Adding faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("folder add interrupted", "folder", dir, "processed", len(report.Outcomes))
			return report, err
		}

		outcome, err := r.add(ctx, ns, path)
		if err != nil {
			r.logger.Error("failed to add image", "path", path, "error", err)
			outcome = &Outcome{
				Filename:  filepath.Base(path),
				Namespace: ns,
				Status:    StatusFailed,
				Error:     err.Error(),
			}
		}

		switch outcome.Status {
		case StatusAdded:
			report.Added++
		case StatusSkipped:
			report.Skipped++
		case StatusFailed:
			report.Failed++
		}
		report.Outcomes = append(report.Outcomes, outcome)

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	r.logger.Info("finished adding images from folder",
		"folder", dir, "added", report.Added, "skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}
