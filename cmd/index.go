package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-matcher/internal/database"
	"github.com/kozaktomas/face-matcher/internal/facematch"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the saved HNSW search indexes",
	Long: `Manage the HNSW indexes used by 'search --index'.

Indexes are saved under HNSW_INDEX_PATH as <path>.reference.hnsw and
<path>.group.hnsw, each with a .meta file recording what it was built for.`,
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the HNSW indexes of both collections from the store",
	Args:  cobra.NoArgs,
	RunE:  runIndexRebuild,
}

var indexInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the metadata of the saved HNSW indexes",
	Args:  cobra.NoArgs,
	RunE:  runIndexInfo,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexRebuildCmd)
	indexCmd.AddCommand(indexInfoCmd)

	indexCmd.PersistentFlags().String("path", "", "Index base path (default HNSW_INDEX_PATH)")
	indexRebuildCmd.Flags().String("metric", "", "Distance the index is built for: cosine or euclidean (default METRIC)")
}

func indexBasePath(cmd *cobra.Command, configured string) (string, error) {
	base := configured
	if v := mustGetString(cmd, "path"); v != "" {
		base = v
	}
	if base == "" {
		return "", errors.New("HNSW_INDEX_PATH is not set; pass --path")
	}
	return base, nil
}

func runIndexRebuild(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	base, err := indexBasePath(cmd, cfg.Store.HNSWIndexPath)
	if err != nil {
		return err
	}
	if v := mustGetString(cmd, "metric"); v != "" {
		cfg.Run.Metric = v
	}
	metric, err := facematch.ParseMetric(cfg.Run.Metric)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	ctx := cmd.Context()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	bar := progressbar.NewOptions(len(database.Namespaces),
		progressbar.OptionSetDescription("Rebuilding indexes"),
		progressbar.OptionShowCount(),
		progressbar.OptionFullWidth(),
		progressbar.OptionClearOnFinish(),
	)

	type built struct {
		ns      database.Namespace
		count   int
		skipped int
		path    string
	}
	var results []built
	for _, ns := range database.Namespaces {
		idx, err := database.NewHNSWIndex(ns, metric)
		if err != nil {
			return err
		}
		count, skipped, err := idx.BuildFromStore(ctx, store)
		if err != nil {
			return fmt.Errorf("failed to build %s index: %w", ns, err)
		}
		for _, s := range skipped {
			logger.Warn("embedding left out of index", "namespace", ns, "filename", s.Filename, "error", s.Err)
		}
		path := database.IndexPath(base, ns)
		if err := idx.Save(path); err != nil {
			return fmt.Errorf("failed to save %s index: %w", ns, err)
		}
		results = append(results, built{ns: ns, count: count, skipped: len(skipped), path: path})
		_ = bar.Add(1)
	}

	for _, b := range results {
		if b.count == 0 {
			fmt.Printf("%s: empty, no index written\n", b.ns)
			continue
		}
		fmt.Printf("%s: %d embeddings indexed (%s, %d skipped) -> %s\n", b.ns, b.count, metric, b.skipped, b.path)
	}
	return nil
}

func runIndexInfo(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	base, err := indexBasePath(cmd, cfg.Store.HNSWIndexPath)
	if err != nil {
		return err
	}

	for _, ns := range database.Namespaces {
		path := database.IndexPath(base, ns)
		meta, err := database.LoadHNSWMetadata(path)
		if err != nil {
			fmt.Printf("%s: no saved index at %s\n", ns, path)
			continue
		}
		fmt.Printf("%s: %d embeddings, %s, built %s (%s ago)\n",
			ns, meta.Count, meta.Metric, meta.BuildTime.Format(time.DateTime),
			time.Since(meta.BuildTime).Round(time.Second))
	}
	return nil
}
