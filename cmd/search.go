package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-matcher/internal/config"
	"github.com/kozaktomas/face-matcher/internal/constants"
	"github.com/kozaktomas/face-matcher/internal/database"
	"github.com/kozaktomas/face-matcher/internal/facematch"
	"github.com/kozaktomas/face-matcher/internal/runner"
)

var searchCmd = &cobra.Command{
	Use:   "search <image>",
	Short: "Match the face in an image against the stored embeddings",
	Long: `Match the face in an image against the group collection (default) or
against all other reference images.

The query image is stored as a reference first when it is not in the
database yet. Results are ranked best first; cosine similarity must be at
least the threshold and euclidean distance at most the threshold.

Examples:
  face-matcher search ./people/alice.jpg
  face-matcher search ./people/alice.jpg --against reference --threshold 0.7
  face-matcher search ./people/alice.jpg --metric euclidean --index --top-k 5`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().String("metric", "", "Similarity metric: cosine or euclidean (default METRIC)")
	searchCmd.Flags().Float64("threshold", 0, "Match threshold (default SIMILARITY_THRESHOLD or the model default)")
	searchCmd.Flags().Bool("no-threshold", false, "Report every candidate as a match")
	searchCmd.Flags().String("against", "", "Collection to search: group or reference (default SEARCH_AGAINST)")
	searchCmd.Flags().Bool("index", false, "Preselect candidates with an HNSW index before exact scoring")
	searchCmd.Flags().Int("top-k", 0, "Keep only the best N results (0 keeps all; default 10 with --index)")
	searchCmd.Flags().Bool("all", false, "Also print candidates that did not match")
	searchCmd.Flags().Bool("json", false, "Output as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	if v := mustGetString(cmd, "metric"); v != "" {
		cfg.Run.Metric = v
	}
	if v := mustGetString(cmd, "against"); v != "" {
		cfg.Run.SearchAgainst = v
	}

	opts, err := searchOptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	switch {
	case mustGetBool(cmd, "no-threshold"):
		opts.Threshold = nil
	case cmd.Flags().Changed("threshold"):
		opts.Threshold = new(mustGetFloat64(cmd, "threshold"))
	}
	opts.UseIndex = mustGetBool(cmd, "index")
	opts.TopK = mustGetInt(cmd, "top-k")
	if opts.UseIndex && opts.TopK == 0 {
		opts.TopK = constants.DefaultTopK
	}

	logger := newLogger(cfg)
	ctx := cmd.Context()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	r := newRunner(cfg, store, logger)
	jsonOutput := mustGetBool(cmd, "json")
	if !jsonOutput {
		fmt.Printf("Processing image: %s\n", args[0])
	}

	report, err := r.Search(ctx, args[0], opts)
	if err != nil {
		return fmt.Errorf("search failed for '%s': %w", args[0], err)
	}
	if jsonOutput {
		return outputJSON(report)
	}
	printSearchReport(report, mustGetBool(cmd, "all"))
	return nil
}

// searchOptionsFromConfig maps the METRIC, SEARCH_AGAINST, SIMILARITY_THRESHOLD and
// HNSW_INDEX_PATH settings onto runner options.
func searchOptionsFromConfig(cfg *config.Config) (runner.SearchOptions, error) {
	metric, err := facematch.ParseMetric(cfg.Run.Metric)
	if err != nil {
		return runner.SearchOptions{}, err
	}
	against, err := database.ParseNamespace(cfg.Run.SearchAgainst)
	if err != nil {
		return runner.SearchOptions{}, fmt.Errorf("invalid SEARCH_AGAINST '%s'. Use 'group' or 'reference'", cfg.Run.SearchAgainst)
	}
	return runner.SearchOptions{
		Metric:    metric,
		Threshold: cfg.ThresholdFor(string(metric)),
		Against:   against,
		IndexPath: cfg.Store.HNSWIndexPath,
	}, nil
}

func printSearchReport(report *runner.SearchReport, all bool) {
	if report.QueryAdded {
		fmt.Printf("Reference image '%s' was not in the database and has been added.\n", report.Query)
	}
	if report.Candidates == 0 {
		fmt.Printf("No %s images found in the database.\n", report.Against)
		return
	}

	label := "Similarity"
	if report.Metric == facematch.MetricEuclidean {
		label = "Distance"
	}
	matched := 0
	for _, res := range report.Results {
		if res.Match {
			matched++
			fmt.Printf("Match found with '%s' (%s: %.2f)\n", res.Name, label, res.Score)
		} else if all {
			fmt.Printf("No match for '%s' (%s: %.2f)\n", res.Name, label, res.Score)
		}
	}
	if matched == 0 && !all {
		fmt.Printf("No matches among %d %s images.\n", report.Candidates, report.Against)
	}
	if len(report.Skipped) > 0 {
		fmt.Printf("%d stored records could not be decoded and were skipped.\n", len(report.Skipped))
	}
}
