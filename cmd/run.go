package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-matcher/internal/config"
	"github.com/kozaktomas/face-matcher/internal/database"
	"github.com/kozaktomas/face-matcher/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the workflow selected by environment variables",
	Long: `Run the add or search workflow selected by MODE, IMAGE_TYPE and ADD_MODE.

  MODE=add IMAGE_TYPE=ref IMAGE_PATH=...                 add one reference image
  MODE=add IMAGE_TYPE=group ADD_MODE=single IMAGE_PATH=... add one group image
  MODE=add IMAGE_TYPE=group ADD_MODE=folder FOLDER_PATH=... add a folder of group images
  MODE=search IMAGE_PATH=...                             match against SEARCH_AGAINST

The whole configuration is validated before the store is opened.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("all", false, "In search mode, also print candidates that did not match")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	logger := newLogger(cfg)
	ctx := cmd.Context()

	var searchOpts runner.SearchOptions
	if cfg.Run.Mode == config.ModeSearch {
		opts, err := searchOptionsFromConfig(cfg)
		if err != nil {
			return err
		}
		searchOpts = opts
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)
	r := newRunner(cfg, store, logger)

	switch {
	case cfg.Run.Mode == config.ModeSearch:
		fmt.Printf("Processing image: %s\n", cfg.Run.ImagePath)
		report, err := r.Search(ctx, cfg.Run.ImagePath, searchOpts)
		if err != nil {
			return fmt.Errorf("search failed for '%s': %w", cfg.Run.ImagePath, err)
		}
		printSearchReport(report, mustGetBool(cmd, "all"))
		return nil
	case cfg.Run.ImageType == config.ImageTypeRef:
		return addSingle(ctx, r, database.NamespaceReference, cfg.Run.ImagePath, false)
	case cfg.Run.AddMode == config.AddModeFolder:
		return addFolder(ctx, r, database.NamespaceGroup, cfg.Run.FolderPath, false)
	default:
		return addSingle(ctx, r, database.NamespaceGroup, cfg.Run.ImagePath, false)
	}
}
