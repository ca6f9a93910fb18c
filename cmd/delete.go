package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-matcher/internal/database"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <ref|group> <filename>...",
	Short: "Remove stored images from a collection",
	Long: `Remove one or more stored embeddings by file name.

Example:
  face-matcher delete group IMG_0042.jpg IMG_0043.jpg`,
	Args: cobra.MinimumNArgs(2),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	ns, err := parseNamespaceArg(args[0])
	if err != nil {
		return err
	}

	cfg := loadConfig(cmd)
	logger := newLogger(cfg)
	ctx := cmd.Context()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	var missing []string
	for _, filename := range args[1:] {
		exists, err := store.Exists(ctx, ns, filename)
		if err != nil {
			return fmt.Errorf("failed to look up '%s': %w", filename, err)
		}
		if !exists {
			missing = append(missing, filename)
			continue
		}
		if err := store.Delete(ctx, ns, filename); err != nil {
			return fmt.Errorf("failed to delete '%s': %w", filename, err)
		}
		fmt.Printf("Deleted '%s' from %s.\n", filename, ns.Table())
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %d of %d files not found in %s: %v",
			database.ErrNotFound, len(missing), len(args)-1, ns.Table(), missing)
	}
	return nil
}
