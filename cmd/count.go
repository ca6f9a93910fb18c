package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-matcher/internal/database"
)

var countCmd = &cobra.Command{
	Use:   "count [ref|group]",
	Short: "Show the number of stored images",
	Long:  `Displays the number of stored embeddings in one collection, or in both when no collection is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCount,
}

func init() {
	rootCmd.AddCommand(countCmd)
}

func runCount(cmd *cobra.Command, args []string) error {
	namespaces := database.Namespaces
	if len(args) == 1 {
		ns, err := parseNamespaceArg(args[0])
		if err != nil {
			return err
		}
		namespaces = []database.Namespace{ns}
	}

	cfg := loadConfig(cmd)
	logger := newLogger(cfg)
	ctx := cmd.Context()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	for _, ns := range namespaces {
		n, err := store.Count(ctx, ns)
		if err != nil {
			return fmt.Errorf("failed to count %s images: %w", ns, err)
		}
		fmt.Printf("%-10s %d\n", ns+":", n)
	}
	return nil
}
