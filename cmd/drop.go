package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var dropCmd = &cobra.Command{
	Use:   "drop <ref|group>",
	Short: "Drop every stored image of a collection",
	Long: `Remove every stored embedding of the reference or group collection.

This cannot be undone; use export first to keep a copy.

Example:
  face-matcher drop group --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runDrop,
}

func init() {
	rootCmd.AddCommand(dropCmd)

	dropCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
}

func confirmAction(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func runDrop(cmd *cobra.Command, args []string) error {
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

	count, err := store.Count(ctx, ns)
	if err != nil {
		return fmt.Errorf("failed to count %s images: %w", ns, err)
	}

	if !mustGetBool(cmd, "yes") {
		prompt := fmt.Sprintf("Drop table '%s' with %d images? [y/N]: ", ns.Table(), count)
		if !confirmAction(prompt) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := store.Drop(ctx, ns); err != nil {
		return fmt.Errorf("error dropping table '%s': %w", ns.Table(), err)
	}
	fmt.Printf("Table '%s' dropped successfully.\n", ns.Table())
	return nil
}
