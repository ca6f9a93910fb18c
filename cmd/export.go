package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-matcher/internal/database"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every stored embedding to a JSON file",
	Long: `Write both collections to a versioned JSON file that 'import' can load
into any store backend.

Example:
  face-matcher export --output faces.json
  STORE_BACKEND=postgres face-matcher import --input faces.json`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import embeddings from a JSON file written by export",
	Long:  `Upsert every record of an export file into the configured store. Existing file names are overwritten.`,
	Args:  cobra.NoArgs,
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)

	exportCmd.Flags().StringP("output", "o", "", "Output file (default stdout)")
	importCmd.Flags().StringP("input", "i", "", "Export file to read")
	_ = importCmd.MarkFlagRequired("input")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	logger := newLogger(cfg)
	ctx := cmd.Context()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	data, err := database.Export(ctx, store)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	output := mustGetString(cmd, "output")
	if output == "" {
		return outputJSON(data)
	}

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	if err := os.WriteFile(output, encoded, 0o600); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	fmt.Printf("Exported %d reference and %d group images to %s\n", len(data.References), len(data.Groups), output)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	input := mustGetString(cmd, "input")
	raw, err := os.ReadFile(input) //nolint:gosec // path is given by the user
	if err != nil {
		return fmt.Errorf("reading export: %w", err)
	}
	var data database.ExportData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parsing export %s: %w", input, err)
	}

	cfg := loadConfig(cmd)
	logger := newLogger(cfg)
	ctx := cmd.Context()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	stats, err := database.Import(ctx, store, &data)
	if err != nil {
		return fmt.Errorf("import failed after %d reference and %d group images: %w", stats.References, stats.Groups, err)
	}
	fmt.Printf("Imported %d reference and %d group images from %s\n", stats.References, stats.Groups, input)
	return nil
}
