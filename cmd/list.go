package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-matcher/internal/facematch"
)

var listCmd = &cobra.Command{
	Use:   "list <ref|group>",
	Short: "List the images stored in a collection",
	Long: `List the file names stored in the reference or group collection with
their model, embedding size and last update time.

--name filters by person name, ignoring case, diacritics and separators,
so "jose" matches "José_Garcia.jpg".`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().String("name", "", "Only list file names matching this person name")
	listCmd.Flags().Bool("json", false, "Output as JSON")
}

type listItem struct {
	Filename  string    `json:"filename"`
	Name      string    `json:"name"`
	Model     string    `json:"model"`
	Dim       int       `json:"dim"`
	UpdatedAt time.Time `json:"updated_at"`
}

func runList(cmd *cobra.Command, args []string) error {
	ns, err := parseNamespaceArg(args[0])
	if err != nil {
		return err
	}
	query := mustGetString(cmd, "name")

	cfg := loadConfig(cmd)
	logger := newLogger(cfg)
	ctx := cmd.Context()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	records, err := store.List(ctx, ns)
	if err != nil {
		return fmt.Errorf("failed to list %s images: %w", ns, err)
	}

	items := make([]listItem, 0, len(records))
	for _, rec := range records {
		if !facematch.FilenameMatches(rec.Filename, query) {
			continue
		}
		items = append(items, listItem{
			Filename:  rec.Filename,
			Name:      facematch.DisplayName(rec.Filename),
			Model:     rec.Model,
			Dim:       rec.Dim(),
			UpdatedAt: rec.UpdatedAt,
		})
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(items)
	}

	if len(items) == 0 {
		fmt.Printf("No %s images found.\n", ns)
		return nil
	}
	fmt.Printf("%-40s %-12s %5s  %s\n", "FILENAME", "MODEL", "DIM", "UPDATED")
	for _, it := range items {
		fmt.Printf("%-40s %-12s %5d  %s\n", it.Filename, it.Model, it.Dim, it.UpdatedAt.Format(time.DateTime))
	}
	fmt.Printf("\n%d %s images\n", len(items), ns)
	return nil
}
