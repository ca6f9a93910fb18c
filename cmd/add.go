package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-matcher/internal/database"
	"github.com/kozaktomas/face-matcher/internal/runner"
)

var addCmd = &cobra.Command{
	Use:   "add <ref|group> <path>",
	Short: "Compute and store the face embedding of an image or a folder of images",
	Long: `Detect the face in an image, align it, compute its embedding and store it
in the reference or group collection, keyed by the file name.

Images already stored under the same file name are skipped unless --force is set.
With --folder, every .jpg, .jpeg and .png file directly inside the folder is added;
a failing file is reported and the rest of the folder is still processed.

Examples:
  face-matcher add ref ./people/alice.jpg
  face-matcher add group ./party --folder`,
	Args: cobra.ExactArgs(2),
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)

	addCmd.Flags().Bool("folder", false, "Treat <path> as a folder and add every image in it")
	addCmd.Flags().Bool("force", false, "Recompute embeddings that are already stored")
	addCmd.Flags().Bool("json", false, "Output as JSON")
}

func runAdd(cmd *cobra.Command, args []string) error {
	ns, err := parseNamespaceArg(args[0])
	if err != nil {
		return err
	}
	path := args[1]
	folder := mustGetBool(cmd, "folder")
	jsonOutput := mustGetBool(cmd, "json")

	cfg := loadConfig(cmd)
	logger := newLogger(cfg)
	ctx := cmd.Context()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	r := newRunner(cfg, store, logger).WithForce(mustGetBool(cmd, "force"))
	if folder {
		return addFolder(ctx, r, ns, path, jsonOutput)
	}
	return addSingle(ctx, r, ns, path, jsonOutput)
}

func addSingle(ctx context.Context, r *runner.Runner, ns database.Namespace, path string, jsonOutput bool) error {
	outcome, err := r.Add(ctx, ns, path)
	if err != nil {
		return fmt.Errorf("error processing '%s': %w", path, err)
	}
	if jsonOutput {
		return outputJSON(outcome)
	}
	printOutcome(outcome)
	return nil
}

func addFolder(ctx context.Context, r *runner.Runner, ns database.Namespace, dir string, jsonOutput bool) error {
	if !jsonOutput {
		fmt.Printf("Adding images from folder '%s'...\n", dir)
	}
	report, err := r.AddFolder(ctx, ns, dir)
	if report != nil && jsonOutput {
		if jerr := outputJSON(report); jerr != nil {
			return jerr
		}
	}
	if err != nil {
		return err
	}
	if jsonOutput {
		return nil
	}

	if report.Total == 0 {
		fmt.Printf("No images found in folder '%s'.\n", dir)
		return nil
	}
	for _, o := range report.Outcomes {
		if o.Status == runner.StatusFailed {
			fmt.Printf("  FAILED %s: %s\n", o.Filename, o.Error)
		}
	}
	fmt.Printf("Finished adding images from '%s': %d added, %d skipped, %d failed.\n",
		dir, report.Added, report.Skipped, report.Failed)
	return nil
}

func namespaceLabel(ns database.Namespace) string {
	if ns == database.NamespaceGroup {
		return "Group image"
	}
	return "Reference image"
}

func printOutcome(o *runner.Outcome) {
	label := namespaceLabel(o.Namespace)
	switch o.Status {
	case runner.StatusSkipped:
		fmt.Printf("%s '%s' is already in the database.\n", label, o.Filename)
	case runner.StatusAdded:
		fmt.Printf("%s '%s' added successfully (%d faces detected, %d dimensions).\n",
			label, o.Filename, o.Faces, o.Dim)
	default:
		fmt.Printf("%s '%s' failed: %s\n", label, o.Filename, o.Error)
	}
}
