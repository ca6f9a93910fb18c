package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-matcher/internal/imaging"
)

var convertCmd = &cobra.Command{
	Use:   "convert [input]",
	Short: "Convert an image or a folder of images to JPEG",
	Long: `Convert an image, including camera RAW and HEIF files, to an RGB JPEG.

The input defaults to INPUT_PATH. When the input is a folder every supported
file in it is converted and a failing file does not stop the others. Without
--output the JPEG is written next to the input as <name>.jpg.

RAW files are decoded with RAW_DECODER (dcraw) and HEIF files with
HEIF_DECODER (heif-convert).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().String("output", "", "Output file, or output folder for a folder input (default OUTPUT_PATH)")
	convertCmd.Flags().Int("quality", 0, "JPEG quality 1-100 (default QUALITY)")
	convertCmd.Flags().Bool("optimize", false, "Request optimized Huffman tables (default OPTIMIZE)")
	convertCmd.Flags().Bool("progressive", false, "Request progressive encoding (default PROGRESSIVE)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	input := cfg.Convert.InputPath
	if len(args) == 1 {
		input = args[0]
	}
	if input == "" {
		return errors.New("INPUT_PATH not specified; pass an input path or set it in the environment")
	}

	output := cfg.Convert.OutputPath
	if v := mustGetString(cmd, "output"); v != "" {
		output = v
	}
	opts := imaging.ConvertOptions{
		Quality:     cfg.Convert.Quality,
		Optimize:    cfg.Convert.Optimize,
		Progressive: cfg.Convert.Progressive,
	}
	if cmd.Flags().Changed("quality") {
		opts.Quality = mustGetInt(cmd, "quality")
	}
	if cmd.Flags().Changed("optimize") {
		opts.Optimize = mustGetBool(cmd, "optimize")
	}
	if cmd.Flags().Changed("progressive") {
		opts.Progressive = mustGetBool(cmd, "progressive")
	}

	logger := newLogger(cfg)
	loader := newLoader(cfg, logger)
	ctx := cmd.Context()

	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("input '%s' is invalid or does not exist", input)
	}

	if !info.IsDir() {
		written, err := loader.ConvertToJPEG(ctx, input, output, opts)
		if err != nil {
			return fmt.Errorf("error converting %s: %w", input, err)
		}
		printConverted(input, written, opts)
		return nil
	}

	if output != "" {
		if err := os.MkdirAll(output, 0o755); err != nil {
			return fmt.Errorf("creating output folder: %w", err)
		}
	}
	results, err := loader.ConvertFolder(ctx, input, output, opts)
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Printf("Error converting %s: %v\n", res.Input, res.Err)
			continue
		}
		printConverted(res.Input, res.Output, opts)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Converted %d of %d files.\n", len(results)-failed, len(results))
	return nil
}

func printConverted(input, output string, opts imaging.ConvertOptions) {
	fmt.Printf("Converted: %s -> %s (Quality: %d, Optimize: %t, Progressive: %t)\n",
		input, output, opts.Quality, opts.Optimize, opts.Progressive)
}
