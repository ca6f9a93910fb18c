package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-matcher/internal/facematch"
	"github.com/kozaktomas/face-matcher/internal/imaging"
)

var detectCmd = &cobra.Command{
	Use:   "detect <image>",
	Short: "Detect faces in an image and optionally save an annotated copy",
	Long: `Run face detection on an image and print every face kept after the
confidence filter and duplicate removal. With --output, a JPEG copy of the
image is written with the face boxes and landmarks drawn on it.

Nothing is written to the store.`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().StringP("output", "o", "", "Write an annotated JPEG to this path")
	detectCmd.Flags().Bool("json", false, "Output as JSON")
}

type detectOutput struct {
	Image    string                   `json:"image"`
	Faces    []facematch.DetectedFace `json:"faces"`
	Selected int                      `json:"selected"`
	Output   string                   `json:"output,omitempty"`
}

func runDetect(cmd *cobra.Command, args []string) error {
	path := args[0]
	cfg := loadConfig(cmd)
	logger := newLogger(cfg)
	ctx := cmd.Context()

	// detection never touches the store
	r := newRunner(cfg, nil, logger)
	det, err := r.Detect(ctx, path)
	if err != nil {
		return err
	}

	out := detectOutput{Image: path, Faces: det.Faces, Selected: -1}
	if len(det.Faces) > 0 {
		selected, err := facematch.SelectFace(det.Faces, cfg.Run.FaceSelection)
		if err != nil {
			return err
		}
		for i, f := range det.Faces {
			if f.BBox == selected.BBox {
				out.Selected = i
				break
			}
		}
	}

	if output := mustGetString(cmd, "output"); output != "" {
		data, err := imaging.EncodeJPEG(imaging.Annotate(det.Image, det.Faces), cfg.Convert.Quality)
		if err != nil {
			return fmt.Errorf("encoding annotated image: %w", err)
		}
		if dir := filepath.Dir(output); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating output folder: %w", err)
			}
		}
		if err := os.WriteFile(output, data, 0o600); err != nil {
			return fmt.Errorf("writing annotated image: %w", err)
		}
		out.Output = output
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(out)
	}

	if len(out.Faces) == 0 {
		fmt.Printf("No face detected in %s.\n", path)
	}
	for i, f := range out.Faces {
		marker := ""
		if i == out.Selected {
			marker = " (selected)"
		}
		fmt.Printf("Face %d%s: box=[%.0f, %.0f, %.0f, %.0f] confidence=%.3f keypoints=%s\n",
			i+1, marker, f.BBox.X, f.BBox.Y, f.BBox.Width, f.BBox.Height, f.Confidence, keypointNames(f))
	}
	if out.Output != "" {
		fmt.Printf("Output saved to: %s\n", out.Output)
	}
	return nil
}

func keypointNames(f facematch.DetectedFace) string {
	names := make([]string, 0, len(f.Keypoints))
	for _, name := range []string{
		facematch.KeypointLeftEye, facematch.KeypointRightEye, facematch.KeypointNose,
		facematch.KeypointMouthLeft, facematch.KeypointMouthRight,
	} {
		if _, ok := f.Keypoint(name); ok {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}
