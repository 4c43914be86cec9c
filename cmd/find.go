package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/kozaktomas/photo-finder/internal/album"
	"github.com/kozaktomas/photo-finder/internal/config"
	"github.com/kozaktomas/photo-finder/internal/facematch"
	"github.com/kozaktomas/photo-finder/internal/faces"
	"github.com/kozaktomas/photo-finder/internal/scan"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Find the photos of the person on the reference image",
	Long: `Detects the face on the reference image and scans the album for photos
containing the same person. Matching photos are listed in album order and,
with --output, their original files are written to a directory.

The album is a PhotoPrism album UID, a Google Drive folder link or id, or a
directory (relative to FINDER_DIR_ROOT when set).`,
	Example: `  photo-finder find --reference me.jpg --source drive --album https://drive.google.com/drive/folders/1AbC...
  photo-finder find --reference me.jpg --source dir --album ./wedding --model accurate --output ./mine`,
	RunE: runFind,
}

func init() {
	rootCmd.AddCommand(findCmd)
	addFindFlags(findCmd)
}

func addFindFlags(findCmd *cobra.Command) {
	findCmd.Flags().String("reference", "", "Reference image with your face (required)")
	findCmd.Flags().String("album", "", "Album UID, Drive folder link or directory (required)")
	findCmd.Flags().String("source", "", "Album source: photoprism, drive or dir (defaults to FINDER_SOURCE)")
	findCmd.Flags().String("model", "", "Detection model: fast or accurate (defaults to FINDER_DETECTION_MODEL)")
	findCmd.Flags().Float64("tolerance", float64(facematch.DefaultTolerance), "Match tolerance, lower is stricter (0.4-0.6 is practical)")
	findCmd.Flags().Int("concurrency", 0, "Number of photos processed in parallel (defaults to FINDER_CONCURRENCY)")
	findCmd.Flags().String("output", "", "Directory to write the matching originals to")

	_ = findCmd.MarkFlagRequired("reference")
	_ = findCmd.MarkFlagRequired("album")
}

// applyFindFlags overrides configuration values with the flags the user set.
func applyFindFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("source") {
		cfg.Scan.Source = mustFlag(cmd.Flags().GetString, "source")
	}
	if cmd.Flags().Changed("model") {
		m, err := facematch.ParseDetectionModel(mustFlag(cmd.Flags().GetString, "model"))
		if err != nil {
			return err
		}
		cfg.Scan.Model = m
	}
	if cmd.Flags().Changed("tolerance") {
		cfg.Scan.Tolerance = mustFlag(cmd.Flags().GetFloat64, "tolerance")
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Scan.Concurrency = mustFlag(cmd.Flags().GetInt, "concurrency")
	}
	return cfg.Validate()
}

func runFind(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyFindFlags(cmd, cfg); err != nil {
		return err
	}

	refPath := mustFlag(cmd.Flags().GetString, "reference")
	refData, err := os.ReadFile(refPath)
	if err != nil {
		return fmt.Errorf("reading reference image: %w", err)
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	backend, err := faces.NewBackend(cfg.Face.Backend, cfg.Embedding.URL, cfg.Face.ModelsDir)
	if err != nil {
		return fmt.Errorf("creating face backend: %w", err)
	}
	defer backend.Close()

	src, err := album.Open(ctx, cfg.Scan.Source, cfg)
	if err != nil {
		return err
	}

	// created on the first progress report, when the album size is known
	var bar *progressbar.ProgressBar
	scanner := scan.New(
		faces.NewLocator(backend, cfg.Scan.Model),
		faces.NewEncoder(backend, cfg.Scan.Model),
		scan.WithTolerance(cfg.Tolerance()),
		scan.WithConcurrency(cfg.Scan.Concurrency),
		scan.WithProgress(func(p scan.Progress) {
			if bar == nil {
				bar = newScanBar(cmd.ErrOrStderr(), p.Total)
			}
			_ = bar.Set(p.Processed)
		}),
	)

	ref, err := scanner.SetReference(ctx, refData)
	if errors.Is(err, facematch.ErrNoFaceDetected) {
		return fmt.Errorf("%s: no face detected, use a photo where your face is clearly visible", refPath)
	}
	if err != nil {
		return fmt.Errorf("reading reference image: %w", err)
	}
	if ref.FacesFound > 1 {
		fmt.Fprintf(out, "Reference image contains %d faces, using the first one\n", ref.FacesFound)
	}

	results, summary, runErr := scanner.Run(ctx, src, mustFlag(cmd.Flags().GetString, "album"))
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(cmd.ErrOrStderr())
	}

	if summary.Partial {
		fmt.Fprintf(out, "Scan stopped early, showing partial results (%d of %d photos scanned)\n", summary.Scanned, summary.Total)
	}
	fmt.Fprintf(out, "Found %d photos out of %d\n", summary.Matched, summary.Scanned)
	if summary.Skipped > 0 {
		fmt.Fprintf(out, "%d photos could not be read and were skipped\n", summary.Skipped)
	}
	printResults(out, results)

	if dir := mustFlag(cmd.Flags().GetString, "output"); dir != "" && len(results) > 0 {
		written, err := writeResults(dir, results)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %d photos to %s\n", len(written), dir)
	}
	return runErr
}

func newScanBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Scanning album"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

func printResults(w io.Writer, results []facematch.MatchResult) {
	if len(results) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tDISTANCE")
	for i, r := range results {
		fmt.Fprintf(tw, "%d\t%s\t%.3f\n", i+1, r.Candidate.Name, r.Distance)
	}
	tw.Flush()
}

// outputNames returns a unique, filesystem safe file name per result.
func outputNames(results []facematch.MatchResult) []string {
	names := make([]string, len(results))
	used := make(map[string]bool, len(results))
	for i, r := range results {
		name := facematch.SafeFileName(r.Candidate.Name, fmt.Sprintf("photo-%d", r.Index+1))
		ext := filepath.Ext(name)
		base := strings.TrimSuffix(name, ext)
		for n := 2; used[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s-%d%s", base, n, ext)
		}
		used[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

// writeResults writes the original bytes of every result into dir.
func writeResults(dir string, results []facematch.MatchResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	names := outputNames(results)
	written := make([]string, 0, len(results))
	for i, r := range results {
		path := filepath.Join(dir, names[i])
		if err := os.WriteFile(path, r.Candidate.Data, 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
