package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/me-in-moments/internal/constants"
	"github.com/kozaktomas/me-in-moments/internal/facematch"
	"github.com/kozaktomas/me-in-moments/internal/imageproc"
	"github.com/kozaktomas/me-in-moments/internal/matcher"
	"github.com/kozaktomas/me-in-moments/internal/workspace"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Find the target photos that contain the reference face",
	Long: `Compare the single face in a reference photo with every face in the target
photos. Each target is scored by the cosine distance of its closest face; a
target without any face scores 1. Targets scoring strictly below the
threshold are reported as matches.

Targets may be image files or directories; directories contribute their
.jpg, .jpeg and .png files in name order.

Examples:
  # Match a folder of photos
  me-in-moments match --reference me.jpg --targets ./holiday

  # Stricter matching, best matches first
  me-in-moments match --reference me.jpg --targets ./holiday --threshold 0.3 --sort score

  # Export the matching photos
  me-in-moments match --reference me.jpg --targets a.jpg,b.jpg --output matches.zip

  # Output as JSON
  me-in-moments match --reference me.jpg --targets ./holiday --json`,
	Args: cobra.NoArgs,
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("reference", "", "Reference photo containing exactly one face")
	matchCmd.Flags().StringSlice("targets", nil, "Target photos or directories (comma-separated or repeated)")
	matchCmd.Flags().Float64("threshold", constants.DefaultThreshold, "Maximum cosine distance for a match (lower = stricter)")
	matchCmd.Flags().String("preprocess", "", "Image preprocessing before embedding: none, gray or equalize")
	matchCmd.Flags().String("sort", "", "Order of reported matches: empty keeps target order, score sorts by distance")
	matchCmd.Flags().Bool("all", false, "Report every target, not only the matches")
	matchCmd.Flags().Bool("json", false, "Output as JSON")
	matchCmd.Flags().String("output", "", "Write the matching photos into this zip file")
	matchCmd.Flags().String("cache", cacheAuto, "Embedding cache: auto, memory, postgres or none")

	_ = matchCmd.MarkFlagRequired("reference")
	_ = matchCmd.MarkFlagRequired("targets")
}

// MatchOutput represents the JSON output structure
type MatchOutput struct {
	ID        string             `json:"id"`
	Reference string             `json:"reference"`
	Threshold float64            `json:"threshold"`
	Total     int                `json:"total"`
	Matched   int                `json:"matched"`
	Duration  string             `json:"duration"`
	Matches   facematch.MatchSet `json:"matches"`
	Archive   string             `json:"archive,omitempty"`
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reference := mustGetString(cmd, "reference")
	targetInputs := mustGetStringSlice(cmd, "targets")
	sortBy := mustGetString(cmd, "sort")
	showAll := mustGetBool(cmd, "all")
	jsonOutput := mustGetBool(cmd, "json")
	outputPath := mustGetString(cmd, "output")

	threshold := cfg.Match.DefaultThreshold
	if cmd.Flags().Changed("threshold") {
		threshold = mustGetFloat64(cmd, "threshold")
	}
	if sortBy != "" && sortBy != "score" {
		return fmt.Errorf("invalid --sort value %q (use score)", sortBy)
	}

	modeName := mustGetString(cmd, "preprocess")
	if modeName == "" {
		modeName = cfg.Match.Preprocess
	}
	mode, err := imageproc.ParseMode(modeName)
	if err != nil {
		return err
	}

	paths, err := workspace.ExpandImagePaths(targetInputs, cfg.Workspace.Extensions)
	if err != nil {
		return err
	}
	targets := matcher.TargetsFromPaths(paths)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, closeCache, err := openFaceCache(ctx, cfg, mustGetString(cmd, "cache"))
	if err != nil {
		return err
	}
	defer closeCache()

	client := newEmbeddingClient(cfg, mode)
	m := matcher.New(newSource(client, cache))

	if !jsonOutput {
		fmt.Printf("Reference: %s\n", reference)
		fmt.Printf("Targets:   %d photos\n", len(targets))
		fmt.Printf("Threshold: %.2f (model %s, preprocess %s)\n\n", threshold, client.Model(), mode)
		if threshold < cfg.Match.SuggestedMin || threshold > cfg.Match.SuggestedMax {
			fmt.Fprintf(os.Stderr, "Warning: threshold %.2f is outside the suggested range %.2f-%.2f\n",
				threshold, cfg.Match.SuggestedMin, cfg.Match.SuggestedMax)
		}
	}

	bar := newMatchProgressBar(len(targets), jsonOutput)
	result, err := m.Run(ctx, reference, targets, matcher.Options{
		OnProgress: func(info matcher.ProgressInfo) {
			if info.Phase != matcher.PhaseTarget {
				return
			}
			bar.Describe(truncateName(info.Name, constants.ProgressNameWidth))
			_ = bar.Set(info.Current)
		},
	})
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("matching failed: %w", err)
	}

	matches := result.Filter(threshold)
	if sortBy == "score" {
		matches = facematch.SortByScore(matches)
	}

	if outputPath != "" {
		if err := workspace.WriteArchiveFile(outputPath, matches); err != nil {
			return fmt.Errorf("failed to write archive: %w", err)
		}
	}

	if jsonOutput {
		reported := matches
		if showAll {
			reported = result.Matches
			if sortBy == "score" {
				reported = facematch.SortByScore(reported)
			}
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(MatchOutput{
			ID:        result.ID.String(),
			Reference: reference,
			Threshold: threshold,
			Total:     len(result.Matches),
			Matched:   len(matches),
			Duration:  result.Duration.Round(time.Millisecond).String(),
			Matches:   reported,
			Archive:   outputPath,
		})
	}

	fmt.Println()
	if showAll {
		all := result.Matches
		if sortBy == "score" {
			all = facematch.SortByScore(all)
		}
		printMatchTable(os.Stdout, all, threshold)
	} else if len(matches) > 0 {
		printMatchTable(os.Stdout, matches, threshold)
	}

	fmt.Printf("\nMatched %d of %d photos in %s\n", len(matches), len(result.Matches),
		result.Duration.Round(time.Millisecond))
	if outputPath != "" {
		fmt.Printf("Saved %d photos to %s\n", len(matches), outputPath)
	}
	return nil
}

// newMatchProgressBar writes to stderr so JSON on stdout stays parseable.
func newMatchProgressBar(total int, silent bool) *progressbar.ProgressBar {
	if silent {
		return progressbar.DefaultSilent(int64(total))
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Matching"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

// truncateName shortens a file name to width runes for the progress bar.
func truncateName(name string, width int) string {
	runes := []rune(name)
	if len(runes) <= width {
		return name
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

// printMatchTable prints the records with their score and face counts.
func printMatchTable(out io.Writer, set facematch.MatchSet, threshold float64) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PHOTO\tDISTANCE\tFACES\tMATCH\tPATH")
	fmt.Fprintln(w, "-----\t--------\t-----\t-----\t----")

	for _, r := range set {
		match := ""
		if r.Matched(threshold) {
			match = "yes"
		}
		name := r.Name
		if name == "" {
			name = filepath.Base(r.ImagePath)
		}
		fmt.Fprintf(w, "%s\t%.4f\t%d\t%s\t%s\n", name, r.Score, r.FaceCount, match, r.ImagePath)
	}
	w.Flush()
}
