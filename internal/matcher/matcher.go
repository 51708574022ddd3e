// Package matcher runs one reference photo against a batch of target photos
// and keeps the scored result for repeated threshold filtering.
package matcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/me-in-moments/internal/facematch"
)

// Progress phases
const (
	PhaseReference = "reference"
	PhaseTarget    = "target"
)

// ProgressInfo contains progress information for callbacks
type ProgressInfo struct {
	Phase   string
	Current int // targets finished so far
	Total   int
	Path    string
	Name    string
}

// Options configures a single run
type Options struct {
	OnProgress func(ProgressInfo) // Optional progress callback for CLI bar and web events
}

// Target is one image to score. Name is the original file name shown to the
// user and used inside the archive; it defaults to the base of Path.
type Target struct {
	Path string
	Name string
}

// TargetsFromPaths wraps plain paths as targets named by their base name.
func TargetsFromPaths(paths []string) []Target {
	targets := make([]Target, len(paths))
	for i, p := range paths {
		targets[i] = Target{Path: p, Name: filepath.Base(p)}
	}
	return targets
}

// Result is the write-once outcome of a run. Matches holds one record per
// target in upload order, unfiltered.
type Result struct {
	ID        uuid.UUID          `json:"id"`
	Reference string             `json:"reference"`
	Matches   facematch.MatchSet `json:"matches"`
	CreatedAt time.Time          `json:"created_at"`
	Duration  time.Duration      `json:"duration"`
}

// Filter returns the records below threshold t. It can be called any number
// of times with different thresholds.
func (r *Result) Filter(t float64) facematch.MatchSet {
	return facematch.Filter(r.Matches, t)
}

// Matcher scores target images against a reference face.
type Matcher struct {
	source facematch.EmbeddingSource
}

// New creates a matcher that obtains embeddings from source.
func New(source facematch.EmbeddingSource) *Matcher {
	return &Matcher{source: source}
}

// Run embeds the reference, validates that it has exactly one face, then
// scores each target in order. Any error, including cancellation of ctx,
// aborts the run and no partial result is returned.
func (m *Matcher) Run(ctx context.Context, reference string, targets []Target, opts Options) (*Result, error) {
	start := time.Now()
	report := func(info ProgressInfo) {
		if opts.OnProgress != nil {
			info.Total = len(targets)
			opts.OnProgress(info)
		}
	}

	report(ProgressInfo{Phase: PhaseReference, Path: reference, Name: filepath.Base(reference)})
	ref, err := m.reference(ctx, reference)
	if err != nil {
		return nil, err
	}

	matches := make(facematch.MatchSet, 0, len(targets))
	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := m.score(ctx, ref, target)
		if err != nil {
			return nil, err
		}
		matches = append(matches, record)

		report(ProgressInfo{Phase: PhaseTarget, Current: i + 1, Path: target.Path, Name: record.Name})
	}

	return &Result{
		ID:        uuid.New(),
		Reference: reference,
		Matches:   matches,
		CreatedAt: start,
		Duration:  time.Since(start),
	}, nil
}

func (m *Matcher) reference(ctx context.Context, path string) (facematch.EmbeddingSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ref, err := m.source.Embed(ctx, path)
	if err != nil {
		return nil, facematch.NewImageError(facematch.StageReference, path, err)
	}
	if err := facematch.ValidateReference(ref); err != nil {
		return nil, facematch.NewImageError(facematch.StageReference, path, err)
	}
	return ref, nil
}

func (m *Matcher) score(ctx context.Context, ref facematch.EmbeddingSet, target Target) (facematch.MatchRecord, error) {
	faces, err := m.source.Embed(ctx, target.Path)
	if err != nil {
		return facematch.MatchRecord{}, facematch.NewImageError(facematch.StageTarget, target.Path, err)
	}

	record, err := facematch.BestMatch(ref, faces, target.Path)
	if err != nil {
		return facematch.MatchRecord{}, facematch.NewImageError(facematch.StageTarget, target.Path, err)
	}
	if target.Name != "" {
		record.Name = target.Name
	}
	return record, nil
}
