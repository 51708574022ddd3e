package facematch

import (
	"errors"
	"fmt"
)

// Error kinds. Every one of them aborts a matching run.
var (
	ErrInputNotFound     = errors.New("input not found")
	ErrInvalidReference  = errors.New("reference image must contain exactly one face")
	ErrEmbeddingFailure  = errors.New("embedding failed")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrStorageFailure    = errors.New("storage failure")
)

// Stage names the step of a run an ImageError happened in.
type Stage string

// Stages of a matching run.
const (
	StageReference Stage = "reference"
	StageTarget    Stage = "target"
	StageExport    Stage = "export"
)

// ImageError ties a failure to the image that caused it.
type ImageError struct {
	Path  string
	Stage Stage
	Err   error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("%s image %s: %v", e.Stage, e.Path, e.Err)
}

func (e *ImageError) Unwrap() error {
	return e.Err
}

// NewImageError wraps err with the failing image and stage.
func NewImageError(stage Stage, path string, err error) error {
	if err == nil {
		return nil
	}
	return &ImageError{Path: path, Stage: stage, Err: err}
}

// Kind returns the error kind sentinel wrapped by err, or nil if err is not
// one of the known kinds.
func Kind(err error) error {
	for _, kind := range []error{
		ErrInputNotFound,
		ErrInvalidReference,
		ErrEmbeddingFailure,
		ErrDimensionMismatch,
		ErrStorageFailure,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
