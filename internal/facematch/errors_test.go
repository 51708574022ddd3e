package facematch

import (
	"errors"
	"fmt"
	"testing"
)

func TestImageError(t *testing.T) {
	err := NewImageError(StageTarget, "/tmp/party/img.jpg", fmt.Errorf("%w: timeout", ErrEmbeddingFailure))

	if !errors.Is(err, ErrEmbeddingFailure) {
		t.Errorf("expected errors.Is(err, ErrEmbeddingFailure)")
	}

	var imgErr *ImageError
	if !errors.As(err, &imgErr) {
		t.Fatal("expected errors.As to find *ImageError")
	}
	if imgErr.Path != "/tmp/party/img.jpg" {
		t.Errorf("Path = %q", imgErr.Path)
	}
	if imgErr.Stage != StageTarget {
		t.Errorf("Stage = %q", imgErr.Stage)
	}

	want := "target image /tmp/party/img.jpg: embedding failed: timeout"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNewImageError_Nil(t *testing.T) {
	if err := NewImageError(StageReference, "ref.jpg", nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"input not found", fmt.Errorf("open: %w", ErrInputNotFound), ErrInputNotFound},
		{"wrapped invalid reference", NewImageError(StageReference, "r.jpg", ErrInvalidReference), ErrInvalidReference},
		{"storage", fmt.Errorf("mkdir: %w", ErrStorageFailure), ErrStorageFailure},
		{"dimension", ErrDimensionMismatch, ErrDimensionMismatch},
		{"unknown", errors.New("boom"), nil},
		{"nil", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind() = %v, want %v", got, tt.want)
			}
		})
	}
}
