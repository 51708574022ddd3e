package embedding

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/me-in-moments/internal/database/mock"
	"github.com/kozaktomas/me-in-moments/internal/facematch"
)

type countingSource struct {
	calls int
	faces facematch.EmbeddingSet
	err   error
}

func (s *countingSource) Embed(ctx context.Context, imagePath string) (facematch.EmbeddingSet, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make(facematch.EmbeddingSet, len(s.faces))
	for i, f := range s.faces {
		f.Source = imagePath
		out[i] = f
	}
	return out, nil
}

func TestCachedSource_ReusesEmbeddings(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.jpg")
	copyOf := filepath.Join(dir, "b.jpg")
	for _, p := range []string{first, copyOf} {
		if err := os.WriteFile(p, []byte("same bytes"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	inner := &countingSource{faces: facematch.EmbeddingSet{{Vector: []float32{1, 2}}}}
	cache := mock.NewMockFaceCache()
	cached := NewCachedSource(inner, cache, "model")

	if _, err := cached.Embed(context.Background(), first); err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	got, err := cached.Embed(context.Background(), copyOf)
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}

	if inner.calls != 1 {
		t.Errorf("inner source called %d times, want 1", inner.calls)
	}
	if cache.SaveCalls != 1 {
		t.Errorf("SaveFaces called %d times, want 1", cache.SaveCalls)
	}
	if len(got) != 1 || got[0].Source != copyOf {
		t.Errorf("cached result should carry the requested path, got %+v", got)
	}
}

func TestCachedSource_TagSeparatesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jpg")
	if err := os.WriteFile(path, []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}

	inner := &countingSource{}
	cache := mock.NewMockFaceCache()

	if _, err := NewCachedSource(inner, cache, "one").Embed(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if _, err := NewCachedSource(inner, cache, "two").Embed(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("inner source called %d times, want 2", inner.calls)
	}
}

func TestCachedSource_CacheFailuresFallThrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jpg")
	if err := os.WriteFile(path, []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}

	inner := &countingSource{faces: facematch.EmbeddingSet{{Vector: []float32{1}}}}
	cache := mock.NewMockFaceCache()
	cache.GetError = errors.New("connection refused")
	cache.SaveError = errors.New("connection refused")

	got, err := NewCachedSource(inner, cache, "m").Embed(context.Background(), path)
	if err != nil {
		t.Fatalf("cache failures must not fail Embed, got %v", err)
	}
	if len(got) != 1 || inner.calls != 1 {
		t.Errorf("expected result from inner source, got %v (calls %d)", got, inner.calls)
	}
}

func TestCachedSource_Errors(t *testing.T) {
	inner := &countingSource{err: facematch.ErrEmbeddingFailure}
	cached := NewCachedSource(inner, mock.NewMockFaceCache(), "m")

	_, err := cached.Embed(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
	if !errors.Is(err, facematch.ErrInputNotFound) {
		t.Errorf("expected ErrInputNotFound, got %v", err)
	}
	if inner.calls != 0 {
		t.Error("inner source must not be called for a missing file")
	}

	path := filepath.Join(t.TempDir(), "a.jpg")
	if err := os.WriteFile(path, []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}
	cache := mock.NewMockFaceCache()
	_, err = NewCachedSource(inner, cache, "m").Embed(context.Background(), path)
	if !errors.Is(err, facematch.ErrEmbeddingFailure) {
		t.Errorf("expected ErrEmbeddingFailure, got %v", err)
	}
	if cache.Len() != 0 {
		t.Error("failed embeddings must not be cached")
	}
}

func TestContentHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ContentHash(path)
	if err != nil {
		t.Fatalf("ContentHash() error: %v", err)
	}
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("ContentHash() = %s, want %s", got, want)
	}
}
