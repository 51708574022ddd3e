package database

import (
	"context"
	"reflect"
	"testing"

	"github.com/kozaktomas/me-in-moments/internal/facematch"
)

func TestMemoryCache_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	faces := facematch.EmbeddingSet{
		{Vector: []float32{1, 2, 3}, BBox: []float64{1, 2, 3, 4}, DetScore: 0.9, Source: "/tmp/a.jpg"},
	}
	if err := cache.SaveFaces(ctx, "hash", "tag", faces); err != nil {
		t.Fatalf("SaveFaces() error: %v", err)
	}

	got, ok, err := cache.GetFaces(ctx, "hash", "tag")
	if err != nil || !ok {
		t.Fatalf("GetFaces() = ok %v, err %v", ok, err)
	}
	if !reflect.DeepEqual(got[0].Vector, faces[0].Vector) || !reflect.DeepEqual(got[0].BBox, faces[0].BBox) {
		t.Errorf("GetFaces() = %+v, want %+v", got[0], faces[0])
	}
	if got[0].Source != "" {
		t.Errorf("cached faces must not carry a source path, got %s", got[0].Source)
	}

	// Mutating the caller's copy must not leak into the cache.
	faces[0].Vector[0] = 99
	got[0].Vector[1] = 99
	again, _, _ := cache.GetFaces(ctx, "hash", "tag")
	if again[0].Vector[0] != 1 || again[0].Vector[1] != 2 {
		t.Errorf("cache was mutated: %v", again[0].Vector)
	}

	if _, ok, _ := cache.GetFaces(ctx, "hash", "other"); ok {
		t.Error("expected miss for a different tag")
	}
}

func TestMemoryCache_EmptySetIsAHit(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	if err := cache.SaveFaces(ctx, "h", "t", nil); err != nil {
		t.Fatal(err)
	}
	got, ok, err := cache.GetFaces(ctx, "h", "t")
	if err != nil || !ok {
		t.Fatalf("expected hit for an image without faces, ok %v err %v", ok, err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty set, got %v", got)
	}
}

func TestMemoryCache_StatsAndClear(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	two := facematch.EmbeddingSet{{Vector: []float32{1}}, {Vector: []float32{2}}}
	_ = cache.SaveFaces(ctx, "a", "m1", two)
	_ = cache.SaveFaces(ctx, "b", "m1", nil)
	_ = cache.SaveFaces(ctx, "a", "m2", two[:1])

	stats, err := cache.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	want := CacheStats{Images: 3, Faces: 3, ByTag: map[string]int{"m1": 2, "m2": 1}, Backend: "memory"}
	if !reflect.DeepEqual(stats, want) {
		t.Errorf("Stats() = %+v, want %+v", stats, want)
	}

	if err := cache.Clear(ctx); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	stats, _ = cache.Stats(ctx)
	if stats.Images != 0 || stats.Faces != 0 {
		t.Errorf("expected empty cache after Clear, got %+v", stats)
	}
}

func TestStoredRoundTrip(t *testing.T) {
	faces := facematch.EmbeddingSet{
		{Vector: []float32{1, 0}, BBox: []float64{0, 0, 10, 10}, DetScore: 0.8},
		{Vector: []float32{0, 1}, DetScore: 0.6},
	}
	stored := ToStored("hash", "tag", faces)
	if stored[1].FaceIndex != 1 || stored[1].ContentHash != "hash" || stored[1].Tag != "tag" {
		t.Errorf("unexpected stored row %+v", stored[1])
	}
	if got := FromStored(stored); !reflect.DeepEqual(got, faces) {
		t.Errorf("FromStored(ToStored()) = %+v, want %+v", got, faces)
	}
}
