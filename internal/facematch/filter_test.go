package facematch

import (
	"math"
	"reflect"
	"testing"
)

func sampleSet() MatchSet {
	return MatchSet{
		{ImagePath: "a.jpg", Score: 0.35},
		{ImagePath: "b.jpg", Score: 1.90},
		{ImagePath: "c.jpg", Score: 0.10},
		{ImagePath: "d.jpg", Score: 0.40},
		{ImagePath: "e.jpg", Score: 1.00},
	}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		want      []string
	}{
		{"default threshold", 0.4, []string{"a.jpg", "c.jpg"}},
		{"strict inequality at boundary", 0.35, []string{"c.jpg"}},
		{"negative threshold", -1, []string{}},
		{"above maximum distance", 2.5, []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"}},
		{"zero threshold", 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(sampleSet(), tt.threshold).Paths()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Filter(%v) = %v, want %v", tt.threshold, got, tt.want)
			}
		})
	}
}

func TestFilter_Monotonic(t *testing.T) {
	set := sampleSet()
	thresholds := []float64{-0.5, 0, 0.1, 0.3, 0.35, 0.4, 0.5, 1, 1.5, 2, 3}

	for i := 1; i < len(thresholds); i++ {
		lower := Filter(set, thresholds[i-1])
		higher := Filter(set, thresholds[i])

		present := make(map[string]bool, len(higher))
		for _, r := range higher {
			present[r.ImagePath] = true
		}
		for _, r := range lower {
			if !present[r.ImagePath] {
				t.Errorf("%s present at t=%v but missing at t=%v", r.ImagePath, thresholds[i-1], thresholds[i])
			}
		}
	}
}

func TestFilter_Idempotent(t *testing.T) {
	set := sampleSet()
	first := Filter(set, 0.5)
	second := Filter(set, 0.5)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Filter not idempotent: %v vs %v", first, second)
	}
	if !reflect.DeepEqual(Filter(first, 0.5), first) {
		t.Error("filtering an already filtered set changed it")
	}
}

func TestFilter_DoesNotModifyInput(t *testing.T) {
	set := sampleSet()
	_ = Filter(set, 0.4)
	if !reflect.DeepEqual(set, sampleSet()) {
		t.Error("Filter modified its input")
	}
}

func TestSortByScore(t *testing.T) {
	set := MatchSet{
		{ImagePath: "x.jpg", Score: 0.5},
		{ImagePath: "y.jpg", Score: 0.2},
		{ImagePath: "z.jpg", Score: 0.5},
		{ImagePath: "w.jpg", Score: 0.1},
	}

	got := SortByScore(set).Paths()
	want := []string{"w.jpg", "y.jpg", "x.jpg", "z.jpg"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortByScore() = %v, want %v", got, want)
	}
	if set[0].ImagePath != "x.jpg" {
		t.Error("SortByScore modified its input")
	}
}

// The four end-to-end scenarios: score each target against the reference,
// then filter at the default threshold.
func TestScenarios(t *testing.T) {
	ref := EmbeddingSet{emb(1, 0, 0)}
	targets := []struct {
		path string
		set  EmbeddingSet
		want float64
	}{
		{"A.jpg", EmbeddingSet{emb(1, 0, 0)}, 0},
		{"B.jpg", EmbeddingSet{emb(-1, 0, 0)}, 2},
		{"C.jpg", EmbeddingSet{}, 1},
	}

	var set MatchSet
	for _, tt := range targets {
		record, err := BestMatch(ref, tt.set, tt.path)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.path, err)
		}
		if math.Abs(record.Score-tt.want) > 1e-6 {
			t.Errorf("%s: score = %v, want %v", tt.path, record.Score, tt.want)
		}
		set = append(set, record)
	}

	got := Filter(set, 0.4).Paths()
	if !reflect.DeepEqual(got, []string{"A.jpg"}) {
		t.Errorf("Filter(0.4) = %v, want [A.jpg]", got)
	}
	if paths := Filter(set, 0.999).Paths(); len(paths) != 1 {
		t.Errorf("faceless target must stay excluded below 1.0, got %v", paths)
	}
}
