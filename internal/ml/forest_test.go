package ml

import (
	"math/rand"
	"testing"
)

// separableData builds a dataset where the label depends only on the first
// feature, so a correctly trained ensemble must recover the boundary.
func separableData(n int, seed int64) ([][]float64, []bool) {
	rng := rand.New(rand.NewSource(seed))
	vectors := make([][]float64, n)
	labels := make([]bool, n)

	for i := range vectors {
		v := make([]float64, 5)
		for j := range v {
			v[j] = rng.Float64()
		}
		// Keep a margin around the boundary so bootstrap noise cannot
		// flip predictions near it.
		if i%2 == 0 {
			v[0] = 0.8 + rng.Float64()*0.2
		} else {
			v[0] = rng.Float64() * 0.2
		}
		vectors[i] = v
		labels[i] = v[0] > 0.5
	}

	return vectors, labels
}

func TestTrainForestSeparable(t *testing.T) {
	vectors, labels := separableData(200, 1)

	forest, err := TrainForest(ForestConfig{Trees: 50, MaxDepth: 8, MinSamplesLeaf: 1, Seed: 42}, vectors, labels)
	if err != nil {
		t.Fatalf("TrainForest() error = %v", err)
	}

	if len(forest.Trees) != 50 {
		t.Fatalf("trained %d trees, want 50", len(forest.Trees))
	}
	if forest.NumFeatures != 5 {
		t.Fatalf("NumFeatures = %d, want 5", forest.NumFeatures)
	}

	high := forest.Score([]float64{0.95, 0.5, 0.5, 0.5, 0.5})
	low := forest.Score([]float64{0.05, 0.5, 0.5, 0.5, 0.5})

	if high < 0.9 {
		t.Errorf("score for clearly positive vector = %v, want >= 0.9", high)
	}
	if low > 0.1 {
		t.Errorf("score for clearly negative vector = %v, want <= 0.1", low)
	}
}

func TestTrainForestDeterministic(t *testing.T) {
	vectors, labels := separableData(150, 3)
	cfg := ForestConfig{Trees: 25, MaxDepth: 6, MinSamplesLeaf: 2, Seed: 7}

	a, err := TrainForest(cfg, vectors, labels)
	if err != nil {
		t.Fatalf("first TrainForest() error = %v", err)
	}
	b, err := TrainForest(cfg, vectors, labels)
	if err != nil {
		t.Fatalf("second TrainForest() error = %v", err)
	}

	probes := [][]float64{
		{0.1, 0.2, 0.3, 0.4, 0.5},
		{0.9, 0.1, 0.9, 0.1, 0.9},
		{0.5, 0.5, 0.5, 0.5, 0.5},
	}
	for i, probe := range probes {
		if sa, sb := a.Score(probe), b.Score(probe); sa != sb {
			t.Errorf("probe %d: scores differ between identical trainings: %v vs %v", i, sa, sb)
		}
	}
}

func TestForestScoreRange(t *testing.T) {
	vectors, labels := separableData(100, 9)

	forest, err := TrainForest(ForestConfig{Trees: 10, MaxDepth: 4, MinSamplesLeaf: 1, Seed: 1}, vectors, labels)
	if err != nil {
		t.Fatalf("TrainForest() error = %v", err)
	}

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 50; i++ {
		probe := []float64{rng.Float64(), rng.Float64(), rng.Float64(), rng.Float64(), rng.Float64()}
		if s := forest.Score(probe); s < 0 || s > 1 {
			t.Fatalf("score %v outside [0,1]", s)
		}
	}
}

func TestTrainForestInputValidation(t *testing.T) {
	tests := []struct {
		name    string
		vectors [][]float64
		labels  []bool
	}{
		{"empty", nil, nil},
		{"length mismatch", [][]float64{{1, 2}}, []bool{true, false}},
		{"ragged vectors", [][]float64{{1, 2}, {1}}, []bool{true, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := TrainForest(ForestConfig{Trees: 5, MaxDepth: 3, MinSamplesLeaf: 1, Seed: 1}, tt.vectors, tt.labels); err == nil {
				t.Error("TrainForest() expected error, got nil")
			}
		})
	}
}
