// Package ml implements the dropout risk classifier: a bagged ensemble of
// decision trees trained on encoded student feature vectors. Scoring is fully
// deterministic for a fixed (vector, artifact) pair; all training randomness
// is derived from one configured seed.
package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// ForestConfig controls ensemble induction.
type ForestConfig struct {
	Trees          int   `json:"trees"`
	MaxDepth       int   `json:"max_depth"`
	MinSamplesLeaf int   `json:"min_samples_leaf"`
	Seed           int64 `json:"seed"`
}

// Forest is a fitted ensemble. The final probability is the mean of the
// per-tree leaf dropout fractions, which keeps the output strictly in [0,1].
type Forest struct {
	Config      ForestConfig `json:"config"`
	NumFeatures int          `json:"num_features"`
	Trees       []Tree       `json:"trees"`
}

// TrainForest fits the ensemble on encoded vectors and binary dropout labels.
// Each tree gets a bootstrap sample and a private RNG seeded from the base
// seed, so a retrain with identical inputs reproduces the same forest.
func TrainForest(cfg ForestConfig, vectors [][]float64, labels []bool) (*Forest, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("cannot train on empty dataset")
	}
	if len(vectors) != len(labels) {
		return nil, fmt.Errorf("vector count %d does not match label count %d", len(vectors), len(labels))
	}

	numFeatures := len(vectors[0])
	for i, v := range vectors {
		if len(v) != numFeatures {
			return nil, fmt.Errorf("vector %d has length %d, expected %d", i, len(v), numFeatures)
		}
	}

	featsPerSplit := int(math.Sqrt(float64(numFeatures)))
	if featsPerSplit < 1 {
		featsPerSplit = 1
	}

	forest := &Forest{
		Config:      cfg,
		NumFeatures: numFeatures,
		Trees:       make([]Tree, cfg.Trees),
	}

	n := len(vectors)
	for t := 0; t < cfg.Trees; t++ {
		rng := rand.New(rand.NewSource(cfg.Seed + int64(t)))

		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}

		forest.Trees[t] = growTree(vectors, labels, sample, cfg.MaxDepth, cfg.MinSamplesLeaf, featsPerSplit, rng)
	}

	return forest, nil
}

// Score returns the ensemble's dropout probability for an encoded vector.
// The caller is responsible for schema validation; Artifact.Score wraps this
// with the version and length checks.
func (f *Forest) Score(vec []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].predict(vec)
	}
	return sum / float64(len(f.Trees))
}
