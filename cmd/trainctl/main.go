// trainctl runs one training pass outside the daemon: load (or generate) a
// labeled dataset, run the pipeline, and publish the artifact to the shared
// store if it clears the quality gate. riskd picks the artifact up on its
// next start, or on its next scheduled retrain.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"edurisk-engine/internal/cfg"
	"edurisk-engine/internal/dataset"
	"edurisk-engine/internal/metrics"
	"edurisk-engine/internal/ml"
	"edurisk-engine/internal/storage"
	"edurisk-engine/internal/training"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	csvPath := flag.String("csv", "", "path to a labeled CSV dataset (defaults to DATASET_PATH)")
	generate := flag.Int("generate", 0, "generate a synthetic dataset of N records instead of loading one")
	dryRun := flag.Bool("dry-run", false, "train and report metrics without publishing the artifact")
	flag.Parse()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ds, err := loadDataset(c, *csvPath, *generate)
	if err != nil {
		log.Fatal().Err(err).Msg("dataset load failed")
	}

	mw := metrics.NewWrapper(metrics.NewWithRegistry(prometheus.NewRegistry()))
	pipeline := training.New(training.Config{
		SplitRatio:           c.SplitRatio,
		Seed:                 c.TrainingSeed,
		MinAccuracy:          c.MinValidationAccuracy,
		AllowUnknownCategory: c.AllowUnknownCategory,
		Forest: ml.ForestConfig{
			Trees:          c.TreeCount,
			MaxDepth:       c.MaxTreeDepth,
			MinSamplesLeaf: c.MinSamplesLeaf,
			Seed:           c.TrainingSeed,
		},
		Thresholds: c.RiskThresholds(),
	}, mw)

	artifact, err := pipeline.Train(context.Background(), ds)
	if err != nil {
		var quality *training.QualityBelowThresholdError
		if errors.As(err, &quality) {
			log.Error().
				Float64("accuracy", quality.Accuracy).
				Float64("required", quality.MinAccuracy).
				Msg("artifact rejected by quality gate")
			os.Exit(2)
		}
		log.Fatal().Err(err).Msg("training failed")
	}

	report(artifact)

	if *dryRun {
		log.Info().Msg("dry run, artifact not published")
		return
	}

	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("storage initialization failed")
	}
	defer store.Close()

	if err := store.PublishArtifact(artifact); err != nil {
		log.Fatal().Err(err).Msg("artifact publish failed")
	}
	log.Info().Str("version", artifact.Version).Msg("artifact published")
}

func loadDataset(c cfg.Settings, csvPath string, generate int) (*dataset.Dataset, error) {
	if generate > 0 {
		log.Info().Int("records", generate).Int64("seed", c.TrainingSeed).Msg("generating synthetic dataset")
		return dataset.GenerateSynthetic(generate, c.TrainingSeed), nil
	}
	if csvPath == "" {
		csvPath = c.DatasetPath
	}
	if csvPath == "" {
		return nil, fmt.Errorf("no dataset: pass -csv, set DATASET_PATH, or use -generate")
	}
	return dataset.LoadCSV(csvPath)
}

func report(a *ml.Artifact) {
	v := a.Validation
	log.Info().
		Str("version", a.Version).
		Str("schema_version", a.SchemaVersion).
		Str("dataset_version", a.DatasetVersion).
		Int("samples", v.Samples).
		Float64("accuracy", v.Accuracy).
		Float64("dropout_rate", v.DropoutRate).
		Msg("validation summary")

	for _, b := range v.Boundaries {
		log.Info().
			Float64("threshold", b.Threshold).
			Float64("precision", b.Precision).
			Float64("recall", b.Recall).
			Msg("boundary metrics")
	}
}
