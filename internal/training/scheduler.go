package training

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"edurisk-engine/internal/dataset"
	"edurisk-engine/internal/ml"
)

// DatasetSource supplies the labeled history for a retrain. Implemented by
// dataset.Client for the record API and by fixed-dataset adapters in tests
// and the offline trainer.
type DatasetSource interface {
	FetchTrainingDataset(ctx context.Context) (*dataset.Dataset, error)
}

// PublishFunc installs a freshly trained artifact: persist it, then swap it
// into the live engine. Failures keep the previous artifact active.
type PublishFunc func(*ml.Artifact) error

// Scheduler drives periodic retraining. Each tick fetches the current
// dataset, runs the pipeline, and publishes the result if the quality gate
// passed. A failed run is logged and the schedule continues; the deployed
// model is never touched by a failed run.
type Scheduler struct {
	interval time.Duration
	pipeline *Pipeline
	source   DatasetSource
	publish  PublishFunc
	trigger  chan struct{}
}

func NewScheduler(interval time.Duration, pipeline *Pipeline, source DatasetSource, publish PublishFunc) *Scheduler {
	return &Scheduler{
		interval: interval,
		pipeline: pipeline,
		source:   source,
		publish:  publish,
		trigger:  make(chan struct{}, 1),
	}
}

// TriggerNow requests an immediate out-of-schedule run. The request is
// coalesced: if a manual run is already queued the call is a no-op.
func (s *Scheduler) TriggerNow() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled, retraining on every interval tick and on
// every manual trigger.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("retrain scheduler started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("retrain scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx, "scheduled")
		case <-s.trigger:
			s.runOnce(ctx, "manual")
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, cause string) {
	ds, err := s.source.FetchTrainingDataset(ctx)
	if err != nil {
		log.Error().Err(err).Str("cause", cause).Msg("retrain skipped: dataset fetch failed")
		return
	}

	artifact, err := s.pipeline.Train(ctx, ds)
	if err != nil {
		var quality *QualityBelowThresholdError
		switch {
		case errors.Is(err, ErrRetrainInProgress):
			log.Warn().Str("cause", cause).Msg("retrain skipped: previous run still in progress")
		case errors.As(err, &quality):
			log.Warn().
				Str("cause", cause).
				Float64("accuracy", quality.Accuracy).
				Float64("required", quality.MinAccuracy).
				Msg("retrain rejected by quality gate, keeping current model")
		default:
			log.Error().Err(err).Str("cause", cause).Msg("retrain failed")
		}
		return
	}

	if err := s.publish(artifact); err != nil {
		log.Error().Err(err).Str("version", artifact.Version).Msg("failed to publish trained artifact")
		return
	}

	log.Info().
		Str("cause", cause).
		Str("version", artifact.Version).
		Float64("accuracy", artifact.Validation.Accuracy).
		Msg("retrain complete, new model published")
}
