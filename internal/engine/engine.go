// Package engine is the prediction and notification orchestrator. It runs
// encoder -> classifier -> categorizer against the currently published model
// artifact, persists each prediction, and emits a notification event when a
// student's risk tier strictly rises compared to their prior prediction.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"edurisk-engine/internal/ml"
	"edurisk-engine/internal/notify"
	"edurisk-engine/internal/schema"
)

// Prediction is one scoring result for a student. Results are append-only:
// a newer prediction supersedes but never mutates an older one, so the prior
// result stays available for comparison and audit.
type Prediction struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	Probability  float64   `json:"probability"`
	Tier         ml.Tier   `json:"tier"`
	ModelVersion string    `json:"model_version"`
	ComputedAt   time.Time `json:"computed_at"`
}

// Store persists predictions and notification events. The bbolt-backed
// implementation lives in internal/storage; the engine only needs these
// operations.
type Store interface {
	// SavePrediction appends the prediction and updates the student's
	// latest-prediction index in one transaction.
	SavePrediction(p Prediction) error
	// LatestPrediction returns the student's most recent prediction, or
	// (nil, nil) when the student has never been scored.
	LatestPrediction(studentID string) (*Prediction, error)
	// SaveNotification appends an emitted event to the notification log.
	SaveNotification(ev notify.Event) error
}

// Observer receives scoring telemetry. Implemented by metrics.Wrapper.
type Observer interface {
	PredictionsInc()
	PredictionFailuresInc()
	PredictionLatencyObserve(float64)
	RiskScoreObserve(float64)
	NotificationsInc()
	ModelAgeSet(float64)
}

// Engine wires the scoring pipeline together. The active artifact is held
// behind an atomic pointer: readers always resolve one fully published
// version per call and in-flight scores finish on the version they loaded.
type Engine struct {
	artifact   atomic.Pointer[ml.Artifact]
	thresholds ml.Thresholds
	store      Store
	sink       notify.Sink
	obs        Observer
}

// New creates an engine with validated thresholds. The artifact is installed
// separately via Swap, typically from the artifact store at startup or from
// the training pipeline after a successful retrain.
func New(thresholds ml.Thresholds, store Store, sink notify.Sink, obs Observer) (*Engine, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = notify.LogSink{}
	}
	return &Engine{
		thresholds: thresholds,
		store:      store,
		sink:       sink,
		obs:        obs,
	}, nil
}

// Swap atomically publishes a new artifact. The artifact is verified first so
// a partially built or skewed artifact can never become visible to readers.
func (e *Engine) Swap(artifact *ml.Artifact) error {
	if err := artifact.Verify(); err != nil {
		return err
	}
	old := e.artifact.Swap(artifact)
	if e.obs != nil {
		e.obs.ModelAgeSet(time.Since(artifact.TrainedAt).Seconds())
	}

	ev := log.Info().
		Str("version", artifact.Version).
		Str("schema_version", artifact.SchemaVersion).
		Float64("validation_accuracy", artifact.Validation.Accuracy)
	if old != nil {
		ev = ev.Str("replaced", old.Version)
	}
	ev.Msg("model artifact published")
	return nil
}

// CurrentArtifact returns the active artifact, or nil before the first Swap.
func (e *Engine) CurrentArtifact() *ml.Artifact {
	return e.artifact.Load()
}

// Predict scores one student against the active artifact and persists the
// result. It emits at most one notification event, and only when the new
// tier strictly outranks the stored prior tier. The first prediction for a
// student never notifies.
func (e *Engine) Predict(ctx context.Context, studentID string, record schema.StudentRecord) (*Prediction, error) {
	artifact := e.artifact.Load()
	return e.predictWith(ctx, artifact, e.thresholds, studentID, record)
}

// PredictBatch scores a set of students against a single artifact and
// threshold snapshot, so every student in the run is compared on identical
// boundaries even if a retrain publishes mid-batch.
func (e *Engine) PredictBatch(ctx context.Context, records map[string]schema.StudentRecord) (map[string]*Prediction, error) {
	artifact := e.artifact.Load()
	thresholds := e.thresholds

	results := make(map[string]*Prediction, len(records))
	for studentID, record := range records {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		p, err := e.predictWith(ctx, artifact, thresholds, studentID, record)
		if err != nil {
			return results, fmt.Errorf("student %s: %w", studentID, err)
		}
		results[studentID] = p
	}
	return results, nil
}

func (e *Engine) predictWith(ctx context.Context, artifact *ml.Artifact, thresholds ml.Thresholds, studentID string, record schema.StudentRecord) (*Prediction, error) {
	start := time.Now()
	if e.obs != nil {
		defer func() {
			e.obs.PredictionLatencyObserve(time.Since(start).Seconds())
		}()
	}

	if artifact == nil {
		e.fail()
		return nil, fmt.Errorf("no model artifact published")
	}

	if err := record.Validate(); err != nil {
		e.fail()
		return nil, err
	}

	vec, err := artifact.Schema.Encode(record)
	if err != nil {
		e.fail()
		return nil, err
	}

	probability, err := artifact.Score(vec)
	if err != nil {
		e.fail()
		return nil, err
	}

	prediction := Prediction{
		ID:           uuid.NewString(),
		StudentID:    studentID,
		Probability:  probability,
		Tier:         ml.Categorize(probability, thresholds),
		ModelVersion: artifact.Version,
		ComputedAt:   time.Now().UTC(),
	}

	prior, err := e.store.LatestPrediction(studentID)
	if err != nil {
		e.fail()
		return nil, fmt.Errorf("load prior prediction: %w", err)
	}

	if err := e.store.SavePrediction(prediction); err != nil {
		e.fail()
		return nil, fmt.Errorf("persist prediction: %w", err)
	}

	if e.obs != nil {
		e.obs.PredictionsInc()
		e.obs.RiskScoreObserve(probability)
	}

	log.Debug().
		Str("student_id", studentID).
		Float64("probability", probability).
		Str("tier", string(prediction.Tier)).
		Str("model_version", artifact.Version).
		Msg("prediction computed")

	e.detectTransition(ctx, prior, prediction)
	return &prediction, nil
}

// detectTransition applies the change-detection rule: notify only on a
// strict tier increase. Downgrades are logged for audit but never alert.
func (e *Engine) detectTransition(ctx context.Context, prior *Prediction, current Prediction) {
	if prior == nil {
		return
	}

	priorRank := prior.Tier.Rank()
	newRank := current.Tier.Rank()

	if newRank <= priorRank {
		if newRank < priorRank {
			log.Debug().
				Str("student_id", current.StudentID).
				Str("prior_tier", string(prior.Tier)).
				Str("new_tier", string(current.Tier)).
				Msg("risk tier decreased, no notification")
		}
		return
	}

	ev := notify.Event{
		ID:          uuid.NewString(),
		StudentID:   current.StudentID,
		PriorTier:   prior.Tier,
		NewTier:     current.Tier,
		Reason:      transitionReason(prior.Tier, current.Tier),
		TriggeredAt: current.ComputedAt,
	}

	if err := e.store.SaveNotification(ev); err != nil {
		log.Error().Err(err).Str("student_id", current.StudentID).Msg("failed to persist notification event")
		return
	}
	if err := e.sink.Emit(ctx, ev); err != nil {
		log.Error().Err(err).Str("student_id", current.StudentID).Msg("notification sink failed")
	}
	if e.obs != nil {
		e.obs.NotificationsInc()
	}
}

func transitionReason(prior, current ml.Tier) string {
	jump := current.Rank() - prior.Rank()
	if jump >= 2 {
		return fmt.Sprintf("risk tier jumped two levels from %s to %s", prior, current)
	}
	return fmt.Sprintf("risk tier rose from %s to %s", prior, current)
}

func (e *Engine) fail() {
	if e.obs != nil {
		e.obs.PredictionFailuresInc()
	}
}
