// Package training builds and refreshes the dropout risk classifier from
// labeled historical data. A run fits the feature encoding and the tree
// ensemble strictly on the training partition, evaluates on the held-out
// partition, and only produces a ModelArtifact when validation quality clears
// the configured acceptance bar. At most one run per pipeline is in flight at
// a time.
package training

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"edurisk-engine/internal/dataset"
	"edurisk-engine/internal/features"
	"edurisk-engine/internal/ml"
	"edurisk-engine/internal/schema"
)

// ErrRetrainInProgress is returned when a training run is requested while
// another run for the same pipeline is still in flight. Callers retry later;
// requests are never queued silently.
var ErrRetrainInProgress = errors.New("training run already in progress")

// QualityBelowThresholdError reports a retrain whose validation metrics did
// not meet the acceptance bar. The previously deployed artifact stays active.
type QualityBelowThresholdError struct {
	Accuracy    float64
	MinAccuracy float64
}

func (e *QualityBelowThresholdError) Error() string {
	return fmt.Sprintf("model quality below threshold: validation accuracy %.4f < required %.4f", e.Accuracy, e.MinAccuracy)
}

// Config controls one pipeline's training behaviour. The split seed is fixed
// so evaluation metrics are reproducible for a given dataset.
type Config struct {
	SplitRatio           float64
	Seed                 int64
	MinAccuracy          float64
	AllowUnknownCategory bool
	Forest               ml.ForestConfig
	Thresholds           ml.Thresholds
}

// Observer receives training telemetry. Implemented by metrics.Wrapper.
type Observer interface {
	TrainingRunsInc()
	TrainingFailuresInc()
	TrainingDurationObserve(float64)
	ValidationAccuracySet(float64)
}

// Pipeline trains model artifacts. The TryLock-style guard serializes runs:
// a second concurrent request fails fast with ErrRetrainInProgress.
type Pipeline struct {
	cfg     Config
	obs     Observer
	running chan struct{}
}

func New(cfg Config, obs Observer) *Pipeline {
	p := &Pipeline{cfg: cfg, obs: obs, running: make(chan struct{}, 1)}
	return p
}

// Train runs the full pipeline on the dataset and returns a verified,
// ready-to-publish artifact. Cancellation is cooperative and checked between
// stages; a cancelled or failed run never yields a partial artifact.
func (p *Pipeline) Train(ctx context.Context, ds *dataset.Dataset) (*ml.Artifact, error) {
	select {
	case p.running <- struct{}{}:
	default:
		return nil, ErrRetrainInProgress
	}
	defer func() { <-p.running }()

	start := time.Now()
	artifact, err := p.run(ctx, ds)

	if p.obs != nil {
		p.obs.TrainingDurationObserve(time.Since(start).Seconds())
		if err != nil {
			p.obs.TrainingFailuresInc()
		} else {
			p.obs.TrainingRunsInc()
			p.obs.ValidationAccuracySet(artifact.Validation.Accuracy)
		}
	}

	return artifact, err
}

func (p *Pipeline) run(ctx context.Context, ds *dataset.Dataset) (*ml.Artifact, error) {
	if len(ds.Records) < 10 {
		return nil, fmt.Errorf("dataset %s too small to train on: %d records", ds.Version, len(ds.Records))
	}

	trainIdx, valIdx := stratifiedSplit(ds.Records, p.cfg.SplitRatio, p.cfg.Seed)

	log.Info().
		Str("dataset_version", ds.Version).
		Int("train_records", len(trainIdx)).
		Int("validation_records", len(valIdx)).
		Msg("training run started")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Encoding parameters come from the training partition only, so no
	// information from the validation rows leaks into the fit.
	trainRecords := make([]schema.StudentRecord, len(trainIdx))
	for i, idx := range trainIdx {
		trainRecords[i] = ds.Records[idx].Record
	}
	encSchema, err := features.Fit(trainRecords, p.cfg.AllowUnknownCategory)
	if err != nil {
		return nil, fmt.Errorf("fit encoder: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trainVecs, trainLabels, err := encodePartition(encSchema, ds.Records, trainIdx)
	if err != nil {
		return nil, fmt.Errorf("encode training partition: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	forest, err := ml.TrainForest(p.cfg.Forest, trainVecs, trainLabels)
	if err != nil {
		return nil, fmt.Errorf("train ensemble: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	valVecs, valLabels, err := encodePartition(encSchema, ds.Records, valIdx)
	if err != nil {
		return nil, fmt.Errorf("encode validation partition: %w", err)
	}

	metrics := evaluate(forest, valVecs, valLabels, p.cfg.Thresholds)

	log.Info().
		Float64("accuracy", metrics.Accuracy).
		Float64("dropout_rate", metrics.DropoutRate).
		Int("samples", metrics.Samples).
		Msg("validation complete")

	if metrics.Accuracy < p.cfg.MinAccuracy {
		return nil, &QualityBelowThresholdError{Accuracy: metrics.Accuracy, MinAccuracy: p.cfg.MinAccuracy}
	}

	trainedAt := time.Now().UTC()
	artifact := &ml.Artifact{
		Version:        ml.NewArtifactVersion(trainedAt),
		SchemaVersion:  encSchema.Version,
		DatasetVersion: ds.Version,
		TrainedAt:      trainedAt,
		Validation:     metrics,
		Schema:         encSchema,
		Forest:         forest,
	}
	if err := artifact.Verify(); err != nil {
		return nil, err
	}

	log.Info().
		Str("version", artifact.Version).
		Str("schema_version", artifact.SchemaVersion).
		Str("dataset_version", ds.Version).
		Msg("training run produced artifact")

	return artifact, nil
}

// stratifiedSplit partitions record indices so each outcome class appears in
// the validation set at its dataset-wide rate. The shuffle uses the fixed
// configured seed so repeated runs on the same dataset evaluate on the same
// partition.
func stratifiedSplit(records []schema.LabeledRecord, ratio float64, seed int64) (train, validation []int) {
	byOutcome := make(map[schema.Outcome][]int)
	for i, r := range records {
		byOutcome[r.Outcome] = append(byOutcome[r.Outcome], i)
	}

	outcomes := make([]schema.Outcome, 0, len(byOutcome))
	for o := range byOutcome {
		outcomes = append(outcomes, o)
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i] < outcomes[j] })

	rng := rand.New(rand.NewSource(seed))
	for _, o := range outcomes {
		group := byOutcome[o]
		rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })

		cut := int(float64(len(group)) * ratio)
		validation = append(validation, group[:cut]...)
		train = append(train, group[cut:]...)
	}

	sort.Ints(train)
	sort.Ints(validation)
	return train, validation
}

func encodePartition(s *features.Schema, records []schema.LabeledRecord, idx []int) ([][]float64, []bool, error) {
	vecs := make([][]float64, len(idx))
	labels := make([]bool, len(idx))

	for i, recIdx := range idx {
		vec, err := s.Encode(records[recIdx].Record)
		if err != nil {
			return nil, nil, fmt.Errorf("record %d: %w", recIdx, err)
		}
		vecs[i] = vec
		labels[i] = records[recIdx].Outcome == schema.OutcomeDropout
	}

	return vecs, labels, nil
}

// evaluate scores the validation partition and derives accuracy at the 0.5
// decision point, precision/recall at both risk-tier boundaries, and a
// 10-bucket calibration table.
func evaluate(forest *ml.Forest, vecs [][]float64, labels []bool, thresholds ml.Thresholds) ml.ValidationMetrics {
	probs := make([]float64, len(vecs))
	for i, v := range vecs {
		probs[i] = forest.Score(v)
	}

	correct, dropouts := 0, 0
	for i, label := range labels {
		if (probs[i] >= 0.5) == label {
			correct++
		}
		if label {
			dropouts++
		}
	}

	m := ml.ValidationMetrics{
		Samples:     len(labels),
		DropoutRate: ratio(dropouts, len(labels)),
		Accuracy:    ratio(correct, len(labels)),
		Boundaries: []ml.BoundaryMetrics{
			boundaryMetrics(probs, labels, thresholds.High),
			boundaryMetrics(probs, labels, thresholds.Medium),
		},
		Calibration: calibration(probs, labels),
	}
	return m
}

func boundaryMetrics(probs []float64, labels []bool, threshold float64) ml.BoundaryMetrics {
	var tp, fp, fn int
	for i, p := range probs {
		positive := p >= threshold
		switch {
		case positive && labels[i]:
			tp++
		case positive && !labels[i]:
			fp++
		case !positive && labels[i]:
			fn++
		}
	}

	return ml.BoundaryMetrics{
		Threshold: threshold,
		Precision: ratio(tp, tp+fp),
		Recall:    ratio(tp, tp+fn),
	}
}

func calibration(probs []float64, labels []bool) []ml.CalibrationBucket {
	const buckets = 10
	sums := make([]float64, buckets)
	observed := make([]int, buckets)
	counts := make([]int, buckets)

	for i, p := range probs {
		b := int(p * buckets)
		if b >= buckets {
			b = buckets - 1
		}
		sums[b] += p
		counts[b]++
		if labels[i] {
			observed[b]++
		}
	}

	out := make([]ml.CalibrationBucket, buckets)
	for b := 0; b < buckets; b++ {
		out[b] = ml.CalibrationBucket{
			Lo:    float64(b) / buckets,
			Hi:    float64(b+1) / buckets,
			Count: counts[b],
		}
		if counts[b] > 0 {
			out[b].MeanPredicted = sums[b] / float64(counts[b])
			out[b].ObservedRate = float64(observed[b]) / float64(counts[b])
		}
	}
	return out
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
