package ml

import (
	"encoding/json"
	"fmt"
	"time"

	"edurisk-engine/internal/features"
)

// BoundaryMetrics are precision/recall for one risk-tier boundary, treating
// "probability at or above the boundary" as a positive dropout call.
type BoundaryMetrics struct {
	Threshold float64 `json:"threshold"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// CalibrationBucket compares mean predicted probability against the observed
// dropout rate inside one probability range.
type CalibrationBucket struct {
	Lo            float64 `json:"lo"`
	Hi            float64 `json:"hi"`
	MeanPredicted float64 `json:"mean_predicted"`
	ObservedRate  float64 `json:"observed_rate"`
	Count         int     `json:"count"`
}

// ValidationMetrics summarize a training run's held-out evaluation.
type ValidationMetrics struct {
	Accuracy    float64             `json:"accuracy"`
	DropoutRate float64             `json:"dropout_rate"`
	Samples     int                 `json:"samples"`
	Boundaries  []BoundaryMetrics   `json:"boundaries"`
	Calibration []CalibrationBucket `json:"calibration"`
}

// Artifact is the deployable output of one training run: the fitted forest,
// the feature schema it was trained against, and the validation evidence.
// Artifacts are immutable once published; the training pipeline owns their
// creation and the engine reads them at scoring time.
type Artifact struct {
	Version        string            `json:"version"`
	SchemaVersion  string            `json:"schema_version"`
	DatasetVersion string            `json:"dataset_version"`
	TrainedAt      time.Time         `json:"trained_at"`
	Validation     ValidationMetrics `json:"validation"`
	Schema         *features.Schema  `json:"schema"`
	Forest         *Forest           `json:"forest"`
}

// NewArtifactVersion mints a version token for a freshly trained artifact.
func NewArtifactVersion(trainedAt time.Time) string {
	return trainedAt.UTC().Format("20060102-150405")
}

// Verify checks the artifact's internal consistency: the recorded schema
// version must match the embedded schema and the forest must have been
// trained on that schema's feature count.
func (a *Artifact) Verify() error {
	if a.Schema == nil || a.Forest == nil {
		return fmt.Errorf("artifact %s is incomplete", a.Version)
	}
	if a.Schema.Version != a.SchemaVersion {
		return &SchemaMismatchError{
			ArtifactVersion: a.Version,
			WantSchema:      a.SchemaVersion,
			GotSchema:       a.Schema.Version,
		}
	}
	if a.Forest.NumFeatures != a.Schema.Len() {
		return &SchemaMismatchError{
			ArtifactVersion: a.Version,
			WantLen:         a.Forest.NumFeatures,
			GotLen:          a.Schema.Len(),
			WantSchema:      a.SchemaVersion,
			GotSchema:       a.SchemaVersion,
		}
	}
	return nil
}

// Score validates the vector against the artifact's feature schema and
// returns the ensemble dropout probability. Identical inputs always produce
// identical output.
func (a *Artifact) Score(vec features.Vector) (float64, error) {
	if len(vec) != a.Forest.NumFeatures {
		return 0, &SchemaMismatchError{
			ArtifactVersion: a.Version,
			WantLen:         a.Forest.NumFeatures,
			GotLen:          len(vec),
			WantSchema:      a.SchemaVersion,
			GotSchema:       a.SchemaVersion,
		}
	}
	return a.Forest.Score(vec), nil
}

// Marshal serializes the artifact for the artifact store.
func (a *Artifact) Marshal() ([]byte, error) {
	return json.Marshal(a)
}

// UnmarshalArtifact decodes a stored artifact blob and verifies it.
func UnmarshalArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("unmarshal artifact: %w", err)
	}
	if err := a.Verify(); err != nil {
		return nil, err
	}
	return &a, nil
}
