package ml

import (
	"errors"
	"testing"
	"time"

	"edurisk-engine/internal/features"
	"edurisk-engine/internal/schema"
)

func fixtureArtifact(t *testing.T) (*Artifact, features.Vector) {
	t.Helper()

	records := []schema.StudentRecord{
		{Course: 9100, Units1stGrade: 8, Units2ndGrade: 7, Debtor: 1, AgeAtEnrollment: 25},
		{Course: 9100, Units1stGrade: 9, Units2ndGrade: 8, Debtor: 1, AgeAtEnrollment: 24},
		{Course: 9200, Units1stGrade: 15, Units2ndGrade: 16, ScholarshipHolder: 1, AgeAtEnrollment: 18},
		{Course: 9200, Units1stGrade: 14, Units2ndGrade: 15, ScholarshipHolder: 1, AgeAtEnrollment: 19},
	}
	labels := []bool{true, true, false, false}

	encSchema, err := features.Fit(records, false)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	vectors := make([][]float64, len(records))
	for i, r := range records {
		vec, err := encSchema.Encode(r)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		vectors[i] = vec
	}

	forest, err := TrainForest(ForestConfig{Trees: 5, MaxDepth: 3, MinSamplesLeaf: 1, Seed: 42}, vectors, labels)
	if err != nil {
		t.Fatalf("TrainForest() error = %v", err)
	}

	trainedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return &Artifact{
		Version:        NewArtifactVersion(trainedAt),
		SchemaVersion:  encSchema.Version,
		DatasetVersion: "ds-test",
		TrainedAt:      trainedAt,
		Schema:         encSchema,
		Forest:         forest,
	}, vectors[0]
}

func TestArtifactVerify(t *testing.T) {
	a, _ := fixtureArtifact(t)

	if err := a.Verify(); err != nil {
		t.Fatalf("Verify() on consistent artifact = %v", err)
	}

	tampered := *a
	tampered.SchemaVersion = "fs-0000000000000000"
	err := tampered.Verify()
	var mismatch *SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Verify() on skewed schema version = %v, want *SchemaMismatchError", err)
	}

	incomplete := Artifact{Version: "x"}
	if err := incomplete.Verify(); err == nil {
		t.Error("Verify() on incomplete artifact expected error")
	}
}

func TestArtifactScoreLengthCheck(t *testing.T) {
	a, vec := fixtureArtifact(t)

	if _, err := a.Score(vec); err != nil {
		t.Fatalf("Score() with matching vector = %v", err)
	}

	_, err := a.Score(features.Vector{1, 2, 3})
	var mismatch *SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Score() with short vector = %v, want *SchemaMismatchError", err)
	}
}

func TestArtifactMarshalRoundTrip(t *testing.T) {
	a, vec := fixtureArtifact(t)

	want, err := a.Score(vec)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	blob, err := a.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	restored, err := UnmarshalArtifact(blob)
	if err != nil {
		t.Fatalf("UnmarshalArtifact() error = %v", err)
	}

	if restored.Version != a.Version || restored.SchemaVersion != a.SchemaVersion {
		t.Errorf("restored artifact versions differ: %+v", restored)
	}

	got, err := restored.Score(vec)
	if err != nil {
		t.Fatalf("restored Score() error = %v", err)
	}
	if got != want {
		t.Errorf("restored artifact scores %v, original %v", got, want)
	}
}

func TestUnmarshalArtifactRejectsGarbage(t *testing.T) {
	if _, err := UnmarshalArtifact([]byte("{not json")); err == nil {
		t.Error("UnmarshalArtifact() on garbage expected error")
	}
	if _, err := UnmarshalArtifact([]byte(`{"version":"v1"}`)); err == nil {
		t.Error("UnmarshalArtifact() on incomplete artifact expected error")
	}
}
