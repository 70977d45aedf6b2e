package features

import (
	"errors"
	"math"
	"testing"

	"edurisk-engine/internal/schema"
)

func trainingRecords() []schema.StudentRecord {
	return []schema.StudentRecord{
		{MaritalStatus: 1, Course: 9100, Nationality: 1, Units1stGrade: 12, AgeAtEnrollment: 19, Debtor: 0},
		{MaritalStatus: 1, Course: 9100, Nationality: 1, Units1stGrade: 8, AgeAtEnrollment: 24, Debtor: 1},
		{MaritalStatus: 2, Course: 9200, Nationality: 6, Units1stGrade: 15, AgeAtEnrollment: 18, Debtor: 0},
		{MaritalStatus: 1, Course: 9300, Nationality: 1, Units1stGrade: 10, AgeAtEnrollment: 21, Debtor: 0},
	}
}

func TestFitEncodeLength(t *testing.T) {
	s, err := Fit(trainingRecords(), false)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if s.Len() != schema.NumFields {
		t.Fatalf("Len() = %d, want %d", s.Len(), schema.NumFields)
	}
	if s.Version == "" {
		t.Fatal("fitted schema has empty version")
	}

	vec, err := s.Encode(trainingRecords()[0])
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(vec) != schema.NumFields {
		t.Fatalf("encoded vector length = %d, want %d", len(vec), schema.NumFields)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	s, err := Fit(trainingRecords(), false)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	r := trainingRecords()[1]
	a, err := s.Encode(r)
	if err != nil {
		t.Fatalf("first Encode() error = %v", err)
	}
	b, err := s.Encode(r)
	if err != nil {
		t.Fatalf("second Encode() error = %v", err)
	}

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("encoding not reproducible at index %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestEncodeUnknownCategory(t *testing.T) {
	records := trainingRecords()

	strict, err := Fit(records, false)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	unseen := records[0]
	unseen.Course = 9999 // never observed at fit time

	_, err = strict.Encode(unseen)
	var unknownErr *UnknownCategoryError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("Encode() with unseen code = %v, want *UnknownCategoryError", err)
	}
	if unknownErr.Field != "course" || unknownErr.Value != 9999 {
		t.Errorf("UnknownCategoryError = %+v, want field course value 9999", unknownErr)
	}

	bucketed, err := Fit(records, true)
	if err != nil {
		t.Fatalf("Fit() with unknown bucket error = %v", err)
	}
	if _, err := bucketed.Encode(unseen); err != nil {
		t.Fatalf("Encode() with unknown bucket = %v, want nil", err)
	}
}

func TestCategoricalDenseIndexing(t *testing.T) {
	s, err := Fit(trainingRecords(), false)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	// Course codes 9100 < 9200 < 9300 must map to dense indexes 0, 1, 2.
	courseIdx := -1
	for i, f := range s.Fields {
		if f.Name == "course" {
			courseIdx = i
		}
	}
	if courseIdx < 0 {
		t.Fatal("course field missing from fitted schema")
	}

	for code, want := range map[int]float64{9100: 0, 9200: 1, 9300: 2} {
		r := trainingRecords()[0]
		r.Course = code
		vec, err := s.Encode(r)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if vec[courseIdx] != want {
			t.Errorf("course code %d encoded as %v, want %v", code, vec[courseIdx], want)
		}
	}
}

func TestContinuousStandardization(t *testing.T) {
	records := trainingRecords()
	s, err := Fit(records, false)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	gradeIdx := -1
	for i, f := range s.Fields {
		if f.Name == "units_1st_grade" {
			gradeIdx = i
		}
	}
	if gradeIdx < 0 {
		t.Fatal("units_1st_grade field missing from fitted schema")
	}

	// Standardized values over the training partition must average to ~0.
	var sum float64
	for _, r := range records {
		vec, err := s.Encode(r)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		sum += vec[gradeIdx]
	}
	if mean := sum / float64(len(records)); math.Abs(mean) > 1e-9 {
		t.Errorf("standardized training mean = %v, want ~0", mean)
	}
}

func TestFingerprintTracksEncoding(t *testing.T) {
	a, err := Fit(trainingRecords(), false)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	same, err := Fit(trainingRecords(), false)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if a.Version != same.Version {
		t.Errorf("identical fits produced different versions: %s vs %s", a.Version, same.Version)
	}

	shifted := trainingRecords()
	shifted[0].Units1stGrade = 3
	b, err := Fit(shifted, false)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if a.Version == b.Version {
		t.Error("different training statistics produced the same schema version")
	}
}

func TestFitEmptyPartition(t *testing.T) {
	if _, err := Fit(nil, false); err == nil {
		t.Error("Fit() on empty partition expected error")
	}
}
