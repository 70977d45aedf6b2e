// Package schema declares the student record consumed by the risk engine:
// a fixed, ordered set of 35 typed attributes with declared domains. Records
// are validated at the boundary before encoding; a missing or out-of-domain
// value is a validation error, never a silent default.
package schema

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// NumFields is the fixed attribute count of a StudentRecord and therefore
// the length of every encoded feature vector.
const NumFields = 35

// FieldKind declares how an attribute's domain behaves for encoding.
type FieldKind int

const (
	// Categorical attributes carry institutional code values with no
	// numeric ordering (course codes, qualification codes, ...).
	Categorical FieldKind = iota
	// Binary attributes are 0/1 flags passed through unmodified.
	Binary
	// Continuous attributes are real-valued and standardized with
	// statistics captured at training time.
	Continuous
)

// FieldSpec names one attribute and its domain kind, in canonical order.
type FieldSpec struct {
	Name string
	Kind FieldKind
}

// StudentRecord is one immutable snapshot of a student's institutional,
// academic, financial and socioeconomic attributes. Domains follow the
// upstream enrollment dataset code books.
type StudentRecord struct {
	MaritalStatus            int     `json:"marital_status" validate:"oneof=1 2 3 4 5 6"`
	ApplicationMode          int     `json:"application_mode" validate:"gte=1,lte=57"`
	ApplicationOrder         int     `json:"application_order" validate:"gte=1,lte=6"`
	Course                   int     `json:"course" validate:"gte=9003,lte=9991"`
	DaytimeEveningAttendance int     `json:"daytime_evening_attendance" validate:"oneof=0 1"`
	PreviousQualification    int     `json:"previous_qualification" validate:"gte=1,lte=51"`
	Nationality              int     `json:"nationality" validate:"gte=1,lte=109"`
	MothersQualification     int     `json:"mothers_qualification" validate:"gte=1,lte=46"`
	FathersQualification     int     `json:"fathers_qualification" validate:"gte=1,lte=46"`
	MothersOccupation        int     `json:"mothers_occupation" validate:"gte=0,lte=194"`
	FathersOccupation        int     `json:"fathers_occupation" validate:"gte=0,lte=194"`
	AdmissionGrade           float64 `json:"admission_grade" validate:"gte=0,lte=200"`
	Displaced                int     `json:"displaced" validate:"oneof=0 1"`
	EducationalSpecialNeeds  int     `json:"educational_special_needs" validate:"oneof=0 1"`
	Debtor                   int     `json:"debtor" validate:"oneof=0 1"`
	TuitionFeesUpToDate      int     `json:"tuition_fees_up_to_date" validate:"oneof=0 1"`
	Gender                   int     `json:"gender" validate:"oneof=0 1"`
	ScholarshipHolder        int     `json:"scholarship_holder" validate:"oneof=0 1"`
	AgeAtEnrollment          float64 `json:"age_at_enrollment" validate:"gte=17,lte=70"`
	International            int     `json:"international" validate:"oneof=0 1"`
	Units1stCredited         int     `json:"units_1st_credited" validate:"gte=0,lte=20"`
	Units1stEnrolled         int     `json:"units_1st_enrolled" validate:"gte=0,lte=26"`
	Units1stEvaluations      int     `json:"units_1st_evaluations" validate:"gte=0,lte=45"`
	Units1stApproved         int     `json:"units_1st_approved" validate:"gte=0,lte=26"`
	Units1stGrade            float64 `json:"units_1st_grade" validate:"gte=0,lte=20"`
	Units1stWithoutEval      int     `json:"units_1st_without_evaluations" validate:"gte=0,lte=12"`
	Units2ndCredited         int     `json:"units_2nd_credited" validate:"gte=0,lte=20"`
	Units2ndEnrolled         int     `json:"units_2nd_enrolled" validate:"gte=0,lte=26"`
	Units2ndEvaluations      int     `json:"units_2nd_evaluations" validate:"gte=0,lte=45"`
	Units2ndApproved         int     `json:"units_2nd_approved" validate:"gte=0,lte=26"`
	Units2ndGrade            float64 `json:"units_2nd_grade" validate:"gte=0,lte=20"`
	Units2ndWithoutEval      int     `json:"units_2nd_without_evaluations" validate:"gte=0,lte=12"`
	UnemploymentRate         float64 `json:"unemployment_rate" validate:"gte=0,lte=30"`
	InflationRate            float64 `json:"inflation_rate" validate:"gte=-5,lte=20"`
	GDP                      float64 `json:"gdp" validate:"gte=-10,lte=10"`
}

// Fields returns the canonical field order shared by the encoder and the
// classifier. The order is part of the feature schema and must not change
// without a schema version bump.
func Fields() []FieldSpec {
	return []FieldSpec{
		{"marital_status", Categorical},
		{"application_mode", Categorical},
		{"application_order", Continuous},
		{"course", Categorical},
		{"daytime_evening_attendance", Binary},
		{"previous_qualification", Categorical},
		{"nationality", Categorical},
		{"mothers_qualification", Categorical},
		{"fathers_qualification", Categorical},
		{"mothers_occupation", Categorical},
		{"fathers_occupation", Categorical},
		{"admission_grade", Continuous},
		{"displaced", Binary},
		{"educational_special_needs", Binary},
		{"debtor", Binary},
		{"tuition_fees_up_to_date", Binary},
		{"gender", Binary},
		{"scholarship_holder", Binary},
		{"age_at_enrollment", Continuous},
		{"international", Binary},
		{"units_1st_credited", Continuous},
		{"units_1st_enrolled", Continuous},
		{"units_1st_evaluations", Continuous},
		{"units_1st_approved", Continuous},
		{"units_1st_grade", Continuous},
		{"units_1st_without_evaluations", Continuous},
		{"units_2nd_credited", Continuous},
		{"units_2nd_enrolled", Continuous},
		{"units_2nd_evaluations", Continuous},
		{"units_2nd_approved", Continuous},
		{"units_2nd_grade", Continuous},
		{"units_2nd_without_evaluations", Continuous},
		{"unemployment_rate", Continuous},
		{"inflation_rate", Continuous},
		{"gdp", Continuous},
	}
}

// Values returns the raw attribute values in canonical field order.
func (r StudentRecord) Values() [NumFields]float64 {
	return [NumFields]float64{
		float64(r.MaritalStatus),
		float64(r.ApplicationMode),
		float64(r.ApplicationOrder),
		float64(r.Course),
		float64(r.DaytimeEveningAttendance),
		float64(r.PreviousQualification),
		float64(r.Nationality),
		float64(r.MothersQualification),
		float64(r.FathersQualification),
		float64(r.MothersOccupation),
		float64(r.FathersOccupation),
		r.AdmissionGrade,
		float64(r.Displaced),
		float64(r.EducationalSpecialNeeds),
		float64(r.Debtor),
		float64(r.TuitionFeesUpToDate),
		float64(r.Gender),
		float64(r.ScholarshipHolder),
		r.AgeAtEnrollment,
		float64(r.International),
		float64(r.Units1stCredited),
		float64(r.Units1stEnrolled),
		float64(r.Units1stEvaluations),
		float64(r.Units1stApproved),
		r.Units1stGrade,
		float64(r.Units1stWithoutEval),
		float64(r.Units2ndCredited),
		float64(r.Units2ndEnrolled),
		float64(r.Units2ndEvaluations),
		float64(r.Units2ndApproved),
		r.Units2ndGrade,
		float64(r.Units2ndWithoutEval),
		r.UnemploymentRate,
		r.InflationRate,
		r.GDP,
	}
}

// FromValues rebuilds a record from raw attribute values in canonical field
// order. It is the inverse of Values; callers still validate the result.
func FromValues(v [NumFields]float64) StudentRecord {
	return StudentRecord{
		MaritalStatus:            int(v[0]),
		ApplicationMode:          int(v[1]),
		ApplicationOrder:         int(v[2]),
		Course:                   int(v[3]),
		DaytimeEveningAttendance: int(v[4]),
		PreviousQualification:    int(v[5]),
		Nationality:              int(v[6]),
		MothersQualification:     int(v[7]),
		FathersQualification:     int(v[8]),
		MothersOccupation:        int(v[9]),
		FathersOccupation:        int(v[10]),
		AdmissionGrade:           v[11],
		Displaced:                int(v[12]),
		EducationalSpecialNeeds:  int(v[13]),
		Debtor:                   int(v[14]),
		TuitionFeesUpToDate:      int(v[15]),
		Gender:                   int(v[16]),
		ScholarshipHolder:        int(v[17]),
		AgeAtEnrollment:          v[18],
		International:            int(v[19]),
		Units1stCredited:         int(v[20]),
		Units1stEnrolled:         int(v[21]),
		Units1stEvaluations:      int(v[22]),
		Units1stApproved:         int(v[23]),
		Units1stGrade:            v[24],
		Units1stWithoutEval:      int(v[25]),
		Units2ndCredited:         int(v[26]),
		Units2ndEnrolled:         int(v[27]),
		Units2ndEvaluations:      int(v[28]),
		Units2ndApproved:         int(v[29]),
		Units2ndGrade:            v[30],
		Units2ndWithoutEval:      int(v[31]),
		UnemploymentRate:         v[32],
		InflationRate:            v[33],
		GDP:                      v[34],
	}
}

// Outcome is the enrollment outcome label used for training.
type Outcome int

const (
	OutcomeGraduate Outcome = 0
	OutcomeDropout  Outcome = 1
	OutcomeEnrolled Outcome = 2
)

// Valid reports whether the label is one of the three known outcomes.
func (o Outcome) Valid() bool {
	return o == OutcomeGraduate || o == OutcomeDropout || o == OutcomeEnrolled
}

// LabeledRecord pairs a historical student snapshot with its known outcome.
type LabeledRecord struct {
	Record  StudentRecord `json:"record"`
	Outcome Outcome       `json:"outcome"`
}

// ValidationError reports the first attribute whose value falls outside its
// declared domain. The record is rejected and no prediction is produced.
type ValidationError struct {
	Field  string
	Value  interface{}
	Domain string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record validation failed: field %s value %v outside domain %q", e.Field, e.Value, e.Domain)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every attribute against its declared domain. It returns a
// *ValidationError for the first violation found, nil otherwise.
func (r StudentRecord) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		return &ValidationError{
			Field:  fe.Field(),
			Value:  fe.Value(),
			Domain: fe.Tag() + "=" + fe.Param(),
		}
	}
	return fmt.Errorf("record validation failed: %w", err)
}
