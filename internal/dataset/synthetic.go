package dataset

import (
	"fmt"
	"math"
	"math/rand"

	"edurisk-engine/internal/schema"
)

var nationalityCodes = []int{1, 2, 6, 11, 13, 14, 17, 21, 25, 26, 32, 41, 62, 100, 101, 103, 105, 108, 109}

// GenerateSynthetic produces a deterministic labeled dataset with realistic
// risk-factor correlations: weak first-year performance, unpaid tuition and
// debt push the dropout probability up, scholarships and strong grades pull
// it down. Used for bootstrap deployments and pipeline tests.
func GenerateSynthetic(n int, seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))

	records := make([]schema.LabeledRecord, 0, n)
	for i := 0; i < n; i++ {
		r, p := syntheticRecord(rng)

		var outcome schema.Outcome
		switch v := rng.Float64(); {
		case v < p:
			outcome = schema.OutcomeDropout
		case v < p+0.3:
			outcome = schema.OutcomeEnrolled
		default:
			outcome = schema.OutcomeGraduate
		}

		records = append(records, schema.LabeledRecord{Record: r, Outcome: outcome})
	}

	return &Dataset{
		Version: fmt.Sprintf("synthetic-%d-%d", n, seed),
		Records: records,
	}
}

func syntheticRecord(rng *rand.Rand) (schema.StudentRecord, float64) {
	base := clamp(rng.NormFloat64()*0.2+0.7, 0.1, 1.0)
	perf1 := clamp(base+rng.NormFloat64()*0.1, 0.1, 1.0)
	perf2 := clamp(perf1+rng.NormFloat64()*0.1, 0.1, 1.0)

	enrolled1 := 1 + rng.Intn(25)
	evals1 := int(float64(enrolled1) * (0.7 + rng.Float64()*0.3))
	approved1 := int(float64(evals1) * perf1)
	grade1 := clamp(rng.NormFloat64()*2+10+perf1*8, 0, 20)

	enrolled2 := 1 + rng.Intn(25)
	evals2 := int(float64(enrolled2) * (0.7 + rng.Float64()*0.3))
	approved2 := int(float64(evals2) * perf2)
	grade2 := clamp(rng.NormFloat64()*2+10+perf2*8, 0, 20)

	r := schema.StudentRecord{
		MaritalStatus:            weightedChoice(rng, []int{1, 2, 3, 4, 5, 6}, []float64{0.85, 0.08, 0.03, 0.02, 0.01, 0.01}),
		ApplicationMode:          1 + rng.Intn(57),
		ApplicationOrder:         weightedChoice(rng, []int{1, 2, 3, 4, 5, 6}, []float64{0.4, 0.25, 0.15, 0.1, 0.06, 0.04}),
		Course:                   9003 + rng.Intn(988),
		DaytimeEveningAttendance: binary(rng, 0.75),
		PreviousQualification:    1 + rng.Intn(51),
		Nationality:              nationalityCodes[rng.Intn(len(nationalityCodes))],
		MothersQualification:     1 + rng.Intn(46),
		FathersQualification:     1 + rng.Intn(46),
		MothersOccupation:        rng.Intn(195),
		FathersOccupation:        rng.Intn(195),
		AdmissionGrade:           clamp(rng.NormFloat64()*15+125, 95, 190),
		Displaced:                binary(rng, 0.05),
		EducationalSpecialNeeds:  binary(rng, 0.03),
		Debtor:                   binary(rng, 0.2),
		TuitionFeesUpToDate:      binary(rng, 0.85),
		Gender:                   binary(rng, 0.48),
		ScholarshipHolder:        binary(rng, 0.3),
		AgeAtEnrollment:          clamp(rng.NormFloat64()*2.5+20, 17, 35),
		International:            binary(rng, 0.08),
		Units1stCredited:         rng.Intn(20),
		Units1stEnrolled:         enrolled1,
		Units1stEvaluations:      evals1,
		Units1stApproved:         approved1,
		Units1stGrade:            round2(grade1),
		Units1stWithoutEval:      enrolled1 - evals1,
		Units2ndCredited:         rng.Intn(20),
		Units2ndEnrolled:         enrolled2,
		Units2ndEvaluations:      evals2,
		Units2ndApproved:         approved2,
		Units2ndGrade:            round2(grade2),
		Units2ndWithoutEval:      enrolled2 - evals2,
		UnemploymentRate:         round2(clamp(rng.NormFloat64()*1.5+10.8, 0, 30)),
		InflationRate:            round2(clamp(rng.NormFloat64()*0.8+1.4, -5, 20)),
		GDP:                      round2(clamp(rng.NormFloat64()*1.2+1.74, -10, 10)),
	}

	return r, dropoutProbability(r)
}

// dropoutProbability mirrors the risk-factor model behind the historical
// dataset: academic, financial and social factors stack additively.
func dropoutProbability(r schema.StudentRecord) float64 {
	p := 0.1

	if r.Units1stGrade < 9.5 {
		p += 0.3
	}
	if r.Units2ndGrade < 9.5 {
		p += 0.3
	}
	if float64(r.Units1stApproved) < float64(r.Units1stEnrolled)*0.5 {
		p += 0.2
	}
	if float64(r.Units2ndApproved) < float64(r.Units2ndEnrolled)*0.5 {
		p += 0.2
	}

	if r.Debtor == 1 {
		p += 0.15
	}
	if r.TuitionFeesUpToDate == 0 {
		p += 0.25
	}
	if r.ScholarshipHolder == 0 {
		p += 0.1
	} else {
		p -= 0.1
	}

	if r.Displaced == 1 {
		p += 0.1
	}
	if r.EducationalSpecialNeeds == 1 {
		p += 0.05
	}
	if r.AgeAtEnrollment > 23 {
		p += 0.1
	}
	if r.MaritalStatus != 1 {
		p += 0.05
	}
	if r.UnemploymentRate > 12 {
		p += 0.05
	}

	if r.Units1stGrade > 14 {
		p -= 0.1
	}
	if r.Units2ndGrade > 14 {
		p -= 0.1
	}

	return clamp(p, 0.01, 0.95)
}

func binary(rng *rand.Rand, pOne float64) int {
	if rng.Float64() < pOne {
		return 1
	}
	return 0
}

func weightedChoice(rng *rand.Rand, values []int, weights []float64) int {
	v := rng.Float64()
	acc := 0.0
	for i, w := range weights {
		acc += w
		if v < acc {
			return values[i]
		}
	}
	return values[len(values)-1]
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
