package ml

import "fmt"

// Tier is a risk tier derived from a dropout probability.
type Tier string

const (
	TierLow    Tier = "Low"
	TierMedium Tier = "Medium"
	TierHigh   Tier = "High"
)

// Rank orders tiers for change detection: a notification is only warranted
// when the new tier ranks strictly above the prior one.
func (t Tier) Rank() int {
	switch t {
	case TierMedium:
		return 1
	case TierHigh:
		return 2
	default:
		return 0
	}
}

// Thresholds are the two probability boundaries that split [0,1] into
// Low/Medium/High. They are read once per scoring batch so every student in
// the same run is compared on identical boundaries.
type Thresholds struct {
	High   float64
	Medium float64
}

// InvalidThresholdError reports a misordered or out-of-range threshold pair.
// It is a startup-fatal configuration fault.
type InvalidThresholdError struct {
	High   float64
	Medium float64
}

func (e *InvalidThresholdError) Error() string {
	return fmt.Sprintf("invalid risk thresholds: high=%.4f must be greater than medium=%.4f and both within (0,1)", e.High, e.Medium)
}

// Validate checks that the thresholds are strictly ordered and inside (0,1).
func (t Thresholds) Validate() error {
	if t.High <= t.Medium || t.Medium <= 0 || t.High >= 1 {
		return &InvalidThresholdError{High: t.High, Medium: t.Medium}
	}
	return nil
}

// Categorize maps a dropout probability onto a risk tier.
//
//	p >= high            -> High
//	medium <= p < high   -> Medium
//	p < medium           -> Low
func Categorize(p float64, t Thresholds) Tier {
	switch {
	case p >= t.High:
		return TierHigh
	case p >= t.Medium:
		return TierMedium
	default:
		return TierLow
	}
}
