package progress

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/krpace/internal/domain/model"
)

// Default pace bands applied to the pace ratio.
const (
	defaultAheadThreshold   = 1.10
	defaultOnTrackThreshold = 0.95
	defaultAtRiskThreshold  = 0.70
)

const hoursPerDay = 24

// Thresholds are the lower bounds of the ahead, on_track and at_risk bands.
// Anything below AtRisk is off_track.
type Thresholds struct {
	Ahead   float64 `json:"ahead" koanf:"ahead"`
	OnTrack float64 `json:"on_track" koanf:"on_track"`
	AtRisk  float64 `json:"at_risk" koanf:"at_risk"`
}

// DefaultThresholds returns the standard 1.10 / 0.95 / 0.70 bands.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Ahead:   defaultAheadThreshold,
		OnTrack: defaultOnTrackThreshold,
		AtRisk:  defaultAtRiskThreshold,
	}
}

// Validate requires 0 < AtRisk < OnTrack < Ahead so the bands neither
// overlap nor leave gaps over [0, inf).
func (t Thresholds) Validate() error {
	for _, v := range []float64{t.Ahead, t.OnTrack, t.AtRisk} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: bands must be finite", ErrInvalidThresholds)
		}
	}
	if !(t.AtRisk > 0 && t.AtRisk < t.OnTrack && t.OnTrack < t.Ahead) {
		return fmt.Errorf("%w: need 0 < at_risk (%g) < on_track (%g) < ahead (%g)",
			ErrInvalidThresholds, t.AtRisk, t.OnTrack, t.Ahead)
	}
	return nil
}

// Classify maps a pace ratio to exactly one bucket. Lower bounds are closed.
func (t Thresholds) Classify(paceRatio float64) model.PaceStatus {
	switch {
	case paceRatio >= t.Ahead:
		return model.PaceAhead
	case paceRatio >= t.OnTrack:
		return model.PaceOnTrack
	case paceRatio >= t.AtRisk:
		return model.PaceAtRisk
	default:
		return model.PaceOffTrack
	}
}

// Expected is the share of the period elapsed at asOf, clamped to [0,1].
// A degenerate period (end <= start) is treated as already over.
func Expected(periodStart, periodEnd, asOf time.Time) float64 {
	if asOf.Before(periodStart) {
		return 0
	}
	if !periodEnd.After(periodStart) || !asOf.Before(periodEnd) {
		return 1
	}
	return clamp01(float64(asOf.Sub(periodStart)) / float64(periodEnd.Sub(periodStart)))
}

// PaceRatio compares actual to expected progress. Before the clock starts
// (expected == 0) there is no penalty and the ratio is 1.
func PaceRatio(progress, expected float64) float64 {
	if expected > 0 {
		return progress / expected
	}
	return 1
}

// ExpectedValue is the value the KR should have reached at the given
// expected progress.
func ExpectedValue(start, target, expected float64) float64 {
	return start + expected*(target-start)
}

// DaysRemaining counts whole days, rounded up, from asOf to periodEnd.
func DaysRemaining(periodEnd, asOf time.Time) int {
	d := math.Ceil(periodEnd.Sub(asOf).Hours() / hoursPerDay)
	if d <= 0 {
		return 0
	}
	return int(d)
}
