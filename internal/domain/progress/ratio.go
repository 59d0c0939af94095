// Package progress turns a key result's raw numbers and check-in history into
// progress ratios, time-expected baselines, pace buckets, forecasts and
// per-quarter breakdowns.
//
// Everything here is pure: no I/O, no shared mutable state. Callers must pass
// a consistent snapshot (key result, quarter targets and check-ins read at the
// same logical point in time).
package progress

import (
	"math"

	"github.com/okian/krpace/internal/domain/model"
)

// Ratio converts a raw value into a progress ratio in [0,1].
//
// With target > start the value is interpolated and clamped. Otherwise
// (zero or inverted range) the result is binary: 1 when current >= target,
// else 0.
func Ratio(current, start, target float64) float64 {
	return clamp01(rawRatio(current, start, target))
}

// rawRatio is Ratio without the clamp. Overachievement stays above 1 and
// regression below start stays negative.
func rawRatio(current, start, target float64) float64 {
	if span := target - start; span > 0 {
		return (current - start) / span
	}
	if current >= target {
		return 1
	}
	return 0
}

// keyResultRatio applies Ratio with the key result's type and orientation.
// Milestones are binary. A decreasing KR configured with start > target is
// measured with the same interpolation, oriented toward the lower target.
func keyResultRatio(kr model.KeyResult, current float64) float64 {
	return clamp01(keyResultRawRatio(kr, current))
}

func keyResultRawRatio(kr model.KeyResult, current float64) float64 {
	if kr.Type == model.KRTypeMilestone {
		return milestoneRatio(current)
	}
	if decreasing(kr) {
		return rawRatio(-current, -kr.StartValue, -kr.TargetValue)
	}
	return rawRatio(current, kr.StartValue, kr.TargetValue)
}

func milestoneRatio(current float64) float64 {
	if current >= 1 {
		return 1
	}
	return 0
}

func decreasing(kr model.KeyResult) bool {
	return kr.Direction == model.DirectionDecrease && kr.StartValue > kr.TargetValue
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
