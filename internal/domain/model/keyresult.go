// Package model contains the plain data records exchanged between storage,
// the progress engine and the HTTP layer.
package model

import (
	"fmt"
	"math"
	"strings"
)

// KRType governs formatting and whether direction/aggregation are meaningful.
type KRType string

const (
	KRTypeMetric    KRType = "metric"
	KRTypeCount     KRType = "count"
	KRTypeMilestone KRType = "milestone"
	KRTypeRate      KRType = "rate"
	KRTypeAverage   KRType = "average"
)

// Valid reports whether t is a known key result type.
func (t KRType) Valid() bool {
	switch t {
	case KRTypeMetric, KRTypeCount, KRTypeMilestone, KRTypeRate, KRTypeAverage:
		return true
	}
	return false
}

// Direction tells whether progress is measured toward a high or low target.
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
	DirectionMaintain Direction = "maintain"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	switch d {
	case DirectionIncrease, DirectionDecrease, DirectionMaintain:
		return true
	}
	return false
}

// Aggregation controls how quarter targets are interpreted.
// Only Cumulative and ResetQuarterly are computed; the rest are display labels.
type Aggregation string

const (
	AggregationCumulative     Aggregation = "cumulative"
	AggregationResetQuarterly Aggregation = "reset_quarterly"
	AggregationLatest         Aggregation = "latest"
	AggregationAverage        Aggregation = "average"
	AggregationMax            Aggregation = "max"
	AggregationMin            Aggregation = "min"
)

// Valid reports whether a is a known aggregation.
func (a Aggregation) Valid() bool {
	switch a {
	case AggregationCumulative, AggregationResetQuarterly,
		AggregationLatest, AggregationAverage, AggregationMax, AggregationMin:
		return true
	}
	return false
}

// KeyResult is the tracked objective metric (table annual_krs).
type KeyResult struct {
	ID           string      `json:"id" yaml:"id"`
	Title        string      `json:"title,omitempty" yaml:"title"`
	Type         KRType      `json:"kr_type" yaml:"kr_type"`
	Direction    Direction   `json:"direction" yaml:"direction"`
	Aggregation  Aggregation `json:"aggregation" yaml:"aggregation"`
	StartValue   float64     `json:"start_value" yaml:"start_value"`
	TargetValue  float64     `json:"target_value" yaml:"target_value"`
	CurrentValue float64     `json:"current_value" yaml:"current_value"`
	Unit         string      `json:"unit,omitempty" yaml:"unit"`
	PlanYear     int         `json:"plan_year" yaml:"plan_year"`
}

// Normalize fills defaults and enforces the milestone invariant
// (target 1, start 0, current in {0,1}).
func (kr *KeyResult) Normalize() {
	if kr.Type == "" {
		kr.Type = KRTypeMetric
	}
	if kr.Direction == "" {
		kr.Direction = DirectionIncrease
	}
	if kr.Aggregation == "" {
		kr.Aggregation = AggregationCumulative
	}
	kr.Unit = strings.TrimSpace(kr.Unit)
	if kr.Type == KRTypeMilestone {
		kr.StartValue = 0
		kr.TargetValue = 1
		if kr.CurrentValue >= 1 {
			kr.CurrentValue = 1
		} else {
			kr.CurrentValue = 0
		}
	}
}

// Validate checks enum fields and numeric sanity.
func (kr KeyResult) Validate() error {
	switch {
	case !kr.Type.Valid():
		return fmt.Errorf("%w: unknown kr_type %q", ErrInvalidKeyResult, kr.Type)
	case !kr.Direction.Valid():
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidKeyResult, kr.Direction)
	case !kr.Aggregation.Valid():
		return fmt.Errorf("%w: unknown aggregation %q", ErrInvalidKeyResult, kr.Aggregation)
	case !finite(kr.StartValue), !finite(kr.TargetValue), !finite(kr.CurrentValue):
		return fmt.Errorf("%w: values must be finite", ErrInvalidKeyResult)
	case kr.PlanYear < 0:
		return fmt.Errorf("%w: plan_year must not be negative", ErrInvalidKeyResult)
	}
	return nil
}

// QuarterTarget is a sub-goal for one quarter of a KR's plan year.
type QuarterTarget struct {
	ID          string  `json:"id" yaml:"id"`
	KeyResultID string  `json:"annual_kr_id" yaml:"annual_kr_id"`
	Quarter     int     `json:"quarter" yaml:"quarter"`
	PlanYear    int     `json:"plan_year" yaml:"plan_year"`
	TargetValue float64 `json:"target_value" yaml:"target_value"`
	Notes       string  `json:"notes,omitempty" yaml:"notes"`
}

// Validate checks the quarter range and target value.
func (q QuarterTarget) Validate() error {
	if q.Quarter < 1 || q.Quarter > 4 {
		return fmt.Errorf("%w: quarter must be 1-4, got %d", ErrInvalidQuarterTarget, q.Quarter)
	}
	if !finite(q.TargetValue) {
		return fmt.Errorf("%w: target_value must be finite", ErrInvalidQuarterTarget)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
