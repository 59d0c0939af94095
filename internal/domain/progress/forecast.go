package progress

import (
	"sort"
	"time"

	"github.com/okian/krpace/internal/domain/model"
)

const minForecastPoints = 2

// point is one observation: x is days since period start.
type point struct {
	x float64
	y float64
}

// Forecast projects the value at periodEnd with an ordinary least-squares
// line through the check-ins inside [periodStart, periodEnd).
// It returns nil with fewer than two usable check-ins. Check-ins with a
// malformed timestamp or outside the period are skipped.
func Forecast(checkIns []model.CheckIn, periodStart, periodEnd time.Time) *float64 {
	pts := series(checkIns, periodStart, periodEnd, identity)
	return fit(pts, daysBetween(periodStart, periodEnd))
}

func identity(v float64) float64 { return v }

// series extracts the usable observations sorted by time, mapping each value
// through transform.
func series(checkIns []model.CheckIn, periodStart, periodEnd time.Time, transform func(float64) float64) []point {
	pts := make([]point, 0, len(checkIns))
	for _, ci := range checkIns {
		ts, ok := ci.Timestamp()
		if !ok || ts.Before(periodStart) || !ts.Before(periodEnd) {
			continue
		}
		pts = append(pts, point{x: daysBetween(periodStart, ts), y: transform(ci.Value)})
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].x < pts[j].x })
	return pts
}

// fit evaluates the regression line at x = atDay.
func fit(pts []point, atDay float64) *float64 {
	n := len(pts)
	if n < minForecastPoints {
		return nil
	}

	var sumX, sumY float64
	for _, p := range pts {
		sumX += p.x
		sumY += p.y
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var sxx, sxy float64
	for _, p := range pts {
		dx := p.x - meanX
		sxx += dx * dx
		sxy += dx * (p.y - meanY)
	}

	// All observations on the same instant: no trend, use the mean.
	if sxx == 0 {
		return &meanY
	}

	slope := sxy / sxx
	intercept := meanY - slope*meanX
	v := slope*atDay + intercept
	return &v
}

// latest returns the most recent check-in with a parseable timestamp.
func latest(checkIns []model.CheckIn) (model.CheckIn, time.Time, bool) {
	var (
		best   model.CheckIn
		bestTS time.Time
		found  bool
	)
	for _, ci := range checkIns {
		ts, ok := ci.Timestamp()
		if !ok {
			continue
		}
		if !found || ts.After(bestTS) {
			best, bestTS, found = ci, ts, true
		}
	}
	return best, bestTS, found
}
