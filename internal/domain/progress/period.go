package progress

import "time"

const monthsPerQuarter = 3

// YearPeriod returns [Jan 1, Jan 1 of the next year) for year in loc.
func YearPeriod(year int, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(1, 0, 0)
}

// QuarterPeriod returns the half-open date range of quarter (1-4) in year.
func QuarterPeriod(year, quarter int, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	month := time.Month((quarter-1)*monthsPerQuarter + 1)
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, monthsPerQuarter, 0)
}

// CurrentQuarter returns the calendar quarter of asOf, or of now when asOf is zero.
func CurrentQuarter(asOf time.Time) int {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	return (int(asOf.Month()) + monthsPerQuarter - 1) / monthsPerQuarter
}

func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / hoursPerDay
}
