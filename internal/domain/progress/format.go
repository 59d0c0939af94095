package progress

import (
	"fmt"
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/okian/krpace/internal/domain/model"
)

const (
	defaultRateUnit   = "%"
	maxValueFractions = 3
	rateFractions     = 1
	percent           = 100
)

var paceLabels = map[model.PaceStatus]string{
	model.PaceAhead:    "Ahead",
	model.PaceOnTrack:  "On Track",
	model.PaceAtRisk:   "At Risk",
	model.PaceOffTrack: "Off Track",
}

var krTypeLabels = map[model.KRType]string{
	model.KRTypeMetric:    "Metric",
	model.KRTypeCount:     "Count",
	model.KRTypeMilestone: "Milestone",
	model.KRTypeRate:      "Rate",
	model.KRTypeAverage:   "Average",
}

var aggregationLabels = map[model.Aggregation]string{
	model.AggregationCumulative:     "Cumulative",
	model.AggregationResetQuarterly: "Resets Quarterly",
	model.AggregationLatest:         "Latest Value",
	model.AggregationAverage:        "Average",
	model.AggregationMax:            "Maximum",
	model.AggregationMin:            "Minimum",
}

// Formatter renders values with the number conventions of one locale.
type Formatter struct {
	tag     language.Tag
	printer *message.Printer
}

// NewFormatter builds a formatter for a BCP 47 locale such as "en-US" or "de".
// An empty locale means English.
func NewFormatter(locale string) (*Formatter, error) {
	tag := language.English
	if locale != "" {
		t, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidLocale, locale, err)
		}
		tag = t
	}
	return &Formatter{tag: tag, printer: message.NewPrinter(tag)}, nil
}

var defaultFormatter = &Formatter{tag: language.English, printer: message.NewPrinter(language.English)}

// Locale returns the formatter's language tag.
func (f *Formatter) Locale() string { return f.tag.String() }

// Value renders v in the KR's unit. Rates always carry one decimal and
// default to "%"; milestones show the raw 0/1; everything else uses locale
// grouping with at most three decimals.
func (f *Formatter) Value(v float64, unit string, krType model.KRType) string {
	var s string
	switch krType {
	case model.KRTypeRate:
		if unit == "" {
			unit = defaultRateUnit
		}
		s = f.printer.Sprint(number.Decimal(v, number.Scale(rateFractions)))
	case model.KRTypeMilestone:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		s = f.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(maxValueFractions)))
	}
	return withUnit(s, unit)
}

// Progress renders a ratio as a whole percentage.
func (f *Formatter) Progress(ratio float64) string {
	return strconv.Itoa(int(math.Round(ratio*percent))) + "%"
}

// PaceStatus returns the human label of a pace bucket.
func (f *Formatter) PaceStatus(s model.PaceStatus) string {
	if l, ok := paceLabels[s]; ok {
		return l
	}
	return string(s)
}

func withUnit(s, unit string) string {
	switch unit {
	case "":
		return s
	case "%":
		return s + unit
	default:
		return s + " " + unit
	}
}

// FormatValueWithUnit renders v with English number conventions.
func FormatValueWithUnit(v float64, unit string, krType model.KRType) string {
	return defaultFormatter.Value(v, unit, krType)
}

// FormatProgress renders a ratio as a whole percentage, e.g. 0.6 -> "60%".
func FormatProgress(ratio float64) string {
	return defaultFormatter.Progress(ratio)
}

// FormatPaceStatus maps a pace bucket to its label.
func FormatPaceStatus(s model.PaceStatus) string {
	return defaultFormatter.PaceStatus(s)
}

// FormatKRType maps a KR type to its label.
func FormatKRType(t model.KRType) string {
	if l, ok := krTypeLabels[t]; ok {
		return l
	}
	return string(t)
}

// FormatAggregation maps an aggregation, including the display-only legacy
// ones, to its label.
func FormatAggregation(a model.Aggregation) string {
	if l, ok := aggregationLabels[a]; ok {
		return l
	}
	return string(a)
}

// FormatMilestone is the binary label milestones show instead of a bar.
func FormatMilestone(current float64) string {
	if milestoneRatio(current) == 1 {
		return "Completed"
	}
	return "Not Completed"
}
