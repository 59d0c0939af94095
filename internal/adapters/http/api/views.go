package api

import (
	"github.com/okian/krpace/internal/domain/model"
	"github.com/okian/krpace/internal/domain/progress"
)

type keyResultView struct {
	model.KeyResult
	TypeLabel        string `json:"kr_type_label"`
	AggregationLabel string `json:"aggregation_label"`
	CurrentLabel     string `json:"current_label"`
	TargetLabel      string `json:"target_label"`
	MilestoneLabel   string `json:"milestone_label,omitempty"`
}

func newKeyResultView(f *progress.Formatter, kr model.KeyResult) keyResultView {
	v := keyResultView{
		KeyResult:        kr,
		TypeLabel:        progress.FormatKRType(kr.Type),
		AggregationLabel: progress.FormatAggregation(kr.Aggregation),
		CurrentLabel:     f.Value(kr.CurrentValue, kr.Unit, kr.Type),
		TargetLabel:      f.Value(kr.TargetValue, kr.Unit, kr.Type),
	}
	if kr.Type == model.KRTypeMilestone {
		v.MilestoneLabel = progress.FormatMilestone(kr.CurrentValue)
	}
	return v
}

type progressView struct {
	progress.Result
	ProgressLabel      string `json:"progress_label"`
	ExpectedLabel      string `json:"expected_progress_label"`
	ExpectedValueLabel string `json:"expected_value_label"`
	PaceLabel          string `json:"pace_label"`
	CurrentLabel       string `json:"current_label"`
	ForecastLabel      string `json:"forecast_label,omitempty"`
}

func newProgressView(f *progress.Formatter, kr model.KeyResult, res progress.Result) progressView {
	v := progressView{
		Result:             res,
		ProgressLabel:      f.Progress(res.Progress),
		ExpectedLabel:      f.Progress(res.ExpectedProgress),
		ExpectedValueLabel: f.Value(res.ExpectedValue, kr.Unit, kr.Type),
		PaceLabel:          f.PaceStatus(res.PaceStatus),
		CurrentLabel:       f.Value(res.CurrentValue, kr.Unit, kr.Type),
	}
	if res.ForecastValue != nil {
		v.ForecastLabel = f.Value(*res.ForecastValue, kr.Unit, kr.Type)
	}
	return v
}

type quarterView struct {
	progress.QuarterProgress
	ProgressLabel string `json:"progress_label"`
	PaceLabel     string `json:"pace_label"`
	CurrentLabel  string `json:"current_label"`
	TargetLabel   string `json:"target_label"`
}

func newQuarterViews(f *progress.Formatter, kr model.KeyResult, quarters []progress.QuarterProgress) []quarterView {
	out := make([]quarterView, 0, len(quarters))
	for _, q := range quarters {
		out = append(out, quarterView{
			QuarterProgress: q,
			ProgressLabel:   f.Progress(q.Progress),
			PaceLabel:       f.PaceStatus(q.PaceStatus),
			CurrentLabel:    f.Value(q.CurrentValue, kr.Unit, kr.Type),
			TargetLabel:     f.Value(q.Target, kr.Unit, kr.Type),
		})
	}
	return out
}

type boardEntryView struct {
	KeyResult keyResultView `json:"key_result"`
	Progress  progressView  `json:"progress"`
}
