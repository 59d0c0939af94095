package model

// Snapshot is a KR read together with its quarter targets and check-ins.
// All three slices must describe the same logical point in time.
type Snapshot struct {
	KeyResult      KeyResult       `json:"key_result" yaml:"key_result"`
	QuarterTargets []QuarterTarget `json:"quarter_targets" yaml:"quarter_targets"`
	CheckIns       []CheckIn       `json:"check_ins" yaml:"check_ins"`
}

// PaceStatus classifies actual progress against time-expected progress.
type PaceStatus string

const (
	PaceAhead    PaceStatus = "ahead"
	PaceOnTrack  PaceStatus = "on_track"
	PaceAtRisk   PaceStatus = "at_risk"
	PaceOffTrack PaceStatus = "off_track"
)

// PaceStatuses lists every status in descending order of health.
var PaceStatuses = []PaceStatus{PaceAhead, PaceOnTrack, PaceAtRisk, PaceOffTrack}

// Healthy reports whether s is ahead or on track.
func (s PaceStatus) Healthy() bool {
	return s == PaceAhead || s == PaceOnTrack
}
