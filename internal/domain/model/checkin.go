package model

import (
	"fmt"
	"strings"
	"time"
)

// CheckIn is an immutable observation of a KR's value as of RecordedAt.
// RecordedAt keeps the stored text form; use Timestamp to parse it.
type CheckIn struct {
	ID              string  `json:"id" yaml:"id"`
	KeyResultID     string  `json:"annual_kr_id" yaml:"annual_kr_id"`
	Value           float64 `json:"value" yaml:"value"`
	RecordedAt      string  `json:"recorded_at" yaml:"recorded_at"`
	QuarterTargetID string  `json:"quarter_target_id,omitempty" yaml:"quarter_target_id"`
	Note            string  `json:"note,omitempty" yaml:"note"`
	EvidenceURL     string  `json:"evidence_url,omitempty" yaml:"evidence_url"`
}

// Timestamp parses RecordedAt. ok is false when the value is malformed.
func (c CheckIn) Timestamp() (time.Time, bool) {
	t, err := ParseTimestamp(c.RecordedAt)
	return t, err == nil
}

// Validate checks the fields a check-in must carry before it is stored.
func (c CheckIn) Validate() error {
	switch {
	case strings.TrimSpace(c.KeyResultID) == "":
		return fmt.Errorf("%w: missing annual_kr_id", ErrInvalidCheckIn)
	case !finite(c.Value):
		return fmt.Errorf("%w: value must be finite", ErrInvalidCheckIn)
	}
	if _, err := ParseTimestamp(c.RecordedAt); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCheckIn, err)
	}
	return nil
}

// Layouts accepted by ParseTimestamp, covering RFC3339 and the text forms
// Postgres emits for timestamp and timestamptz columns.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// ParseTimestamp parses a stored timestamp. Values without a zone are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrMalformedTimestamp
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
}

// FormatTimestamp renders t in the canonical stored form.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
