package progress

import "errors"

// Sentinel kinds for engine configuration errors.
var (
	ErrInvalidThresholds = errors.New("invalid pace thresholds")
	ErrInvalidLocale     = errors.New("invalid locale")
)
