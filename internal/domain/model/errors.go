package model

import "errors"

// Sentinel kinds for invalid records.
var (
	ErrInvalidKeyResult     = errors.New("invalid key result")
	ErrInvalidQuarterTarget = errors.New("invalid quarter target")
	ErrInvalidCheckIn       = errors.New("invalid check-in")
	ErrMalformedTimestamp   = errors.New("malformed timestamp")
)
