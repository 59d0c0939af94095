package cli

import "errors"

var (
	// ErrSnapshotFile is returned when the snapshot file cannot be read or decoded.
	ErrSnapshotFile = errors.New("invalid snapshot file")
	// ErrInvalidFlag is returned when a flag value cannot be used.
	ErrInvalidFlag = errors.New("invalid flag")
)
