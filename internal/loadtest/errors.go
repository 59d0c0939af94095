package loadtest

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when the run configuration is unusable.
	ErrInvalidConfig = errors.New("invalid load test config")
	// ErrUnhealthy is returned when the service health check fails.
	ErrUnhealthy = errors.New("service unhealthy")
	// ErrUnexpectedStatus is returned when the server answers with an unexpected code.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrNotDrained is returned when check-ins are still unprocessed after the wait timeout.
	ErrNotDrained = errors.New("check-ins not processed in time")
	// ErrVerification is returned when the board is inconsistent with what was submitted.
	ErrVerification = errors.New("verification failed")
)

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}
