package service

import "errors"

// Sentinel kinds returned by the service in addition to the store's.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrBackpressure = errors.New("check-in queue is full")
	ErrInvalidInput = errors.New("invalid input")
)
