package loadtest

import "time"

// Defaults.
const (
	defaultKeyResults     = 20
	defaultCheckInsPerKR  = 12
	defaultDuplicateEvery = 5
	defaultTimeout        = 30 * time.Second
	defaultWaitTimeout    = 2 * time.Minute
	defaultPollInterval   = 250 * time.Millisecond
	workerMultiplier      = 2
)

// Submission outcomes.
const (
	outcomeAccepted  = "accepted"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)
