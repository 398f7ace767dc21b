package poll

import (
	"errors"
)

// Event is a readiness notification of a single descriptor.
type Event struct {
	FD       int
	Readable bool
	Writable bool
	// Hangup is set when the connection is closed in both directions.
	Hangup bool
	// Error is set when the descriptor reported an error condition.
	Error bool
	// Wakeup is set for the internal notification caused by Wake.
	Wakeup bool
}

var ErrUnsupported = errors.New("readiness polling is not supported on this platform")
