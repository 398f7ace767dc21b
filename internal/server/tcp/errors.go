package tcp

import (
	"errors"
)

// ErrWouldBlock is returned when an operation can't progress without blocking. It's benign
// and means that the descriptor must be retried on the next readiness notification.
var ErrWouldBlock = errors.New("operation would block")

// ConnectionError is a socket-level failure. It's never reported to the peer, the
// connection is just torn down silently.
type ConnectionError struct {
	Op  string
	Err error
}

func (c ConnectionError) Error() string {
	return "tcp: " + c.Op + ": " + c.Err.Error()
}

func (c ConnectionError) Unwrap() error {
	return c.Err
}

func opError(op string, err error) error {
	return ConnectionError{Op: op, Err: err}
}
