//go:build !linux

package poll

import (
	"time"
)

// Poller is only implemented on top of epoll.
type Poller struct{}

func New(int) (*Poller, error) {
	return nil, ErrUnsupported
}

func (*Poller) Add(int) error { return ErrUnsupported }
func (*Poller) Modify(int, bool) error { return ErrUnsupported }
func (*Poller) Remove(int) error { return ErrUnsupported }
func (*Poller) Wait(time.Duration, []Event) ([]Event, error) { return nil, ErrUnsupported }
func (*Poller) Wake() error { return ErrUnsupported }
func (*Poller) Close() error { return nil }
