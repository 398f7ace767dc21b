//go:build linux

package poll

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const readEvents = unix.EPOLLIN | unix.EPOLLRDHUP

// Poller is a level-triggered epoll instance. It isn't safe for concurrent use, except
// Wake, which may be called from any goroutine, even after Close.
type Poller struct {
	epfd   int
	wakefd int
	events []unix.EpollEvent
	// mu guards wakefd against being closed while Wake writes to it
	mu     sync.Mutex
	closed bool
}

// New creates an epoll instance with an eventfd already registered in it, so the waiting
// might be interrupted by Wake.
func New(maxEvents int) (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}

	p := &Poller{
		epfd:   epfd,
		wakefd: wakefd,
		events: make([]unix.EpollEvent, maxEvents),
	}

	if err = p.ctl(unix.EPOLL_CTL_ADD, wakefd, unix.EPOLLIN); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, err
	}

	return p, nil
}

// Add registers the descriptor for read readiness.
func (p *Poller) Add(fd int) error {
	return p.ctl(unix.EPOLL_CTL_ADD, fd, readEvents)
}

// Modify switches the interest of the descriptor. If wantWrite is set, the descriptor is
// watched for write readiness only, otherwise for read readiness only. Errors and hangups
// are reported in both cases.
func (p *Poller) Modify(fd int, wantWrite bool) error {
	events := uint32(readEvents)
	if wantWrite {
		events = unix.EPOLLOUT
	}

	return p.ctl(unix.EPOLL_CTL_MOD, fd, events)
}

// Remove unregisters the descriptor. It must be called before the descriptor is closed.
func (p *Poller) Remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks until at least one descriptor is ready or the timeout expires. Negative
// timeout means waiting infinitely. Returned events are appended to out.
func (p *Poller) Wait(timeout time.Duration, out []Event) ([]Event, error) {
	msec := -1
	if timeout >= 0 {
		msec = int(timeout.Milliseconds())
	}

	n, err := unix.EpollWait(p.epfd, p.events, msec)
	switch err {
	case nil:
	case unix.EINTR:
		return out, nil
	default:
		return out, err
	}

	for _, ev := range p.events[:n] {
		fd := int(ev.Fd)
		if fd == p.wakefd {
			p.drainWakeup()
			out = append(out, Event{FD: fd, Wakeup: true})
			continue
		}

		out = append(out, Event{
			FD:       fd,
			// half-closed peer is reported as readable, so the following read observes EOF
			Readable: ev.Events&readEvents != 0,
			Writable: ev.Events&unix.EPOLLOUT != 0,
			Hangup:   ev.Events&unix.EPOLLHUP != 0,
			Error:    ev.Events&unix.EPOLLERR != 0,
		})
	}

	return out, nil
}

// Wake interrupts the current or the next Wait call. It's a no-op after Close.
func (p *Poller) Wake() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	var one = [8]byte{1}
	_, err := unix.Write(p.wakefd, one[:])
	if err == unix.EAGAIN {
		// the counter is already non-zero, so the waiter is going to be woken anyway
		return nil
	}

	return err
}

func (p *Poller) drainWakeup() {
	var buff [8]byte
	_, _ = unix.Read(p.wakefd, buff[:])
}

// Close releases the descriptors. Repeated calls are no-ops.
func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	_ = unix.Close(p.wakefd)
	return unix.Close(p.epfd)
}

func (p *Poller) ctl(op, fd int, events uint32) error {
	return unix.EpollCtl(p.epfd, op, fd, &unix.EpollEvent{
		Events: events,
		Fd:     int32(fd),
	})
}
