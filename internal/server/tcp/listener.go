package tcp

import (
	"net"

	"golang.org/x/sys/unix"
)

// Listener is a non-blocking listening socket. It remembers the address it's bound to, so
// it can be rebuilt at the same address after a failure.
type Listener struct {
	fd      int
	addr    *net.TCPAddr
	backlog int
}

// Listen resolves the address, binds a socket to it and starts listening. If the port is
// zero, the actually bound one is used for rebuilding.
func Listen(addr string, backlog int) (*Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}

	l := &Listener{
		addr:    tcpAddr,
		backlog: backlog,
	}

	if err = l.listen(); err != nil {
		return nil, err
	}

	return l, nil
}

func (l *Listener) listen() error {
	domain, sa := toSockaddr(l.addr)
	fd, err := unix.Socket(domain, unix.SOCK_STREAM, 0)
	if err != nil {
		return opError("socket", err)
	}

	unix.CloseOnExec(fd)

	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return opError("setsockopt", err)
	}

	if err = unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return opError("setnonblock", err)
	}

	if err = unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return opError("bind", err)
	}

	if err = unix.Listen(fd, l.backlog); err != nil {
		_ = unix.Close(fd)
		return opError("listen", err)
	}

	bound, err := unix.Getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return opError("getsockname", err)
	}

	if addr, ok := fromSockaddr(bound).(*net.TCPAddr); ok {
		l.addr = addr
	}

	l.fd = fd
	return nil
}

func (l *Listener) FD() int {
	return l.fd
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.addr
}

// Accept accepts a single pending connection and switches it into the non-blocking mode.
// ErrWouldBlock is returned if there are no pending connections. If the accepted
// descriptor can't be configured, it's closed and the error is returned.
func (l *Listener) Accept(buff []byte) (*Client, error) {
	for {
		fd, sa, err := unix.Accept(l.fd)
		switch err {
		case nil:
		case unix.EINTR, unix.ECONNABORTED:
			continue
		case unix.EAGAIN:
			return nil, ErrWouldBlock
		default:
			return nil, opError("accept", err)
		}

		unix.CloseOnExec(fd)

		if err = unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fd)
			return nil, opError("setnonblock", err)
		}

		return NewClient(fd, fromSockaddr(sa), buff), nil
	}
}

// Rebuild closes the socket and creates a new one at the same address. The descriptor
// changes, so it must be re-registered wherever it was.
func (l *Listener) Rebuild() error {
	_ = l.Close()
	return l.listen()
}

func (l *Listener) Close() error {
	if l.fd < 0 {
		return nil
	}

	err := unix.Close(l.fd)
	l.fd = -1

	return err
}
