package tcp

import (
	"io"
	"net"

	"golang.org/x/sys/unix"
)

// Client is a non-blocking connected socket. Writes never block: whatever the socket
// doesn't accept at once is kept and must be flushed later, when the socket is writable.
type Client struct {
	fd      int
	remote  net.Addr
	buff    []byte
	pending []byte
}

func NewClient(fd int, remote net.Addr, buff []byte) *Client {
	return &Client{
		fd:     fd,
		remote: remote,
		buff:   buff,
	}
}

func (c *Client) FD() int {
	return c.fd
}

// Read performs a single read of at most len(buff) bytes. The returned slice is valid until
// the next call. Orderly shutdown by the peer results in io.EOF.
func (c *Client) Read() ([]byte, error) {
	for {
		n, err := unix.Read(c.fd, c.buff)
		switch err {
		case nil:
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return nil, ErrWouldBlock
		default:
			return nil, opError("read", err)
		}

		if n == 0 {
			return nil, io.EOF
		}

		return c.buff[:n], nil
	}
}

// Write writes as much as possible, keeping the rest as pending. If there's already some
// pending data, the new data is appended after it to keep the order.
func (c *Client) Write(data []byte) error {
	if len(c.pending) > 0 {
		c.pending = append(c.pending, data...)
		return c.Flush()
	}

	n, err := c.write(data)
	if n < len(data) {
		c.pending = append(c.pending[:0], data[n:]...)
	}

	return err
}

// Flush tries to write the pending data.
func (c *Client) Flush() error {
	if len(c.pending) == 0 {
		return nil
	}

	n, err := c.write(c.pending)
	rest := copy(c.pending, c.pending[n:])
	c.pending = c.pending[:rest]

	return err
}

func (c *Client) write(data []byte) (written int, err error) {
	for written < len(data) {
		n, err := unix.Write(c.fd, data[written:])
		switch err {
		case nil:
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return written, nil
		default:
			return written, opError("write", err)
		}

		written += n
	}

	return written, nil
}

// Pending reports whether some data is still waiting to be written.
func (c *Client) Pending() bool {
	return len(c.pending) > 0
}

func (c *Client) Remote() net.Addr {
	return c.remote
}

func (c *Client) Close() error {
	if c.fd < 0 {
		return nil
	}

	err := unix.Close(c.fd)
	c.fd = -1
	c.pending = nil

	return err
}
