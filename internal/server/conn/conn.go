package conn

import (
	"errors"

	"github.com/dchest/uniuri"
	"github.com/indigo-web/reactor/config"
	"github.com/indigo-web/reactor/http/status"
	"github.com/indigo-web/reactor/internal/buffer"
	"github.com/indigo-web/reactor/internal/protocol/http1"
)

type State uint8

const (
	// Accepted is the state of a fresh connection, which hasn't received anything yet.
	Accepted State = iota
	// Reading means that the connection awaits more bytes to complete the current message.
	Reading
	// Ready means that a complete message is buffered and must be extracted before
	// anything else is parsed.
	Ready
	// Closed means that the connection is closed either by the peer or explicitly.
	Closed
	// Errored means that the input violated the protocol. The connection must be closed.
	Errored
)

func (s State) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case Reading:
		return "reading"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

var ErrClosed = errors.New("connection is closed")

// Connection accumulates bytes received from a single peer and determines message
// boundaries. It doesn't do any I/O by itself. At most one complete message may stay
// unextracted, pipelined bytes following it are kept in the accumulator.
type Connection struct {
	cfg     *config.Config
	id      string
	state   State
	err     error
	buff    *buffer.Buffer
	scanned int
	framer  *http1.Framer
	headLen int
	bodyLen int
}

func New(cfg *config.Config) *Connection {
	// the accumulator must hold a whole message and one more read of pipelined bytes
	maxSize := cfg.Headers.MaxSpace + int(cfg.Body.MaxSize) + cfg.NET.ReadBufferSize

	return &Connection{
		cfg:   cfg,
		id:    uniuri.NewLen(cfg.Reactor.ConnectionIDLength),
		state: Accepted,
		buff:  buffer.New(cfg.NET.ReadBufferSize, maxSize),
	}
}

// ID returns a random identifier of the connection, used to correlate log entries.
func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) State() State {
	return c.state
}

// Err returns the error which caused the Errored state.
func (c *Connection) Err() error {
	return c.err
}

// Pending reports whether there are any buffered bytes. Those may be a partially received
// message or a complete one which wasn't extracted yet.
func (c *Connection) Pending() bool {
	return c.buff.Len() > 0
}

// Feed appends received bytes and advances the parsing as far as possible. Passing nil
// rescans bytes retained after the previous extraction, so pipelined messages are
// processed without reading anything more.
func (c *Connection) Feed(data []byte) (State, error) {
	switch c.state {
	case Closed:
		return c.state, ErrClosed
	case Errored:
		return c.state, c.err
	}

	if !c.buff.Append(data) {
		if c.framer == nil {
			return c.fail(status.ErrHeaderFieldsTooLarge)
		}

		return c.fail(status.ErrBodyTooLarge)
	}

	if c.state == Ready {
		return c.state, nil
	}

	c.state = Reading
	if c.buff.Len() == 0 {
		return c.state, nil
	}

	if c.framer == nil {
		if err := c.parseHead(); err != nil {
			return c.fail(err)
		}

		if c.framer == nil {
			return c.state, nil
		}
	}

	n, done, err := c.framer.Frame(c.buff.Bytes()[c.headLen+c.bodyLen:])
	if err != nil {
		return c.fail(err)
	}

	c.bodyLen += n
	if done {
		c.state = Ready
	}

	return c.state, nil
}

func (c *Connection) parseHead() error {
	data := c.buff.Bytes()
	// a terminator of 3 bytes at most might be split between the previous and the current feed
	end := http1.HeadEnd(data, max(0, c.scanned-3))
	if end == -1 {
		c.scanned = len(data)
		if len(data) > c.cfg.Headers.MaxSpace {
			return status.ErrHeaderFieldsTooLarge
		}

		return nil
	}

	if end > c.cfg.Headers.MaxSpace {
		return status.ErrHeaderFieldsTooLarge
	}

	head, err := http1.ParseHead(c.cfg, data[:end])
	if err != nil {
		return err
	}

	framer, err := http1.NewFramer(c.cfg, head, false)
	if err != nil {
		return err
	}

	c.framer = framer
	c.headLen = end

	return nil
}

// Extract returns a copy of the complete message and drains it from the accumulator. It
// returns nil unless the connection is Ready.
func (c *Connection) Extract() []byte {
	if c.state != Ready {
		return nil
	}

	length := c.headLen + c.bodyLen
	message := make([]byte, length)
	copy(message, c.buff.Bytes()[:length])
	c.buff.Drain(length)
	c.reset()
	c.state = Reading

	return message
}

// EOF must be called when the peer closed its side of the connection. It returns an error
// if the peer did so in the middle of a message body.
func (c *Connection) EOF() error {
	if c.state == Closed || c.state == Errored {
		return c.err
	}

	var err error
	if c.framer != nil && !c.framer.Done() {
		err = c.framer.Truncated()
	}

	c.state = Closed
	c.err = err

	return err
}

// Close marks the connection closed. Any buffered bytes are discarded.
func (c *Connection) Close() {
	c.state = Closed
	c.buff.Clear()
	c.reset()
}

func (c *Connection) fail(err error) (State, error) {
	c.state = Errored
	c.err = err

	return c.state, err
}

func (c *Connection) reset() {
	c.framer = nil
	c.scanned = 0
	c.headLen = 0
	c.bodyLen = 0
}
