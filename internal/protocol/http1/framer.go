package http1

import (
	"io"

	"github.com/indigo-web/reactor/config"
	"github.com/indigo-web/reactor/http/method"
	"github.com/indigo-web/reactor/http/status"
	"github.com/indigo-web/utils/strcomp"
)

// Mode is the way the body length of a message is determined.
type Mode uint8

const (
	// ModeNone means the message has no body at all.
	ModeNone Mode = iota
	// ModeLength means the body is exactly Content-Length octets.
	ModeLength
	// ModeChunked means the body is transferred using the chunked coding.
	ModeChunked
)

// Framer resolves the boundary of a message body. It consumes body bytes incrementally,
// so it can be fed with arbitrarily split pieces of a stream.
type Framer struct {
	mode      Mode
	done      bool
	collect   bool
	remaining int64
	consumed  int64
	maxSize   int64
	chunked   chunkedParser
	body      []byte
}

// NewFramer selects the framing mode of the message described by the head. If collect is
// set, the decoded body is stored and can be retrieved via Body.
func NewFramer(cfg *config.Config, head *Head, collect bool) (*Framer, error) {
	f := &Framer{
		collect: collect,
		maxSize: cfg.Body.MaxSize,
	}

	te, chunked := head.Headers.Get("transfer-encoding")
	switch {
	case chunked && head.ContentLength != -1:
		// never trust Content-Length if Transfer-Encoding is presented, as this is
		// exactly what request smuggling relies on
		return nil, status.ErrAmbiguousFraming
	case chunked:
		if err := checkTransferEncoding(te); err != nil {
			return nil, err
		}

		f.mode = ModeChunked
		f.chunked = newChunkedParser(cfg.Body.MaxChunkExtLength)
	case head.ContentLength != -1:
		if head.ContentLength > cfg.Body.MaxSize {
			return nil, status.ErrBodyTooLarge
		}

		f.mode = ModeLength
		f.remaining = head.ContentLength
		f.done = f.remaining == 0
	default:
		if method.RequiresLength(method.Parse(head.Method)) {
			return nil, status.ErrLengthRequired
		}

		f.mode = ModeNone
		f.done = true
	}

	if collect && f.mode == ModeLength {
		f.body = make([]byte, 0, f.remaining)
	}

	return f, nil
}

// checkTransferEncoding allows only the chunked coding. It must be the final one, otherwise
// the message length can't be determined at all.
func checkTransferEncoding(codings []string) error {
	if len(codings) == 0 || !strcomp.EqualFold(codings[len(codings)-1], "chunked") {
		return status.ErrBadEncoding
	}

	for _, coding := range codings[:len(codings)-1] {
		if strcomp.EqualFold(coding, "chunked") {
			return status.ErrBadEncoding
		}

		return status.ErrUnsupportedEncoding
	}

	return nil
}

// Frame consumes body bytes from data. It returns the number of bytes belonging to the
// body and whether the body is complete. Bytes after n belong to the next message.
func (f *Framer) Frame(data []byte) (n int, done bool, err error) {
	if f.done {
		return 0, true, nil
	}

	switch f.mode {
	case ModeLength:
		n = int(min(f.remaining, int64(len(data))))
		if f.collect {
			f.body = append(f.body, data[:n]...)
		}

		f.remaining -= int64(n)
		f.consumed += int64(n)
		f.done = f.remaining == 0

		return n, f.done, nil
	case ModeChunked:
		rest := data
		for len(rest) > 0 {
			chunk, extra, err := f.chunked.Parse(rest)
			switch err {
			case nil:
			case io.EOF:
				f.done = true
			default:
				return 0, false, err
			}

			if f.collect {
				f.body = append(f.body, chunk...)
			}

			rest = extra
			if f.done {
				break
			}
		}

		n = len(data) - len(rest)
		if f.consumed += int64(n); f.consumed > f.maxSize {
			return 0, false, status.ErrBodyTooLarge
		}

		return n, f.done, nil
	default:
		f.done = true
		return 0, true, nil
	}
}

// Done reports whether the whole body was consumed.
func (f *Framer) Done() bool {
	return f.done
}

// Started reports whether at least a single byte of the body was consumed.
func (f *Framer) Started() bool {
	return f.consumed > 0
}

// Mode returns the selected framing mode.
func (f *Framer) Mode() Mode {
	return f.mode
}

// Body returns the decoded body. It's always empty if the framer doesn't collect it.
func (f *Framer) Body() []byte {
	return f.body
}

// Truncated returns the error describing a body which ended prematurely.
func (f *Framer) Truncated() error {
	if f.mode == ModeChunked {
		return status.ErrBadChunk
	}

	return status.ErrLengthMismatch
}
