package http1

import (
	"bytes"
	"strings"

	"github.com/indigo-web/reactor/config"
	"github.com/indigo-web/reactor/http"
	"github.com/indigo-web/reactor/http/headers"
	"github.com/indigo-web/reactor/http/method"
	"github.com/indigo-web/reactor/http/status"
	"github.com/indigo-web/reactor/internal/hexconv"
	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
)

const protocol = "HTTP/1.1"

// Head is a parsed and validated request line together with the headers section.
type Head struct {
	Method  string
	Target  string
	Proto   string
	Headers *headers.Headers
	// ContentLength is -1 if the header isn't presented.
	ContentLength int64
	// Close is set if the Connection header contains the close option.
	Close bool
}

// HeadEnd looks for the end of the headers section, which is an empty line. Lines may be
// terminated by either CRLF or bare LF. It returns the offset right after the terminator,
// or -1 if it isn't there yet. Leading empty lines preceding the request line are skipped
// and don't count as a terminator. The scan starts at from, which is useful to not rescan
// the data which was already checked.
func HeadEnd(data []byte, from int) int {
	lead := leadingEmptyLines(data)
	from = max(from, lead)

	for {
		i := bytes.IndexByte(data[from:], '\n')
		if i == -1 {
			return -1
		}

		pos := from + i
		next := pos + 1
		switch {
		case next < len(data) && data[next] == '\n':
			return next + 1
		case next+1 < len(data) && data[next] == '\r' && data[next+1] == '\n':
			return next + 2
		}

		from = next
	}
}

// leadingEmptyLines returns the number of bytes taken by empty lines at the beginning
// of the data.
func leadingEmptyLines(data []byte) (offset int) {
	for offset < len(data) {
		switch data[offset] {
		case '\n':
			offset++
		case '\r':
			if offset+1 < len(data) && data[offset+1] == '\n' {
				offset += 2
				continue
			}

			return offset
		default:
			return offset
		}
	}

	return offset
}

// ParseHead parses a request line and the headers section. The data must contain the
// whole head including the empty line terminating it, as returned by HeadEnd. Returned
// strings reference the passed data, so it must stay intact as long as the head is used.
func ParseHead(cfg *config.Config, data []byte) (*Head, error) {
	data = data[leadingEmptyLines(data):]

	line, data, ok := nextLine(data)
	if !ok {
		return nil, status.ErrBadStartLine
	}

	head := &Head{
		Headers:       headers.NewPrealloc(cfg.Headers.Number.Default),
		ContentLength: -1,
	}

	if err := parseRequestLine(cfg, head, line); err != nil {
		return nil, err
	}

	normalizer := NewNormalizer(cfg.Headers.Number.Default)
	for lines := 0; ; lines++ {
		line, data, ok = nextLine(data)
		if !ok {
			// the data is exhausted without the empty line
			return nil, status.ErrBadHeaderLine
		}

		if len(line) == 0 {
			break
		}

		if lines >= cfg.Headers.Number.Maximal {
			return nil, status.ErrTooManyHeaders
		}

		colon := strings.IndexByte(line, ':')
		if colon == -1 {
			return nil, status.ErrBadHeaderLine
		}

		if err := normalizer.Add(line[:colon], line[colon+1:]); err != nil {
			return nil, err
		}
	}

	if err := normalizer.Finish(head.Headers); err != nil {
		return nil, err
	}

	if value, found := head.Headers.Get("content-length"); found {
		length, err := parseContentLength(value[0])
		if err != nil {
			return nil, err
		}

		head.ContentLength = length
	}

	for _, option := range head.Headers.Values("connection") {
		if strcomp.EqualFold(option, "close") {
			head.Close = true
		}
	}

	return head, nil
}

// nextLine returns the line with its terminator stripped and the rest of the data.
func nextLine(data []byte) (line string, rest []byte, ok bool) {
	i := bytes.IndexByte(data, '\n')
	if i == -1 {
		return "", data, false
	}

	line = uf.B2S(data[:i])
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}

	return line, data[i+1:], true
}

func parseRequestLine(cfg *config.Config, head *Head, line string) error {
	var tokens [3]string
	n := 0

	for len(line) > 0 {
		for len(line) > 0 && isOWS(line[0]) {
			line = line[1:]
		}

		if len(line) == 0 {
			break
		}

		end := 0
		for end < len(line) && !isOWS(line[end]) {
			end++
		}

		if n == len(tokens) {
			return status.ErrBadStartLine
		}

		tokens[n], line = line[:end], line[end:]
		n++
	}

	if n != len(tokens) {
		return status.ErrBadStartLine
	}

	head.Method, head.Target, head.Proto = tokens[0], tokens[1], tokens[2]

	if !method.IsToken(head.Method) {
		return status.ErrBadMethod
	}

	if err := validateTarget(cfg, head.Target); err != nil {
		return err
	}

	if head.Proto != protocol {
		return status.ErrVersionNotSupported
	}

	return nil
}

// validateTarget accepts asterisk, origin and absolute (http and https only) forms.
func validateTarget(cfg *config.Config, target string) error {
	if len(target) > cfg.URI.MaxLength {
		return status.ErrURITooLong
	}

	switch {
	case target == "*":
		return nil
	case strings.HasPrefix(target, "/"):
	case hasPrefixFold(target, "http://"), hasPrefixFold(target, "https://"):
	default:
		return status.ErrBadTarget
	}

	for i := 0; i < len(target); i++ {
		char := target[i]
		if !targetChars[char] {
			return status.ErrBadTarget
		}

		if char == '%' {
			if i+2 >= len(target) || !hexconv.IsHex(target[i+1]) || !hexconv.IsHex(target[i+2]) {
				return status.ErrBadTarget
			}

			i += 2
		}
	}

	return nil
}

func hasPrefixFold(str, prefix string) bool {
	return len(str) >= len(prefix) && strcomp.EqualFold(str[:len(prefix)], prefix)
}

// parseContentLength accepts only digits. The value is checked against an overflow.
func parseContentLength(value string) (length int64, err error) {
	if len(value) == 0 {
		return 0, status.ErrBadContentLength
	}

	for i := 0; i < len(value); i++ {
		char := value[i] - '0'
		if char > 9 {
			return 0, status.ErrBadContentLength
		}

		if length > (1<<63-1-int64(char))/10 {
			return 0, status.ErrBadContentLength
		}

		length = length*10 + int64(char)
	}

	return length, nil
}

// Parse parses a complete message. The message must hold exactly one request: a body
// cut short as well as bytes left after it are rejected.
func Parse(cfg *config.Config, data []byte) (*http.Request, error) {
	end := HeadEnd(data, 0)
	if end == -1 {
		return nil, status.ErrBadHeaderLine
	}

	head, err := ParseHead(cfg, data[:end])
	if err != nil {
		return nil, err
	}

	framer, err := NewFramer(cfg, head, true)
	if err != nil {
		return nil, err
	}

	n, done, err := framer.Frame(data[end:])
	switch {
	case err != nil:
		return nil, err
	case !done:
		return nil, framer.Truncated()
	case end+n != len(data):
		return nil, status.ErrBadRequest
	}

	return NewRequest(head, framer)
}

// NewRequest builds a request out of a parsed head and a completed framer, which collected
// the body.
func NewRequest(head *Head, framer *Framer) (*http.Request, error) {
	body := framer.Body()
	if len(body) > 0 && method.ForbidsBody(method.Parse(head.Method)) {
		return nil, status.ErrUnexpectedBody
	}

	return &http.Request{
		Method:        head.Method,
		Target:        head.Target,
		Proto:         head.Proto,
		Headers:       head.Headers,
		Body:          body,
		ContentLength: head.ContentLength,
		Chunked:       framer.Mode() == ModeChunked,
		Close:         head.Close,
	}, nil
}
