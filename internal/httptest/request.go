package httptest

import (
	"io"
	"strconv"

	"github.com/indigo-web/chunkedbody"
	"github.com/indigo-web/reactor/http"
	"github.com/indigo-web/utils/strcomp"
)

// Request renders the request into the wire format. Framing headers (Content-Length and
// Transfer-Encoding) are generated from the request itself, so ones presented in the
// headers are skipped. If the request is chunked, the body is split into chunks of at most
// chunkSize bytes.
func Request(request *http.Request, chunkSize int) []byte {
	var buff []byte

	buff = append(buff, request.Method...)
	buff = append(buff, ' ')
	buff = append(buff, request.Target...)
	buff = append(buff, " HTTP/1.1\r\n"...)

	if request.Headers != nil {
		for _, h := range request.Headers.Expose() {
			if isFraming(h.Name) {
				continue
			}

			for _, value := range h.Values {
				buff = header(buff, h.Name, value)
			}
		}
	}

	switch {
	case request.Chunked:
		buff = header(buff, "Transfer-Encoding", "chunked")
		buff = append(buff, '\r', '\n')
		return Chunked(buff, request.Body, chunkSize)
	case len(request.Body) > 0 || request.ContentLength >= 0:
		buff = header(buff, "Content-Length", strconv.Itoa(len(request.Body)))
	}

	buff = append(buff, '\r', '\n')

	return append(buff, request.Body...)
}

// Chunked appends the body encoded with the chunked coding to buff.
func Chunked(buff, body []byte, chunkSize int) []byte {
	if chunkSize <= 0 {
		chunkSize = len(body)
	}

	for len(body) > 0 {
		n := min(chunkSize, len(body))
		buff = strconv.AppendUint(buff, uint64(n), 16)
		buff = append(buff, '\r', '\n')
		buff = append(buff, body[:n]...)
		buff = append(buff, '\r', '\n')
		body = body[n:]
	}

	return append(buff, "0\r\n\r\n"...)
}

// Unchunk decodes a complete chunked body. Any bytes following the terminating chunk are
// returned as extra. If the terminating chunk is missing, io.ErrUnexpectedEOF is returned.
func Unchunk(data []byte, trailer bool) (body, extra []byte, err error) {
	parser := chunkedbody.NewParser(chunkedbody.DefaultSettings())

	for len(data) > 0 {
		chunk, rest, err := parser.Parse(data, trailer)
		switch err {
		case nil:
		case io.EOF:
			return append(body, chunk...), rest, nil
		default:
			return nil, nil, err
		}

		body = append(body, chunk...)
		data = rest
	}

	return nil, nil, io.ErrUnexpectedEOF
}

func header(buff []byte, name, value string) []byte {
	buff = append(buff, name...)
	buff = append(buff, ':', ' ')
	buff = append(buff, value...)

	return append(buff, '\r', '\n')
}

func isFraming(name string) bool {
	return strcomp.EqualFold(name, "content-length") || strcomp.EqualFold(name, "transfer-encoding")
}
