package http1

import (
	"strconv"

	"github.com/indigo-web/reactor/http"
	"github.com/indigo-web/reactor/http/status"
)

// Serializer renders responses into the wire format. The buffer is reused among calls,
// therefore returned bytes are valid only until the next call.
type Serializer struct {
	buff []byte
}

func NewSerializer(buff []byte) *Serializer {
	return &Serializer{
		buff: buff[:0],
	}
}

// Serialize renders the response. Content-Length is always set, however the body is
// omitted if the response is to a HEAD request. If closing is set, the peer is notified
// that the connection is going to be closed after the response.
func (s *Serializer) Serialize(response *http.Response, head, closing bool) []byte {
	fields := response.Fields()
	s.buff = s.buff[:0]

	s.appendProtocol()
	s.appendStatus(fields)

	if len(fields.ContentType) > 0 {
		s.appendKnownHeader("Content-Type: ", fields.ContentType)
	}

	for name, values := range fields.Headers.Pairs() {
		for _, value := range values {
			s.appendHeader(name, value)
		}
	}

	s.appendContentLength(len(fields.Body))
	if closing {
		s.appendKnownHeader("Connection: ", "close")
	}

	s.crlf()

	if !head {
		s.buff = append(s.buff, fields.Body...)
	}

	return s.buff
}

func (s *Serializer) appendProtocol() {
	s.buff = append(s.buff, protocol...)
	s.sp()
}

func (s *Serializer) appendStatus(fields http.ResponseFields) {
	if code := status.StringCode(fields.Code); len(code) > 0 {
		s.buff = append(s.buff, code...)
	} else {
		// some non-standard code
		s.buff = strconv.AppendUint(s.buff, uint64(fields.Code), 10)
	}

	s.sp()
	s.buff = append(s.buff, fields.Status...)
	s.crlf()
}

// appendHeader writes a complete header field line.
func (s *Serializer) appendHeader(name, value string) {
	s.buff = append(s.buff, name...)
	s.colonsp()
	s.buff = append(s.buff, value...)
	s.crlf()
}

// appendKnownHeader differs from appendHeader only by the fact that the key is known to already
// have a colon and a space included.
func (s *Serializer) appendKnownHeader(key, value string) {
	s.buff = append(s.buff, key...)
	s.buff = append(s.buff, value...)
	s.crlf()
}

func (s *Serializer) appendContentLength(value int) {
	s.buff = append(s.buff, "Content-Length: "...)
	s.buff = strconv.AppendUint(s.buff, uint64(value), 10)
	s.crlf()
}

func (s *Serializer) sp() {
	s.buff = append(s.buff, ' ')
}

func (s *Serializer) colonsp() {
	s.buff = append(s.buff, ':', ' ')
}

const crlf = "\r\n"

func (s *Serializer) crlf() {
	s.buff = append(s.buff, crlf...)
}
