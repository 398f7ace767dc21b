package http

import (
	"net"

	"github.com/indigo-web/reactor/http/headers"
	"github.com/indigo-web/reactor/http/method"
)

// Request represents a complete and validated HTTP/1.1 request. It's never mutated after
// being handed to a router.
type Request struct {
	// Method is the method token as it was received. It's guaranteed to consist of token
	// characters only, however isn't guaranteed to be any of well-known methods.
	Method string
	// Target is the request target as it was received. It's either "*", an origin-form
	// starting with a slash or an absolute-form starting with http:// or https://.
	Target string
	// Proto is always HTTP/1.1, as no other version is accepted.
	Proto string
	// Headers hold only the accepted headers, each split into its value tokens.
	Headers *headers.Headers
	// Body is the whole request body with any transfer coding removed.
	Body []byte
	// ContentLength is the value of the Content-Length header, or -1 if it wasn't presented.
	ContentLength int64
	// Chunked reports whether the body was transferred using the chunked coding.
	Chunked bool
	// Close is set if the client asked to close the connection after the response.
	Close bool
	// Remote holds the remote address. It's filled by the server right before dispatching.
	Remote net.Addr
}

// MethodEnum returns the method as an enum. Non-standard methods result in method.Unknown.
func (r *Request) MethodEnum() method.Method {
	return method.Parse(r.Method)
}

// KeepAlive reports whether the connection may be reused after responding to this request.
func (r *Request) KeepAlive() bool {
	return !r.Close
}
