package status

import "errors"

// ProtocolError is raised on malformed or policy-violating client input. It always carries
// enough information to be rendered as a response without any additional context.
type ProtocolError struct {
	Message string
	Code    Code
}

func NewError(code Code, message string) error {
	return ProtocolError{
		Code:    code,
		Message: message,
	}
}

func (p ProtocolError) Error() string {
	return p.Message
}

// ResourceLimitError signals that a client exceeded one of the configured limits. It's
// fatal for the connection, however the wrapped ProtocolError may still be rendered as a
// response before closing it.
type ResourceLimitError struct {
	ProtocolError
	// Limit is the exceeded boundary, in bytes.
	Limit int
}

func NewLimitError(code Code, message string, limit int) error {
	return ResourceLimitError{
		ProtocolError: ProtocolError{Code: code, Message: message},
		Limit:         limit,
	}
}

func (r ResourceLimitError) Unwrap() error {
	return r.ProtocolError
}

// FromError resolves any error into a ProtocolError. Errors that aren't protocol errors
// are resolved into 500 Internal Server Error.
func FromError(err error) ProtocolError {
	var perr ProtocolError
	if errors.As(err, &perr) {
		return perr
	}

	return ProtocolError{
		Code:    InternalServerError,
		Message: "internal server error",
	}
}

// IsResourceLimit reports whether the error is caused by exceeding a limit.
func IsResourceLimit(err error) bool {
	var lerr ResourceLimitError
	return errors.As(err, &lerr)
}

var (
	ErrShutdown = errors.New("reactor is shut down")

	ErrBadRequest          = NewError(BadRequest, "bad request")
	ErrBadStartLine        = NewError(BadRequest, "malformed request line")
	ErrBadMethod           = NewError(BadRequest, "malformed request method")
	ErrBadTarget           = NewError(BadRequest, "malformed request target")
	ErrBadHeaderLine       = NewError(BadRequest, "malformed header line")
	ErrBadHeaderName       = NewError(BadRequest, "malformed header name")
	ErrBadHeaderValue      = NewError(BadRequest, "malformed header value")
	ErrNoHost              = NewError(BadRequest, "missing Host header")
	ErrDuplicateHeader     = NewError(BadRequest, "repeated non-repeatable header")
	ErrBadContentLength    = NewError(BadRequest, "malformed Content-Length")
	ErrLengthMismatch      = NewError(BadRequest, "body is shorter than Content-Length")
	ErrAmbiguousFraming    = NewError(BadRequest, "both Transfer-Encoding and Content-Length are set")
	ErrBadEncoding         = NewError(BadRequest, "bad request encoding")
	ErrBadChunk            = NewError(BadRequest, "malformed chunk-encoded data")
	ErrUnexpectedBody      = NewError(BadRequest, "request method doesn't allow a body")
	ErrLengthRequired      = NewError(LengthRequired, "length required")
	ErrRequestTimeout      = NewError(RequestTimeout, "request timeout")
	ErrUnsupportedEncoding = NewError(NotImplemented, "transfer coding is not supported")
	ErrVersionNotSupported = NewError(NotImplemented, "HTTP version not supported")
	ErrInternalServerError = NewError(InternalServerError, "internal server error")

	ErrURITooLong           = NewLimitError(RequestURITooLong, "request URI too long", 0)
	ErrHeaderFieldsTooLarge = NewLimitError(RequestHeaderFieldsTooLarge, "too large headers section", 0)
	ErrTooManyHeaders       = NewLimitError(RequestHeaderFieldsTooLarge, "too many headers", 0)
	ErrBodyTooLarge         = NewLimitError(RequestEntityTooLarge, "request body is too large", 0)
)
