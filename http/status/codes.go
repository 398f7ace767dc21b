package status

import "strconv"

type (
	Code   uint16
	Status string
)

// HTTP status codes the server core and its default dispatchers may respond with.
// See: https://www.iana.org/assignments/http-status-codes/http-status-codes.xhtml
const (
	OK        Code = 200 // RFC 9110, 15.3.1
	Created   Code = 201 // RFC 9110, 15.3.2
	NoContent Code = 204 // RFC 9110, 15.3.5

	MovedPermanently Code = 301 // RFC 9110, 15.4.2
	Found            Code = 302 // RFC 9110, 15.4.3

	BadRequest                  Code = 400 // RFC 9110, 15.5.1
	Forbidden                   Code = 403 // RFC 9110, 15.5.4
	NotFound                    Code = 404 // RFC 9110, 15.5.5
	MethodNotAllowed            Code = 405 // RFC 9110, 15.5.6
	RequestTimeout              Code = 408 // RFC 9110, 15.5.9
	LengthRequired              Code = 411 // RFC 9110, 15.5.12
	RequestEntityTooLarge       Code = 413 // RFC 9110, 15.5.14
	RequestURITooLong           Code = 414 // RFC 9110, 15.5.15
	UnsupportedMediaType        Code = 415 // RFC 9110, 15.5.16
	MisdirectedRequest          Code = 421 // RFC 9110, 15.5.20
	RequestHeaderFieldsTooLarge Code = 431 // RFC 6585, 5

	InternalServerError     Code = 500 // RFC 9110, 15.6.1
	NotImplemented          Code = 501 // RFC 9110, 15.6.2
	ServiceUnavailable      Code = 503 // RFC 9110, 15.6.4
	HTTPVersionNotSupported Code = 505 // RFC 9110, 15.6.6
)

// KnownCodes lists every code declared above.
var KnownCodes = []Code{
	OK, Created, NoContent,
	MovedPermanently, Found,
	BadRequest, Forbidden, NotFound, MethodNotAllowed, RequestTimeout, LengthRequired,
	RequestEntityTooLarge, RequestURITooLong, UnsupportedMediaType, MisdirectedRequest, RequestHeaderFieldsTooLarge,
	InternalServerError, NotImplemented, ServiceUnavailable, HTTPVersionNotSupported,
}

// Text returns a text for the HTTP status code. It returns the "Unknown Status Code"
// if the code is unknown.
func Text(code Code) Status {
	switch code {
	case OK:
		return "OK"
	case Created:
		return "Created"
	case NoContent:
		return "No Content"
	case MovedPermanently:
		return "Moved Permanently"
	case Found:
		return "Found"
	case BadRequest:
		return "Bad Request"
	case Forbidden:
		return "Forbidden"
	case NotFound:
		return "Not Found"
	case MethodNotAllowed:
		return "Method Not Allowed"
	case RequestTimeout:
		return "Request Timeout"
	case LengthRequired:
		return "Length Required"
	case RequestEntityTooLarge:
		return "Request Entity Too Large"
	case RequestURITooLong:
		return "Request URI Too Long"
	case UnsupportedMediaType:
		return "Unsupported Media Type"
	case MisdirectedRequest:
		return "Misdirected Request"
	case RequestHeaderFieldsTooLarge:
		return "Request Header Fields Too Large"
	case InternalServerError:
		return "Internal Server Error"
	case NotImplemented:
		return "Not Implemented"
	case ServiceUnavailable:
		return "Service Unavailable"
	case HTTPVersionNotSupported:
		return "HTTP Version Not Supported"
	default:
		return "Unknown Status Code"
	}
}

// StringCode returns the decimal representation of the code. Known codes don't allocate.
func StringCode(code Code) string {
	if s, ok := codeStrings[code]; ok {
		return s
	}

	return strconv.Itoa(int(code))
}

var codeStrings = func() map[Code]string {
	m := make(map[Code]string, len(KnownCodes))
	for _, code := range KnownCodes {
		m[code] = strconv.Itoa(int(code))
	}

	return m
}()
