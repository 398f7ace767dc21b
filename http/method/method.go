package method

type Method uint8

const (
	Unknown Method = iota
	GET
	HEAD
	POST
	PUT
	DELETE
	CONNECT
	OPTIONS
	TRACE
	PATCH
)

// List contains all the well-known HTTP methods, sorted by their integer value. Unknown
// method is not included.
var List = []Method{GET, HEAD, POST, PUT, DELETE, CONNECT, OPTIONS, TRACE, PATCH}

// Parse maps the method token onto the enum. Tokens are case-sensitive, so anything
// except the canonical spelling is Unknown.
func Parse(str string) Method {
	switch len(str) {
	case 3:
		if str == "GET" {
			return GET
		} else if str == "PUT" {
			return PUT
		}
	case 4:
		if str == "POST" {
			return POST
		} else if str == "HEAD" {
			return HEAD
		}
	case 5:
		if str == "PATCH" {
			return PATCH
		} else if str == "TRACE" {
			return TRACE
		}
	case 6:
		if str == "DELETE" {
			return DELETE
		}
	case 7:
		if str == "CONNECT" {
			return CONNECT
		} else if str == "OPTIONS" {
			return OPTIONS
		}
	}

	return Unknown
}

func (m Method) String() string {
	switch m {
	case GET:
		return "GET"
	case HEAD:
		return "HEAD"
	case POST:
		return "POST"
	case PUT:
		return "PUT"
	case DELETE:
		return "DELETE"
	case CONNECT:
		return "CONNECT"
	case OPTIONS:
		return "OPTIONS"
	case TRACE:
		return "TRACE"
	case PATCH:
		return "PATCH"
	default:
		return "UNKNOWN"
	}
}

// IsToken reports whether the string is a valid method token, i.e. it's non-empty
// and consists of tchar only (RFC 9110, 5.6.2).
func IsToken(str string) bool {
	if len(str) == 0 {
		return false
	}

	for i := 0; i < len(str); i++ {
		if !tchar[str[i]] {
			return false
		}
	}

	return true
}

// ForbidsBody reports whether requests of the method must not carry a body. This is
// a local policy for read and remove semantics rather than a requirement of HTTP itself.
func ForbidsBody(m Method) bool {
	switch m {
	case GET, HEAD, DELETE:
		return true
	default:
		return false
	}
}

// RequiresLength reports whether a request of the method must declare its body length
// explicitly, either by Content-Length or by chunked Transfer-Encoding. Unknown methods
// require it too.
func RequiresLength(m Method) bool {
	switch m {
	case GET, HEAD, DELETE, OPTIONS, TRACE, CONNECT:
		return false
	default:
		return true
	}
}

var tchar = func() (table [256]bool) {
	for c := '0'; c <= '9'; c++ {
		table[c] = true
	}
	for c := 'a'; c <= 'z'; c++ {
		table[c] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		table[c] = true
	}
	for _, c := range "!#$%&'*+-.^_`|~" {
		table[c] = true
	}

	return table
}()
