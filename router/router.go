package router

import (
	"github.com/indigo-web/reactor/http"
)

// Router is the boundary between the server core and the application. Both methods are
// called from the event loop, so they must not block for long. Returning nil results in
// an empty 200 OK response on a request and in the default error response on an error.
type Router interface {
	OnRequest(request *http.Request) *http.Response
	// OnError is called once on a protocol violation, right before the connection is closed.
	OnError(err error) *http.Response
}
