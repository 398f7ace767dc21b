package simple

import (
	"github.com/indigo-web/reactor/http"
	"github.com/indigo-web/reactor/router"
)

type (
	Handler      func(*http.Request) *http.Response
	ErrorHandler func(error) *http.Response
)

type simpleRouter struct {
	handler    Handler
	errHandler ErrorHandler
}

// New returns a router calling the handler on every request. If errHandler is nil,
// errors are rendered by DefaultErrorHandler.
func New(handler Handler, errHandler ErrorHandler) router.Router {
	if errHandler == nil {
		errHandler = DefaultErrorHandler
	}

	return simpleRouter{
		handler:    handler,
		errHandler: errHandler,
	}
}

func (r simpleRouter) OnRequest(request *http.Request) *http.Response {
	return r.handler(request)
}

func (r simpleRouter) OnError(err error) *http.Response {
	return r.errHandler(err)
}

// DefaultErrorHandler responds with the code of the error and its message as a
// plain-text body.
func DefaultErrorHandler(err error) *http.Response {
	return http.Error(err)
}
