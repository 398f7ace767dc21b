package http

import (
	"net"

	"github.com/indigo-web/reactor/config"
	"github.com/indigo-web/reactor/http"
	"github.com/indigo-web/reactor/http/method"
	"github.com/indigo-web/reactor/http/status"
	"github.com/indigo-web/reactor/internal/protocol/http1"
	"github.com/indigo-web/reactor/router"
)

const defaultSerializerBuffSize = 1024

// Server turns complete messages into requests, dispatches them to the router and renders
// the responses. Returned bytes are valid only until the next call.
type Server struct {
	cfg        *config.Config
	router     router.Router
	serializer *http1.Serializer
}

func NewServer(cfg *config.Config, r router.Router) *Server {
	return &Server{
		cfg:        cfg,
		router:     r,
		serializer: http1.NewSerializer(make([]byte, 0, defaultSerializerBuffSize)),
	}
}

// HandleMessage parses a complete message and dispatches it. If the message is malformed,
// an error response is rendered and the error is returned, so the connection must be
// closed after writing the response. closeAfter is also set if the client asked for it.
func (s *Server) HandleMessage(message []byte, remote net.Addr) (response []byte, closeAfter bool, err error) {
	request, err := http1.Parse(s.cfg, message)
	if err != nil {
		return s.HandleError(err), true, err
	}

	request.Remote = remote
	resp, panicked := s.onRequest(request)
	closeAfter = request.Close || panicked
	head := request.MethodEnum() == method.HEAD

	return s.serializer.Serialize(resp, head, closeAfter), closeAfter, nil
}

// HandleError renders the response to an error. The response always notifies the client
// that the connection is going to be closed.
func (s *Server) HandleError(err error) []byte {
	return s.serializer.Serialize(s.onError(err), false, true)
}

func (s *Server) onRequest(request *http.Request) (resp *http.Response, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			resp, panicked = s.onError(status.ErrInternalServerError), true
		}
	}()

	return notNil(s.router.OnRequest(request), http.NewResponse()), false
}

func (s *Server) onError(err error) *http.Response {
	return notNil(s.router.OnError(err), http.Error(err))
}

func notNil(resp, fallback *http.Response) *http.Response {
	if resp != nil {
		return resp
	}

	return fallback
}
