package simple

import (
	"testing"

	"github.com/indigo-web/reactor/http"
	"github.com/indigo-web/reactor/http/status"
	"github.com/stretchr/testify/require"
)

func TestRouter(t *testing.T) {
	r := New(func(request *http.Request) *http.Response {
		return http.String(request.Target)
	}, nil)

	resp := r.OnRequest(&http.Request{Target: "/hello"})
	require.Equal(t, "/hello", string(resp.Fields().Body))

	fields := r.OnError(status.ErrBodyTooLarge).Fields()
	require.Equal(t, status.RequestEntityTooLarge, fields.Code)
	require.Equal(t, "request body is too large", string(fields.Body))

	custom := New(nil, func(error) *http.Response {
		return http.Respond(status.ServiceUnavailable)
	})
	require.Equal(t, status.ServiceUnavailable, custom.OnError(status.ErrBadRequest).Fields().Code)
}
