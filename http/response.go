package http

import (
	"github.com/indigo-web/reactor/http/headers"
	"github.com/indigo-web/reactor/http/status"
	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
	json "github.com/json-iterator/go"
)

const (
	// why 7? I don't know. There's no theory behind this number nor researches.
	preallocRespHeaders = 7

	defaultContentType = "text/html"
	plainContentType   = "text/plain"
	jsonContentType    = "application/json"
)

// Response is a builder of a response. Content-Length and Connection headers are managed by
// the server, so setting them manually is ignored.
type Response struct {
	code        status.Code
	status      status.Status
	contentType string
	headers     *headers.Headers
	body        []byte
}

// NewResponse returns a new instance of the Response object with status code set to 200 OK,
// pre-allocated space for response headers and text/html content-type.
func NewResponse() *Response {
	return &Response{
		code:        status.OK,
		contentType: defaultContentType,
		headers:     headers.NewPrealloc(preallocRespHeaders),
	}
}

// Code sets a Response code.
func (r *Response) Code(code status.Code) *Response {
	r.code = code
	return r
}

// Status sets a custom status text. Otherwise, the default text of the code is used.
func (r *Response) Status(status status.Status) *Response {
	r.status = status
	return r
}

// ContentType sets a custom Content-Type header value.
func (r *Response) ContentType(value string) *Response {
	r.contentType = value
	return r
}

// Header sets header values to a key. In case it already exists the value will
// be appended.
func (r *Response) Header(key string, values ...string) *Response {
	switch {
	case strcomp.EqualFold(key, "content-type"):
		if len(values) > 0 {
			return r.ContentType(values[0])
		}

		return r
	case strcomp.EqualFold(key, "content-length"), strcomp.EqualFold(key, "connection"):
		return r
	}

	r.headers.Add(key, values...)
	return r
}

// String sets the response's body to the passed string
func (r *Response) String(body string) *Response {
	return r.Bytes(uf.S2B(body))
}

// Bytes sets the response's body to passed slice WITHOUT COPYING. Changing
// the passed slice later will affect the response by itself
func (r *Response) Bytes(body []byte) *Response {
	r.body = body
	return r
}

// Write implements io.Writer interface. It always returns n=len(b) and err=nil
func (r *Response) Write(b []byte) (n int, err error) {
	r.body = append(r.body, b...)
	return len(b), nil
}

// TryJSON receives a model and returns a new Response object and an error
func (r *Response) TryJSON(model any) (*Response, error) {
	r.body = r.body[:0]
	stream := json.ConfigDefault.BorrowStream(r)
	stream.WriteVal(model)
	err := stream.Flush()
	json.ConfigDefault.ReturnStream(stream)

	return r.ContentType(jsonContentType), err
}

// JSON does the same as TryJSON does, except returned error is being implicitly wrapped
// by Error
func (r *Response) JSON(model any) *Response {
	resp, err := r.TryJSON(model)
	if err != nil {
		return r.Error(err)
	}

	return resp
}

// Error returns a response builder with an error set. If passed err is nil, nothing will happen.
// Protocol errors set their own code and reason, everything else results in
// 500 Internal Server Error.
func (r *Response) Error(err error) *Response {
	if err == nil {
		return r
	}

	perr := status.FromError(err)

	return r.
		Code(perr.Code).
		ContentType(plainContentType).
		String(perr.Message)
}

// Fields exposes the built values.
func (r *Response) Fields() ResponseFields {
	text := r.status
	if len(text) == 0 {
		text = status.Text(r.code)
	}

	return ResponseFields{
		Code:        r.code,
		Status:      text,
		ContentType: r.contentType,
		Headers:     r.headers,
		Body:        r.body,
	}
}

// ResponseFields are the values of a built response.
type ResponseFields struct {
	Code        status.Code
	Status      status.Status
	ContentType string
	Headers     *headers.Headers
	Body        []byte
}

// Respond is a shortcut for NewResponse() with a code set.
func Respond(code status.Code) *Response {
	return NewResponse().Code(code)
}

// String is a shortcut for NewResponse().String(...)
func String(str string) *Response {
	return NewResponse().String(str)
}

// JSON is a shortcut for NewResponse().JSON(...)
func JSON(model any) *Response {
	return NewResponse().JSON(model)
}

// Error is a shortcut for NewResponse().Error(...)
func Error(err error) *Response {
	return NewResponse().Error(err)
}
