package http

import (
	"github.com/emberhttp/ember/http/status"
	"github.com/emberhttp/ember/kv"
	"github.com/indigo-web/utils/uf"
	json "github.com/json-iterator/go"
)

// Response is a minimal response head plus a fully buffered body. It is
// serialised to the wire by the server, which appends Content-Length and
// connection control headers on its own.
type Response struct {
	Code    status.Code
	Headers *kv.Storage
	Body    []byte
}

func NewResponse() *Response {
	return &Response{
		Code:    status.OK,
		Headers: kv.New(),
	}
}

func (r *Response) WithCode(code status.Code) *Response {
	r.Code = code
	return r
}

func (r *Response) WithHeader(name, value string) *Response {
	r.Headers.Add(name, value)
	return r
}

func (r *Response) WithBody(body []byte) *Response {
	r.Body = body
	return r
}

func (r *Response) WithString(body string) *Response {
	return r.WithBody(uf.S2B(body))
}

// WithJSON serialises model into the body and sets the content type. A
// marshalling failure degrades the response to a 500.
func (r *Response) WithJSON(model any) *Response {
	stream := json.ConfigDefault.BorrowStream(nil)
	defer json.ConfigDefault.ReturnStream(stream)

	stream.WriteVal(model)
	if stream.Error != nil {
		return r.WithError(status.ErrInternalServerError)
	}

	body := make([]byte, len(stream.Buffer()))
	copy(body, stream.Buffer())

	r.Headers.Set("Content-Type", "application/json")

	return r.WithBody(body)
}

// WithError renders err as a plain-text response. status.HTTPError picks
// its own code, any other error is a 500.
func (r *Response) WithError(err error) *Response {
	if httpErr, ok := err.(status.HTTPError); ok {
		return r.WithCode(httpErr.Code).WithString(httpErr.Message)
	}

	return r.WithCode(status.InternalServerError).WithString("internal server error")
}
