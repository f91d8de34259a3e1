package http

import (
	"net"
	"net/url"

	"github.com/emberhttp/ember/http/method"
	"github.com/emberhttp/ember/http/proto"
	"github.com/emberhttp/ember/kv"
)

// Handler processes a fully framed request head. The body may still be in
// flight: it is consumed through req.Body, either by pulling or by
// installing a push listener.
type Handler func(req *Request) *Response

// Request is the parsed head of an inbound request plus the live body
// conduit. Headers are read-only once the request reaches a handler.
type Request struct {
	Method  method.Method
	URI     *url.URL
	Proto   proto.Proto
	Headers *kv.Storage
	Body    *Body

	// RemoteAddr is the peer's address as reported by the transport.
	RemoteAddr net.Addr

	trailers func() *kv.Storage
}

func NewRequest(m method.Method, uri *url.URL, protocol proto.Proto, headers *kv.Storage, body *Body, remote net.Addr, trailers func() *kv.Storage) *Request {
	return &Request{
		Method:     m,
		URI:        uri,
		Proto:      protocol,
		Headers:    headers,
		Body:       body,
		RemoteAddr: remote,
		trailers:   trailers,
	}
}

// Trailers returns trailer fields of a chunked request, or nil if there are
// none. Valid only after the body reported end-of-stream; before that the
// trailer block may not have arrived yet.
func (r *Request) Trailers() *kv.Storage {
	if r.trailers == nil {
		return nil
	}

	return r.trailers()
}
