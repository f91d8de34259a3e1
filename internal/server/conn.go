// Package server drives a single accepted connection: it owns the parser on
// the network reader goroutine and hands each framed request to a handler
// goroutine. At most one request is in flight per connection at a time;
// keep-alive requests are served sequentially with a fresh parser each.
package server

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/emberhttp/ember/config"
	"github.com/emberhttp/ember/http"
	"github.com/emberhttp/ember/http/method"
	"github.com/emberhttp/ember/http/proto"
	"github.com/emberhttp/ember/http/status"
	"github.com/emberhttp/ember/internal/http1"
	"github.com/emberhttp/ember/internal/strutil"
	"github.com/emberhttp/ember/internal/tcp"
	"github.com/emberhttp/ember/kv"
	"go.uber.org/zap"
)

var continueResponse = []byte("HTTP/1.1 100 Continue\r\n\r\n")

type Conn struct {
	cfg     *config.Config
	client  tcp.Client
	handler http.Handler
	log     *zap.Logger

	writeBuff []byte
}

func NewConn(cfg *config.Config, client tcp.Client, handler http.Handler, log *zap.Logger) *Conn {
	return &Conn{
		cfg:     cfg,
		client:  client,
		handler: handler,
		log:     log,
	}
}

// Serve processes requests off the connection until the peer goes away, a
// framing fault occurs or the request asks to close.
func (c *Conn) Serve() {
	defer c.client.Close()

	for c.serveRequest() {
	}
}

func (c *Conn) serveRequest() (keepAlive bool) {
	var (
		req     *http.Request
		started bool
	)

	respCh := make(chan *http.Response, 1)

	parser := newParserFor(c, &req)

	for !parser.Complete() {
		data, err := c.client.Read()
		if err != nil {
			// the peer disconnected or went silent for too long; pending
			// body reads drain whatever is queued and then see the end
			if body := parser.Body(); body != nil {
				body.Close()
			}
			c.log.Debug("connection gone", zap.Error(err))

			return false
		}

		if err := parser.Offer(data); err != nil {
			if body := parser.Body(); body != nil {
				body.Close()
			}
			c.reject(req, err)

			return false
		}

		if req != nil && !started {
			started = true

			if !c.expectContinue(req) {
				return false
			}

			go c.runHandler(req, respCh)
		}
	}

	resp := <-respCh
	closing := shouldClose(req)

	if err := c.respond(req.Proto, resp, closing); err != nil {
		c.log.Debug("response write failed", zap.Error(err))
		return false
	}

	c.log.Debug("request served",
		zap.Stringer("method", req.Method),
		zap.Stringer("uri", req.URI),
		zap.Uint16("status", uint16(resp.Code)),
	)

	return !closing
}

// newParserFor wires a fresh parser whose headers-ready callback
// materialises the request object into *req.
func newParserFor(c *Conn, req **http.Request) *http1.Parser {
	var parser *http1.Parser

	parser = http1.NewParser(c.cfg, func(m method.Method, uri *url.URL, protocol proto.Proto, headers *kv.Storage) {
		body := http.NewBody(parser.Body(), c.cfg)
		*req = http.NewRequest(m, uri, protocol, headers, body, c.client.Remote(), parser.Trailers)
	})

	return parser
}

func (c *Conn) runHandler(req *http.Request, respCh chan<- *http.Response) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("handler panicked", zap.Any("reason", r))
			respCh <- http.NewResponse().WithError(status.ErrInternalServerError)
		}
	}()

	resp := c.handler(req)
	if resp == nil {
		resp = http.NewResponse()
	}

	respCh <- resp
}

// expectContinue implements the Expect: 100-continue handshake: an
// acceptable declared length gets an interim 100 before body parsing
// proceeds, anything else gets 417 and the connection is closed. Reports
// whether serving the request may continue.
func (c *Conn) expectContinue(req *http.Request) bool {
	if !strutil.CmpFold(req.Headers.Value("Expect"), "100-continue") {
		return true
	}

	if length, err := strconv.ParseInt(req.Headers.Value("Content-Length"), 10, 64); err == nil && length > math.MaxInt32 {
		resp := http.NewResponse().WithError(status.ErrExpectationFailed)
		if err := c.respond(req.Proto, resp, true); err != nil {
			c.log.Debug("response write failed", zap.Error(err))
		}

		return false
	}

	if err := c.client.Write(continueResponse); err != nil {
		c.log.Debug("100-continue write failed", zap.Error(err))
		return false
	}

	return true
}

// reject answers a framing fault and leaves the connection to be closed.
// status.HTTPError picks its own code and client message, anything else is
// an internal fault answered with a bare 500.
func (c *Conn) reject(req *http.Request, err error) {
	resp := http.NewResponse().WithError(err)

	if httpErr, ok := err.(status.HTTPError); ok {
		c.log.Info("invalid request",
			zap.Uint16("status", uint16(httpErr.Code)),
			zap.String("message", httpErr.Message),
			zap.String("detail", httpErr.Detail),
		)
	} else {
		c.log.Error("request failed", zap.Error(err))
	}

	protocol := proto.HTTP11
	if req != nil {
		protocol = req.Proto
	}

	if err := c.respond(protocol, resp, true); err != nil {
		c.log.Debug("response write failed", zap.Error(err))
	}
}

func (c *Conn) respond(protocol proto.Proto, resp *http.Response, closing bool) error {
	c.writeBuff = renderResponse(c.writeBuff[:0], protocol, resp, closing)

	return c.client.Write(c.writeBuff)
}

func shouldClose(req *http.Request) bool {
	conn := strings.ToLower(req.Headers.Value("Connection"))

	if req.Proto == proto.HTTP10 {
		return !strings.Contains(conn, "keep-alive")
	}

	return strings.Contains(conn, "close")
}
