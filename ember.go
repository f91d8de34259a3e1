// Package ember is a small embeddable HTTP/1.x server. Its core is an
// incremental request parser coupled to a streaming body conduit, so
// handlers may consume request bodies while they are still arriving,
// either by pulling or by installing a push listener.
package ember

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/emberhttp/ember/config"
	"github.com/emberhttp/ember/http"
	"github.com/emberhttp/ember/internal/server"
	"github.com/emberhttp/ember/internal/tcp"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type App struct {
	cfg     *config.Config
	handler http.Handler
	log     *zap.Logger

	mu      sync.Mutex
	ln      net.Listener
	stopped atomic.Bool
	conns   sync.WaitGroup
}

// New creates an app serving every request with the handler. Pass nil cfg
// for the defaults.
func New(cfg *config.Config, handler http.Handler) *App {
	if cfg == nil {
		cfg = config.Default()
	}

	return &App{
		cfg:     cfg,
		handler: handler,
		log:     zap.NewNop(),
	}
}

// WithLogger replaces the no-op default logger.
func (a *App) WithLogger(log *zap.Logger) *App {
	a.log = log
	return a
}

func (a *App) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", addr)
	}

	return a.Serve(ln)
}

// Serve accepts connections off ln until Stop is called. Each connection is
// served on its own goroutine; Serve returns once all of them finished.
func (a *App) Serve(ln net.Listener) error {
	a.mu.Lock()
	a.ln = ln
	a.mu.Unlock()

	a.log.Info("serving", zap.Stringer("addr", ln.Addr()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if a.stopped.Load() {
				a.conns.Wait()
				a.log.Info("stopped")

				return nil
			}

			return errors.Wrap(err, "accepting connection")
		}

		id := uuid.NewString()
		log := a.log.With(zap.String("conn", id), zap.Stringer("remote", conn.RemoteAddr()))
		log.Debug("connection accepted")

		client := tcp.NewClient(conn, a.cfg.NET.ReadTimeout, a.cfg.NET.ReadBufferSize)

		a.conns.Add(1)
		go func() {
			defer a.conns.Done()
			server.NewConn(a.cfg, client, a.handler, log).Serve()
			log.Debug("connection closed")
		}()
	}
}

// Stop interrupts the accept loop and lets Serve return after the active
// connections drain.
func (a *App) Stop() {
	a.stopped.Store(true)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ln != nil {
		_ = a.ln.Close()
	}
}
