// Package server serves the build output over HTTP on the first free port
// of a configured range.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/devloop/internal/errors"
	"github.com/conneroisu/devloop/internal/logging"
	"github.com/conneroisu/devloop/internal/monitoring"
	"github.com/conneroisu/devloop/internal/server/middleware"
)

// Server binds file servers on a host.
type Server struct {
	host    string
	logger  logging.Logger
	metrics *monitoring.Metrics
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics records binds and releases in Prometheus.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a Server for host. An empty host means localhost.
func New(host string, opts ...Option) *Server {
	if host == "" {
		host = "localhost"
	}
	s := &Server{host: host, logger: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("server")
	return s
}

// Start serves root on the first port in [start, end) that can be bound.
// It returns once the listener is open; requests are served in the
// background until Shutdown. When no port binds the error wraps
// errors.ErrNoPortAvailable and nothing is left listening.
func (s *Server) Start(root string, start, end int) (*Handle, int, error) {
	ln, err := s.bind(start, end)
	if err != nil {
		s.metrics.PortExhausted()
		return nil, 0, err
	}
	port := ln.Addr().(*net.TCPAddr).Port

	handler := middleware.CrossOriginIsolation()(http.FileServer(http.Dir(root)))
	h := &Handle{
		host: s.host,
		port: port,
		root: root,
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          log.New(io.Discard, "", 0),
		},
		done:    make(chan struct{}),
		logger:  s.logger,
		metrics: s.metrics,
	}

	go h.serve(ln)

	s.metrics.ServerBound(port)
	s.logger.Info(context.Background(), "Serving build output", "root", root, "url", h.URL(""))
	return h, port, nil
}

func (s *Server) bind(start, end int) (net.Listener, error) {
	for port := start; port < end; port++ {
		addr := net.JoinHostPort(s.host, strconv.Itoa(port))
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			s.logger.Debug(context.Background(), "Port unavailable", "addr", addr, "error", err)
			continue
		}
		return ln, nil
	}
	return nil, &errors.PortRangeError{Host: s.host, Start: start, End: end}
}

// Handle is a running file server.
type Handle struct {
	host string
	port int
	root string
	srv  *http.Server

	done     chan struct{}
	serveErr error

	shutdownOnce sync.Once
	shutdownErr  error

	logger  logging.Logger
	metrics *monitoring.Metrics
}

func (h *Handle) serve(ln net.Listener) {
	defer close(h.done)
	if err := h.srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		h.serveErr = err
		h.logger.Error(context.Background(), err, "File server stopped", "port", h.port)
	}
}

// Port returns the bound port.
func (h *Handle) Port() int { return h.port }

// Root returns the served directory.
func (h *Handle) Root() string { return h.root }

// Done is closed when the accept loop has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// URL returns the address of path on this server.
func (h *Handle) URL(path string) string {
	return fmt.Sprintf("http://%s/%s", net.JoinHostPort(h.host, strconv.Itoa(h.port)), strings.TrimPrefix(path, "/"))
}

// Shutdown stops accepting connections, waits for in-flight requests until
// ctx expires and releases the port. It returns after the accept loop has
// exited and may be called any number of times from any goroutine.
func (h *Handle) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		err := h.srv.Shutdown(ctx)
		if err != nil {
			// in-flight requests outlived ctx
			_ = h.srv.Close()
		}
		<-h.done

		h.shutdownErr = err
		h.metrics.ServerReleased()
		h.logger.Debug(ctx, "File server stopped", "port", h.port)
	})
	return h.shutdownErr
}
