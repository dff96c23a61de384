package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second

	// WriteTimeout is generous because publish requests stream multipart
	// video uploads through the handler.
	writeTimeout = 120 * time.Second

	// ShutdownTimeout bounds how long a terminating process waits for
	// in-flight requests to drain.
	ShutdownTimeout = 15 * time.Second
)

// Server wraps an http.Server configured for the API's traffic profile.
type Server struct {
	inner *http.Server
}

// New constructs a server listening on the provided port.
func New(port int, handler http.Handler) *Server {
	return &Server{
		inner: &http.Server{
			Addr:              ":" + strconv.Itoa(port),
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
		},
	}
}

// Start serves HTTP traffic until Shutdown is called. A server closed by
// Shutdown reports nil rather than http.ErrServerClosed.
func (s *Server) Start() error {
	if err := s.inner.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting new connections and drains active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
