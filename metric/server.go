package metric

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/c360/kvgate/errors"
)

// DefaultPath is where Server exposes metrics when no path is given.
const DefaultPath = "/metrics"

// Server is the operations listener. It serves the metrics endpoint and any
// endpoints added with Handle, apart from the gateway's own listener so that
// no record key is shadowed by them.
type Server struct {
	addr    string
	path    string
	mux     *http.ServeMux
	server  *http.Server
	mu      sync.Mutex
	started bool
}

// NewServer creates a Server for registry listening on addr.
func NewServer(addr, path string, registry *MetricsRegistry) *Server {
	if path == "" {
		path = DefaultPath
	}

	s := &Server{
		addr: addr,
		path: path,
		mux:  http.NewServeMux(),
	}
	s.mux.Handle(path, Handler(registry))
	s.mux.HandleFunc("GET /{$}", s.index)

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s
}

// Handle registers an additional endpoint, such as health, on the server.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until Shutdown is called and returns nil once it is.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.WrapInvalid(
			fmt.Errorf("server already running"),
			"Server", "Start", "cannot start server that is already running")
	}
	s.started = true
	s.mu.Unlock()

	err := s.server.ListenAndServe()
	if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return errors.WrapFatal(err, "Server", "Start",
			fmt.Sprintf("failed to start metrics server on %s", s.addr))
	}
	return nil
}

// Shutdown stops the server, waiting for active requests until ctx ends.
// A Start that has not begun listening yet returns at once.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "Server", "Shutdown",
			"failed to stop metrics server")
	}
	return nil
}

// Address returns the metrics URL
func (s *Server) Address() string {
	return fmt.Sprintf("http://%s%s", s.addr, s.path)
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "kvgate operations\n\nmetrics: %s\n", s.path)
}
