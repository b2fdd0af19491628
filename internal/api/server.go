package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/mosquitto-monitor/internal/infrastructure/config"
	"github.com/nerrad567/mosquitto-monitor/internal/infrastructure/logging"
	"github.com/nerrad567/mosquitto-monitor/internal/monitor"
)

// Server timeouts.
const (
	// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
	// to complete during shutdown.
	gracefulShutdownTimeout = 10 * time.Second

	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
)

// StatusSource is the part of the monitor the server reports on.
// *monitor.Monitor satisfies it.
type StatusSource interface {
	HealthCheck(ctx context.Context) error
	Status() monitor.Status
}

// Dependency is a backend whose health is listed on /api/v1/status.
type Dependency struct {
	Name  string
	Check func(ctx context.Context) error
	// Stats is optional and reported as-is.
	Stats func() any
}

// Deps holds the dependencies required by the status server.
type Deps struct {
	Config  config.StatusServerConfig
	Logger  *logging.Logger
	Monitor StatusSource
	// Metrics serves /metrics. Optional; the route returns 404 without it.
	Metrics      http.Handler
	Dependencies []Dependency
	Version      string
}

// Server is the status HTTP server.
//
// It is created with New() and started with Start().
type Server struct {
	cfg       config.StatusServerConfig
	logger    *logging.Logger
	monitor   StatusSource
	metrics   http.Handler
	deps      []Dependency
	version   string
	startTime time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates a new status server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Monitor == nil {
		return nil, fmt.Errorf("monitor is required")
	}
	for _, d := range deps.Dependencies {
		if d.Name == "" || d.Check == nil {
			return nil, fmt.Errorf("dependency %q needs a name and a check", d.Name)
		}
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		monitor:   deps.Monitor,
		metrics:   deps.Metrics,
		deps:      deps.Dependencies,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start binds the listener and serves requests in a background goroutine.
//
// Binding happens before Start returns, so a port already in use is
// reported here rather than logged later.
//
// Returns:
//   - error: If the address cannot be bound or the server was already started
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("status server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("binding status server to %s: %w", addr, err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	s.logger.Info("status server listening", "address", listener.Addr().String())

	srv := s.server
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("status server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status server: %w", err)
	}
	return nil
}
