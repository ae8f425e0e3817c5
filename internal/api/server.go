package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-agents/internal/agent"
	"github.com/nerrad567/gray-logic-agents/internal/bus"
	"github.com/nerrad567/gray-logic-agents/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-agents/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-agents/internal/journal"
	"github.com/nerrad567/gray-logic-agents/internal/metrics"
	"github.com/nerrad567/gray-logic-agents/internal/state"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Console is the operator surface the API drives.
type Console interface {
	Snapshot() state.Snapshot
	BusStats() bus.Stats
	TogglePresence(ctx context.Context, source string) (bool, error)
	ToggleNight(ctx context.Context, source string) (bool, error)
	AdjustTemperature(ctx context.Context, source string, delta float64) (float64, error)
	SimulateMotion(ctx context.Context, source string) error
	ResetAlert(ctx context.Context, source string) error
	SendCommand(ctx context.Context, source string, target bus.Target, action bus.Action) error
	ClearLog(ctx context.Context, source string)
}

// AgentSource reports agent statistics and overall health.
type AgentSource interface {
	Stats() []agent.Stats
	Healthy() bool
}

// JournalLister lists recorded operator actions.
type JournalLister interface {
	List(ctx context.Context, filter journal.Filter) (*journal.ListResult, error)
}

// HealthCheckFunc reports whether an optional dependency is reachable.
type HealthCheckFunc func(ctx context.Context) error

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Console  Console
	Agents   AgentSource                // optional
	Journal  JournalLister              // optional
	Metrics  *metrics.Registry          // optional; serves /metrics when set
	Checks   map[string]HealthCheckFunc // optional; reported by /health
	Version  string
}

// Server is the HTTP API server for the operator console.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	console   Console
	agents    AgentSource
	journal   JournalLister
	metrics   *metrics.Registry
	checks    map[string]HealthCheckFunc
	limiter   *rateLimiter
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Console == nil {
		return nil, fmt.Errorf("console is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		console:   deps.Console,
		agents:    deps.Agents,
		journal:   deps.Journal,
		metrics:   deps.Metrics,
		checks:    deps.Checks,
		version:   deps.Version,
		startTime: time.Now(),
	}
	if deps.Security.RateLimit.Enabled {
		s.limiter = newRateLimiter(deps.Security.RateLimit)
	}
	s.hub = NewHub(deps.WS, deps.Console, deps.Logger)
	return s, nil
}

// Handler returns the router without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections and starts the WebSocket
// push loop. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.ReadTimeout(),
		WriteTimeout:      s.cfg.WriteTimeout(),
		IdleTimeout:       s.cfg.IdleTimeout(),
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
