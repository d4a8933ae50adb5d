// Package rpc serves the node over JSON-RPC, plus health, metrics and a
// websocket event stream.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"paylinkchain/core"
	"paylinkchain/core/events"
	"paylinkchain/observability"
	"paylinkchain/rpc/middleware"
	"paylinkchain/storage/eventlog"
)

// OperatorScope is required on bearer tokens for operator methods.
const OperatorScope = "paylink:operator"

// EventHistory answers paylink_events queries.
type EventHistory interface {
	List(ctx context.Context, q eventlog.Query) ([]eventlog.Entry, error)
}

type Config struct {
	RateLimit    middleware.RateLimit
	Operator     middleware.AuthConfig
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// WSOrigins are the cross-origin host patterns accepted on /ws/events.
	// Same-origin upgrades are always accepted.
	WSOrigins []string
	// MaxStreams caps concurrent /ws/events connections; zero uses
	// defaultMaxStreams.
	MaxStreams int
	Logger     *slog.Logger
}

const defaultMaxStreams = 64

type Server struct {
	node     *core.Node
	history  EventHistory
	stream   *events.Broadcaster
	logger   *slog.Logger
	cfg      Config
	limiter  *middleware.RateLimiter
	operator *middleware.Authenticator
	methods  map[string]methodHandler
	streams  chan struct{}

	serverMu   sync.Mutex
	httpServer *http.Server
}

// NewServer builds a server for node. history and stream are optional.
func NewServer(node *core.Node, history EventHistory, stream *events.Broadcaster, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimit)
	limiter.OnThrottle(func(*http.Request) {
		observability.ModuleMetrics().RecordThrottle("jsonrpc", "rate_limit")
	})
	s := &Server{
		node:     node,
		history:  history,
		stream:   stream,
		logger:   logger.With(slog.String("component", "rpc")),
		cfg:      cfg,
		limiter:  limiter,
		operator: middleware.NewAuthenticator(cfg.Operator),
	}
	maxStreams := cfg.MaxStreams
	if maxStreams <= 0 {
		maxStreams = defaultMaxStreams
	}
	s.streams = make(chan struct{}, maxStreams)
	s.methods = s.methodTable()
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.With(middleware.Observe("jsonrpc"), s.limiter.Middleware).Post("/", s.handle)
	r.With(middleware.Observe("events_ws"), s.limiter.Middleware).Get("/ws/events", s.handleEventsWS)
	return r
}

// Serve accepts connections on ln until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.node == nil {
		return fmt.Errorf("rpc: node required")
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("rpc listening", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	health, err := s.node.HealthCheck(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = writeJSON(w, health)
}
