// Package server exposes the bridge's HTTP surface: the orchestrator control
// endpoints, the Telnyx webhook and media-stream endpoints, and the usual
// health and metrics routes.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/timetocall/callbridge/internal/call"
	"github.com/timetocall/callbridge/internal/config"
	"github.com/timetocall/callbridge/internal/health"
	"github.com/timetocall/callbridge/internal/observe"
)

// shutdownTimeout bounds graceful HTTP shutdown once the context is done.
const shutdownTimeout = 10 * time.Second

// Moderator vets a briefing before a call is placed. A non-nil error
// rejects the request with 422. The default moderator accepts everything.
type Moderator func(ctx context.Context, briefing string) error

// Config holds the server's dependencies.
type Config struct {
	// ListenAddr is the TCP address to bind (e.g. ":8080").
	ListenAddr string

	// Secret is the bearer token expected on control endpoints.
	Secret string

	// Engine drives the calls.
	Engine *call.Engine

	// Metrics defaults to [observe.DefaultMetrics] when nil.
	Metrics *observe.Metrics

	// Moderate, when set, screens briefings on /start-call.
	Moderate Moderator

	// TLS enables HTTPS when non-nil.
	TLS *config.TLSConfig
}

// Server is the bridge's HTTP front end.
type Server struct {
	listenAddr string
	secret     string
	engine     *call.Engine
	metrics    *observe.Metrics
	moderate   Moderator
	tls        *config.TLSConfig

	handler http.Handler
}

// New builds a [Server] with all routes registered.
func New(cfg Config) *Server {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	s := &Server{
		listenAddr: cfg.ListenAddr,
		secret:     cfg.Secret,
		engine:     cfg.Engine,
		metrics:    cfg.Metrics,
		moderate:   cfg.Moderate,
		tls:        cfg.TLS,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /start-call", s.requireAuth(s.handleStartCall))
	mux.HandleFunc("POST /end-call", s.requireAuth(s.handleEndCall))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /telnyx/media-stream", s.handleMediaStream)
	mux.HandleFunc("POST /telnyx/webhook", s.handleWebhook)
	mux.Handle("GET /metrics", promhttp.Handler())

	hh := health.New(health.Checker{
		Name: "engine",
		Check: func(context.Context) error {
			if s.engine == nil {
				return errors.New("engine not configured")
			}
			return nil
		},
	})
	hh.Register(mux)

	s.handler = observe.Middleware(cfg.Metrics)(mux)
	return s
}

// Handler returns the fully assembled handler. Used by tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.listenAddr,
		Handler: s.handler,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if s.tls != nil {
			err = srv.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// requireAuth wraps a handler with bearer token validation.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		auth := r.Header.Get("Authorization")
		if len(auth) <= len(prefix) ||
			subtle.ConstantTimeCompare([]byte(auth[:len(prefix)]), []byte(prefix)) != 1 ||
			subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(s.secret)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("server: encode response", "err", err)
	}
}
