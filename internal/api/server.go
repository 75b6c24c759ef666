// Package api exposes the interview service over HTTP and WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/frymyresume/interviewd/internal/interview"
)

const (
	service         = "interviewd"
	interviewPath   = "/ws/behavioral-interview"
	shutdownTimeout = 10 * time.Second
)

// DefaultAllowedOrigins are the local development front-ends.
var DefaultAllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// Config holds the listener settings.
type Config struct {
	Listen         string        `mapstructure:"listen"`
	AllowedOrigins []string      `mapstructure:"allowed-origins"`
	WriteTimeout   time.Duration `mapstructure:"write-timeout"`
}

// Server routes health, session listing and interview connections.
type Server struct {
	interviews *interview.Service
	router     chi.Router
	upgrader   websocket.Upgrader
	origins    map[string]struct{}
	anyOrigin  bool
	cfg        Config
	logger     *zap.Logger
}

// NewServer builds the router for interviews.
func NewServer(interviews *interview.Service, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = DefaultAllowedOrigins
	}

	srv := &Server{
		interviews: interviews,
		origins:    make(map[string]struct{}, len(cfg.AllowedOrigins)),
		cfg:        cfg,
		logger:     logger,
	}
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			srv.anyOrigin = true
		}
		srv.origins[origin] = struct{}{}
	}
	srv.upgrader = websocket.Upgrader{
		ReadBufferSize:  32 * 1024,
		WriteBufferSize: 32 * 1024,
		CheckOrigin:     srv.checkOrigin,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", srv.handleHealth)
		r.Get("/sessions", srv.handleSessions)
	})
	r.Get(interviewPath, srv.handleInterview)

	srv.router = r
	return srv
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
// Live interviews inherit ctx and are torn down with it.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP API", zap.String("addr", s.cfg.Listen))
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down HTTP API")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.anyOrigin {
		return true
	}
	_, ok := s.origins[strings.TrimRight(origin, "/")]
	if !ok {
		s.logger.Warn("websocket origin rejected", zap.String("origin", origin))
	}
	return ok
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"service":         service,
		"active_sessions": s.interviews.Registry().Len(),
	})
}

type sessionView struct {
	interview.Snapshot
	AgeSeconds int64 `json:"age_seconds"`
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	snapshots := s.interviews.Registry().Snapshots()

	now := time.Now()
	views := make([]sessionView, 0, len(snapshots))
	for _, snapshot := range snapshots {
		views = append(views, sessionView{
			Snapshot:   snapshot,
			AgeSeconds: int64(now.Sub(snapshot.CreatedAt) / time.Second),
		})
	}

	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleInterview(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := newWSConn(ws, s.cfg.WriteTimeout)
	s.logger.Debug("interview connection accepted", zap.String("remote", r.RemoteAddr))

	if err := s.interviews.Serve(r.Context(), conn); err != nil {
		s.logger.Debug("interview connection closed", zap.String("remote", r.RemoteAddr), zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
