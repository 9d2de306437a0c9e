package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-story-bot/internal/usecase"
)

// Server is the admin HTTP surface: health, Prometheus metrics and a small
// JWT-protected read-only API.
type Server struct {
	statsUC     usecase.StatsUseCase
	auth        *AuthManager
	warnLogPath string
	log         *zerolog.Logger

	server *http.Server
}

func NewServer(statsUC usecase.StatsUseCase, auth *AuthManager, warnLogPath string, logger *zerolog.Logger) *Server {
	return &Server{statsUC: statsUC, auth: auth, warnLogPath: warnLogPath, log: logger}
}

// Router builds the chi router with all admin routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID, RequestLog(s.log), Recover(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware, Timeout(10*time.Second))
		r.Get("/stats", statsHandler(s.statsUC))
		r.Get("/users/{tgID}/usage", usageHandler(s.statsUC))
		r.Get("/logs/warning", warningLogHandler(s.warnLogPath))
	})
	return r
}

// authMiddleware requires a valid admin JWT bearer token.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			s.log.Error().Msg("admin JWT secret is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start blocks until the server stops. A clean Shutdown returns nil.
func (s *Server) Start(port int) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Int("port", port).Msg("admin server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
