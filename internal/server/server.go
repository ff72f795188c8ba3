package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/RuliLG/docc/internal/config"
	"github.com/RuliLG/docc/internal/readiness"
	"github.com/RuliLG/docc/internal/scriptgen"
	"github.com/RuliLG/docc/internal/sessionstore"
	"github.com/RuliLG/docc/internal/synthesis"
)

// Server exposes the daemon's HTTP API under /api/v1 and serves persisted
// session files.
type Server struct {
	cfg      config.Config
	scripts  *scriptgen.Service
	synth    *synthesis.Manager
	store    *sessionstore.Store
	checker  *readiness.Checker
	registry *audioRegistry
	router   chi.Router
	httpSrv  *http.Server
	logger   *slog.Logger
}

func New(cfg config.Config, scripts *scriptgen.Service, synth *synthesis.Manager, store *sessionstore.Store, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		scripts:  scripts,
		synth:    synth,
		store:    store,
		checker:  readiness.NewChecker(cfg.Synthesis),
		registry: newAudioRegistry(),
		logger:   logger.With(slog.String("component", "http-server")),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/generate-script", s.handleGenerateScript)
		r.Post("/generate-audio", s.handleGenerateAudio)
		r.Get("/audio/{audioID}", s.handleGetAudio)
		r.Get("/cache/stats", s.handleCacheStats)
		r.Delete("/cache", s.handleClearCache)
		r.Get("/health", s.handleHealth)
		r.Get("/available-providers", s.handleAvailableProviders)
		r.Get("/file-content", s.handleFileContent)
		r.Get("/system-check", s.handleSystemCheck)
		r.Get("/system-check/quick", s.handleQuickSystemCheck)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{folder}", s.handleGetSession)
	})

	// Session folders (script.json and narration audio) are served as
	// static files for the presentation UI.
	fileServer := http.StripPrefix("/sessions/", http.FileServer(http.Dir(s.cfg.Sessions.Dir)))
	r.Get("/sessions/*", func(w http.ResponseWriter, req *http.Request) {
		fileServer.ServeHTTP(w, req)
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)
		s.logger.Debug("request",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)))
	})
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.HTTP.Bind, s.cfg.HTTP.Port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server listening", slog.String("addr", addr))
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server failed", slogError(err))
		}
	}()
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
