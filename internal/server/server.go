package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/contactd/contactd/internal/config"
	"github.com/contactd/contactd/internal/core/dispatch"
	"github.com/contactd/contactd/internal/core/engine"
	"github.com/contactd/contactd/internal/observability"
	"github.com/contactd/contactd/internal/server/handlers"
	servermw "github.com/contactd/contactd/internal/server/middleware"
)

// Options carries the collaborators the server routes to.
type Options struct {
	Config     *config.Config
	Limiter    *engine.RateLimiter
	Dispatcher dispatch.Dispatcher
	StartedAt  time.Time
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	cfg    *config.Config
	opts   Options
	host   string
	port   int
}

// New creates a new HTTP server instance
func New(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	if opts.Limiter == nil {
		opts.Limiter = engine.NewRateLimiter(engine.WithWindow(cfg.RateLimit.Window))
	}
	if opts.StartedAt.IsZero() {
		opts.StartedAt = time.Now()
	}

	r := chi.NewRouter()

	// RequestID → SecurityHeaders → CORS → Metrics → Recovery
	r.Use(servermw.RequestID)
	r.Use(servermw.SecurityHeaders(cfg.Server.HSTS))
	r.Use(servermw.CORS(cfg.CORS.AllowedOrigins))
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	s := &Server{
		router: r,
		cfg:    cfg,
		opts:   opts,
		host:   cfg.Server.Host,
		port:   cfg.Server.Port,
	}

	handlers.SetHTTPErrorResponder(HandleError)

	s.registerRoutes()

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  orDefault(s.cfg.Server.ReadTimeout, 30*time.Second),
		WriteTimeout: orDefault(s.cfg.Server.WriteTimeout, 30*time.Second),
		IdleTimeout:  orDefault(s.cfg.Server.IdleTimeout, 120*time.Second),
	}

	observability.ServerLogger.Info("Starting HTTP server",
		zap.String("host", s.host),
		zap.Int("port", s.port),
		zap.String("addr", addr),
		zap.String("mode", s.cfg.Mode))

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	observability.ServerLogger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.port
}

// spaHandler serves files from dir and falls back to index.html so
// client-side routes resolve. API paths never fall back.
func spaHandler(dir string) http.HandlerFunc {
	files := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")

	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			notFound(w, r)
			return
		}

		clean := filepath.Clean("/" + r.URL.Path)
		if info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(clean))); err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}

		if _, err := os.Stat(index); err != nil {
			notFound(w, r)
			return
		}
		http.ServeFile(w, r, index)
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
