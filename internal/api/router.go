package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"dayplanner/internal/catalog"
	"dayplanner/internal/planner"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server holds the HTTP server state.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	catalog    *catalog.Catalog
	planner    *planner.Planner
	mcpHandler http.Handler
	logger     *slog.Logger
	authToken  string
	refresh    string
}

// Options are the optional parts of the HTTP surface.
type Options struct {
	AuthToken string
	// MCPHandler is mounted at /mcp when set.
	MCPHandler http.Handler
	// RefreshCron is the configured refresh expression, used as the default
	// of the cron preview endpoint.
	RefreshCron string
}

// NewServer constructs the HTTP API server.
func NewServer(addr string, cat *catalog.Catalog, pl *planner.Planner, logger *slog.Logger, opts Options) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)

	s := &Server{
		router:     router,
		catalog:    cat,
		planner:    pl,
		mcpHandler: opts.MCPHandler,
		logger:     logger,
		authToken:  opts.AuthToken,
		refresh:    opts.RefreshCron,
	}
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if s.mcpHandler != nil {
		s.router.Handle("/mcp", AuthMiddleware(s.authToken)(s.mcpHandler))
	}

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(s.authToken))

		r.Post("/cron/preview", s.handleCronPreview)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)

			r.Route("/{taskID}", func(r chi.Router) {
				r.Get("/", s.handleGetTask)
				r.Patch("/", s.handleUpdateTask)
				r.Delete("/", s.handleDeleteTask)
				r.Get("/occurrences", s.handleTaskOccurrences)
			})
		})

		r.Route("/sleep/{date}", func(r chi.Router) {
			r.Get("/", s.handleGetSleep)
			r.Put("/", s.handlePutSleep)
			r.Delete("/", s.handleDeleteSleep)
		})

		r.Get("/schedule", s.handleSchedule)
		r.Get("/schedule/range", s.handleScheduleRange)
		r.Get("/occurrences", s.handleOccurrences)
	})
}
