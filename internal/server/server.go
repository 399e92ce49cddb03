// Package server provides the HTTP ops API for Ghillie: registry
// listings and toggles, catalogue imports, report runs, review queues,
// and system health.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/database"
	"github.com/wildside/ghillie/internal/modules/catalogue"
	"github.com/wildside/ghillie/internal/modules/registry"
	"github.com/wildside/ghillie/internal/modules/reporting"
)

// Config holds server configuration
type Config struct {
	Log     zerolog.Logger
	Port    int
	DevMode bool
	DataDir string

	// Databases keyed by name, for health checks and stats
	Databases map[string]*database.DB

	Estates      *catalogue.EstateRepository
	Importer     *catalogue.Importer
	Registry     *registry.Service
	Orchestrator *reporting.Orchestrator
	Reports      *reporting.ReportRepository
	Reviews      *reporting.ReviewRepository
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger

	systemHandlers   *SystemHandlers
	registryHandlers *RegistryHandlers
	estateHandlers   *EstateHandlers
	reportHandlers   *ReportHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),

		systemHandlers:   NewSystemHandlers(cfg.Log, cfg.DataDir, cfg.Databases),
		registryHandlers: NewRegistryHandlers(cfg.Registry, cfg.Log),
		estateHandlers:   NewEstateHandlers(cfg.Estates, cfg.Importer, cfg.Registry, cfg.Orchestrator, cfg.Log),
		reportHandlers:   NewReportHandlers(cfg.Registry, cfg.Orchestrator, cfg.Reports, cfg.Reviews, cfg.Log),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Liveness probe outside /api
	s.router.Get("/health", s.systemHandlers.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.systemHandlers.HandleHealth)

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
		})

		r.Route("/registry", func(r chi.Router) {
			r.Get("/repositories", s.registryHandlers.HandleList)
			r.Route("/repositories/{owner}/{name}", func(r chi.Router) {
				r.Get("/", s.registryHandlers.HandleGet)
				r.Post("/enable", s.registryHandlers.HandleEnable)
				r.Post("/disable", s.registryHandlers.HandleDisable)
			})
		})

		r.Route("/estates/{key}", func(r chi.Router) {
			r.Post("/sync", s.estateHandlers.HandleSync)
			r.Post("/import", s.estateHandlers.HandleImport)
			r.Post("/reports/run", s.estateHandlers.HandleRunReports)
		})

		r.Route("/repositories/{owner}/{name}/reports", func(r chi.Router) {
			r.Get("/", s.reportHandlers.HandleList)
			r.Post("/run", s.reportHandlers.HandleRun)
		})

		r.Get("/reviews", s.reportHandlers.HandleListReviews)
	})
}

// Router exposes the handler tree, used by tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
