// Package server provides the HTTP server and routing for Qumatch.
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

	"github.com/aristath/qumatch/internal/config"
	"github.com/aristath/qumatch/internal/database"
	"github.com/aristath/qumatch/internal/database/repositories"
	"github.com/aristath/qumatch/internal/domain"
	"github.com/aristath/qumatch/internal/events"
	"github.com/aristath/qumatch/internal/modules/assembler"
)

// Config holds server configuration
type Config struct {
	Log      zerolog.Logger
	Config   *config.Config
	RunsDB   *database.DB
	Repo     *repositories.RunRepository
	EventBus *events.Manager
	Backends map[string]domain.Backend
	Port     int
	DevMode  bool
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	runsDB         *database.DB
	repo           *repositories.RunRepository
	eventBus       *events.Manager
	backends       map[string]domain.Backend
	assembler      *assembler.Assembler
	systemHandlers *SystemHandlers
	streamHandler  *EventsStreamHandler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		runsDB:         cfg.RunsDB,
		repo:           cfg.Repo,
		eventBus:       cfg.EventBus,
		backends:       cfg.Backends,
		assembler:      assembler.New(cfg.Log),
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.RunsDB, cfg.Repo),
		streamHandler:  NewEventsStreamHandler(cfg.EventBus, cfg.Log),
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

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	allowedOrigins := []string{"http://localhost:*", "http://127.0.0.1:*"}
	if devMode {
		allowedOrigins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/runs", s.handleCreateRun)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/qasm", s.handleGetRunQASM)
		r.Post("/match", s.handleMatchNow)

		r.Get("/backends", s.handleListBackends)
		r.Get("/bounds", s.handleBounds)

		r.Get("/system/status", s.systemHandlers.handleStatus)
		r.Get("/events/stream", s.streamHandler.ServeHTTP)
	})
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}
