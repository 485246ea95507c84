// Package server espone il forum su HTTP: POST /chat (JSON o SSE),
// health check, sessioni persistite e metriche.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/biodoia/roundtable/internal/forum"
	"github.com/biodoia/roundtable/internal/store"
	"github.com/biodoia/roundtable/pkg/config"
	"github.com/biodoia/roundtable/pkg/middleware"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

// Version è riportata nell'header Server
const Version = "1.0.0"

// Server è il servizio HTTP del forum
type Server struct {
	config       *config.Config
	app          *fiber.App
	orchestrator *forum.Orchestrator
	store        store.Store
}

// New crea il server e registra middleware e route
func New(cfg *config.Config, orchestrator *forum.Orchestrator, st store.Store) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "roundtable",
		ServerHeader: "roundtable/" + Version,
		ErrorHandler: errorHandler,
		// le discussioni lunghe in streaming non devono scadere lato server
		WriteTimeout: 0,
		ReadTimeout:  30 * time.Second,
	})

	s := &Server{
		config:       cfg,
		app:          app,
		orchestrator: orchestrator,
		store:        st,
	}

	s.setupMiddlewares()
	s.setupRoutes()

	return s
}

// App restituisce l'applicazione fiber (usata dai test)
func (s *Server) App() *fiber.App {
	return s.app
}

// errorHandler traduce gli errori in {detail, request_id}.
// Validazione 400, sessione sconosciuta 404, discussione già in corso 409, il resto 500.
func errorHandler(c fiber.Ctx, err error) error {
	code := StatusFor(err)

	if code >= fiber.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(c)).
			Str("path", c.Path()).
			Msg("request failed")
	}

	return c.Status(code).JSON(fiber.Map{
		"detail":     err.Error(),
		"request_id": middleware.GetRequestID(c),
	})
}

// StatusFor restituisce lo status HTTP di un errore
func StatusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, forum.ErrInvalidRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, store.ErrSessionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, forum.ErrConcurrentRun):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// setupMiddlewares configura i middleware globali
func (s *Server) setupMiddlewares() {
	// RequestID per primo: anche le risposte ai panic riportano il request id
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Recovery())

	s.app.Use(middleware.CORS(middleware.CORSFromOrigins(s.config.Server.CORSOrigins)))

	s.app.Use(middleware.Logging(middleware.LoggingConfig{
		SkipPaths: []string{"/health", "/ready", "/metrics"},
	}))

	if s.config.Metrics.Enabled {
		s.app.Use(middleware.Metrics(middleware.MetricsConfig{
			SkipPaths: []string{"/metrics"},
		}))
	}
}

// setupRoutes configura le route HTTP
func (s *Server) setupRoutes() {
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/ready", s.handleReady)

	if s.config.Metrics.Enabled {
		s.app.Get("/metrics", middleware.PrometheusHandler())
	}

	s.app.Post("/chat", middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerMinute: s.config.Server.RateLimitRPM,
	}), s.handleChat)

	sessions := s.app.Group("/sessions")
	sessions.Get("/", s.handleListSessions)
	sessions.Get("/:id", s.handleGetSession)
}

// Start avvia il server sull'indirizzo configurato
func (s *Server) Start() error {
	addr := s.config.Server.Addr()
	log.Info().Str("addr", addr).Msg("HTTP server listening")
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown esegue lo shutdown graceful del server
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	log.Info().Msg("HTTP server stopped")
	return nil
}

// handleHealth endpoint di health check
func (s *Server) handleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleReady verifica lo store di sessione
func (s *Server) handleReady(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"ready":  false,
			"detail": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"ready":     true,
		"timestamp": time.Now().Unix(),
	})
}
