// Package server exposes the HTTP and WebSocket API.
package server

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/pulsegrid/pulsegrid/internal/config"
	"github.com/pulsegrid/pulsegrid/internal/metrics"
	"github.com/pulsegrid/pulsegrid/internal/notify"
	"github.com/pulsegrid/pulsegrid/internal/sqlite"
	"github.com/pulsegrid/pulsegrid/internal/stream"
)

// Server hosts the REST API and the per-device event stream.
type Server struct {
	app        *fiber.App
	config     *config.Config
	sqlite     *sqlite.DB
	hub        *stream.Hub
	dispatcher *notify.Dispatcher
	log        *slog.Logger
}

// Options holds the dependencies for creating a Server.
type Options struct {
	Config     *config.Config
	SQLite     *sqlite.DB
	Hub        *stream.Hub
	Dispatcher *notify.Dispatcher
	Logger     *slog.Logger
}

// New wires the Fiber app, middleware and routes.
func New(opts Options) *Server {
	s := &Server{
		config:     opts.Config,
		sqlite:     opts.SQLite,
		hub:        opts.Hub,
		dispatcher: opts.Dispatcher,
		log:        opts.Logger.With("component", "server"),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "pulsegrid",
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: opts.Config.Server.FrontendURL,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	s.registerRoutes()
	return s
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return SendError(c, code, err.Error())
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/metrics", s.handleMetrics)

	api := s.app.Group("/api/v1")

	// Devices post every few seconds; ingestion must never be throttled.
	api.Post("/readings", s.handleIngestReading)

	limited := api.Group("", limiter.New(limiter.Config{
		Max:        s.config.Server.RateLimit,
		Expiration: time.Minute,
	}))
	limited.Get("/devices/:deviceID/readings", s.handleReadingHistory)
	limited.Get("/devices/:deviceID/readings/latest", s.handleLatestReading)

	limited.Get("/alerts", s.handleListAlerts)
	limited.Get("/alerts/stats", s.handleAlertStats)
	limited.Get("/alerts/unhandled", s.handleListUnhandledAlerts)
	limited.Get("/alerts/:alertID", s.handleGetAlert)
	limited.Post("/alerts/:alertID/handle", s.handleMarkAlertHandled)
	limited.Post("/alerts/:alertID/resend", s.handleResendAlertEmail)

	limited.Get("/admin/settings", s.handleListSettings)
	limited.Put("/admin/settings/:key", s.handleUpsertSetting)
	limited.Delete("/admin/settings/:key", s.handleDeleteSetting)

	api.Use("/ws", s.upgradeWebSocket)
	api.Get("/ws", websocket.New(s.handleDeviceStream))
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return SendSuccess(c, fiber.StatusOK, fiber.Map{"status": "ok"})
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	metrics.WritePrometheus(c.Response().BodyWriter())
	return nil
}

// Start begins serving and blocks until the listener closes.
func (s *Server) Start() error {
	s.log.Info("starting http server", "addr", s.config.Server.Addr)
	return s.app.Listen(s.config.Server.Addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown() error {
	s.log.Info("shutting down http server")
	return s.app.ShutdownWithTimeout(10 * time.Second)
}
