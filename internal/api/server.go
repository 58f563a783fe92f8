// Package api exposes the DoLoop HTTP surface: loop and task CRUD, reloop
// and reset, the template catalog with admin writes, analytics, affiliate
// tracking, and the AI generation function endpoint.
package api

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/myerscreative/doloop-sub000/internal/metrics"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	ListenAddr  string
	AuthConfig  AuthConfig
	RateLimit   RateLimitConfig
	CORSOrigins string
}

// Server is the DoLoop API Fiber application.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	logger   zerolog.Logger
	config   ServerConfig
	limiter  *RateLimiter
}

// NewServer creates and configures the API server.
func NewServer(cfg ServerConfig, h *Handlers, m *metrics.Metrics, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ReadBufferSize:        8192,
		WriteBufferSize:       8192,
	})

	s := &Server{
		app:      app,
		handlers: h,
		logger:   logger.With().Str("component", "api_server").Logger(),
		config:   cfg,
	}

	s.setupMiddleware(cfg, m, logger)
	s.setupRoutes(h, m)

	return s
}

func (s *Server) setupMiddleware(cfg ServerConfig, m *metrics.Metrics, logger zerolog.Logger) {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(NewRequestIDMiddleware())

	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
			AllowMethods: "GET, POST, PATCH, PUT, DELETE, OPTIONS",
		}))
	}

	if cfg.RateLimit.RPS > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimit)
		s.app.Use(s.limiter.Middleware())
	}

	s.app.Use(NewAuthMiddleware(cfg.AuthConfig, logger))

	// Request log and duration, skipping noisy probes
	s.app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return c.Next()
		}

		logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Str("ip", c.IP()).
			Str("request_id", RequestID(c)).
			Msg("api request")

		start := time.Now()
		err := c.Next()
		// Route pattern, not raw path, so IDs don't explode label cardinality.
		m.RecordDuration(c.Route().Path, time.Since(start).Seconds())
		return err
	})
}

func (s *Server) setupRoutes(h *Handlers, m *metrics.Metrics) {
	s.app.Get("/healthz", h.Liveness)
	s.app.Get("/readyz", h.Readiness)
	s.app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	v1 := s.app.Group("/api/v1")

	// Loops
	v1.Post("/loops", h.CreateLoop)
	v1.Get("/loops", h.ListLoops)
	v1.Get("/loops/:id", h.GetLoop)
	v1.Patch("/loops/:id", h.UpdateLoop)
	v1.Delete("/loops/:id", h.DeleteLoop)
	v1.Post("/loops/:id/reloop", h.Reloop)
	v1.Post("/loops/:id/reset", h.ResetLoop)
	v1.Post("/loops/:id/tasks", h.AddTask)

	// Tasks
	v1.Post("/tasks/:id/toggle", h.ToggleTask)
	v1.Delete("/tasks/:id", h.DeleteTask)

	// Streak & profile
	v1.Get("/streak", h.GetStreak)
	v1.Get("/profile", h.GetProfile)
	v1.Put("/profile/theme_vibe", h.SetThemeVibe)

	// Template catalog; writes are admin-only
	v1.Get("/creators", h.ListCreators)
	v1.Post("/creators", requireAdmin(), h.CreateCreator)
	v1.Delete("/creators/:id", requireAdmin(), h.DeleteCreator)
	v1.Get("/templates", h.ListTemplates)
	v1.Post("/templates", requireAdmin(), h.CreateTemplate)
	v1.Get("/templates/:id", h.GetTemplate)
	v1.Patch("/templates/:id", requireAdmin(), h.UpdateTemplate)
	v1.Delete("/templates/:id", requireAdmin(), h.DeleteTemplate)
	v1.Post("/templates/:id/use", h.UseTemplate)
	v1.Get("/templates/:id/reviews", h.ListReviews)
	v1.Post("/templates/:id/reviews", h.AddReview)

	// Analytics (admin)
	v1.Get("/analytics/dashboard", requireAdmin(), h.Dashboard)
	v1.Get("/analytics/templates", requireAdmin(), h.TemplatePerformance)
	v1.Get("/analytics/users/:id", requireAdmin(), h.UserSummary)

	// Affiliate tracking
	v1.Post("/affiliate/track_affiliate_click", h.TrackAffiliateClick)
	v1.Post("/affiliate/mark_affiliate_conversion", h.MarkAffiliateConversion)
	v1.Get("/affiliate/stats/:creatorID", requireAdmin(), h.AffiliateStats)

	// AI generation keeps the hosted-function path for client compatibility
	s.app.Post("/functions/v1/generate_ai_loop", h.GenerateAILoop)
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	s.logger.Info().Str("addr", addr).Msg("api server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server and stops the rate limiter.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("api server shutting down")
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func customErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.Error().
			Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("unhandled error")

		detail := err.Error()
		if code == fiber.StatusInternalServerError {
			detail = "An internal error occurred"
		}

		return c.Status(code).JSON(ProblemDetail{
			Type:     "internal_error",
			Title:    "Internal Server Error",
			Status:   code,
			Detail:   detail,
			Instance: c.Path(),
		})
	}
}
