package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/deadcoast/vince/internal/domain"
	"github.com/deadcoast/vince/internal/middleware"
)

// RouterConfig contains configuration for the HTTP router
type RouterConfig struct {
	CORSOrigins    []string
	RateLimitRPS   int
	RateLimitBurst int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// RouterDependencies contains all dependencies needed by the router
type RouterDependencies struct {
	Documents     DocumentReader
	Checker       ConsistencyChecker
	HealthChecker domain.HealthChecker
}

// RouterResult contains the configured app and cleanup function
type RouterResult struct {
	App     *fiber.App
	Cleanup func()
}

// SetupRouter creates the read-only status API. Nothing reachable from it
// mutates the documents or the OS.
func SetupRouter(deps RouterDependencies, config RouterConfig) *RouterResult {
	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           config.ReadTimeout,
		WriteTimeout:          config.WriteTimeout,
		DisableStartupMessage: true,
	})

	handlers := NewHandlers(deps.Documents, deps.Checker, deps.HealthChecker)

	// Middleware pipeline (order is critical)

	app.Use(requestid.New(requestid.Config{
		Header:     "X-Request-ID",
		Generator:  uuid.NewString,
		ContextKey: domain.RequestIDKey,
	}))

	app.Use(structuredLoggingMiddleware())

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			log.Error().
				Str("request_id", requestIDOf(c)).
				Interface("panic", e).
				Str("method", c.Method()).
				Str("path", c.Path()).
				Msg("Panic recovered")
		},
	}))

	app.Use(securityHeadersMiddleware())

	var stopRateLimiter func()
	if config.RateLimitRPS > 0 {
		rateLimiter := middleware.NewRateLimiter(config.RateLimitRPS, config.RateLimitBurst)
		stopRateLimiter = rateLimiter.StartCleanupRoutine()
		app.Use(rateLimiter.Middleware())
	}

	if len(config.CORSOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins: strings.Join(config.CORSOrigins, ","),
			AllowMethods: "GET,OPTIONS",
			AllowHeaders: "Origin,Accept,X-Request-ID",
			MaxAge:       86400,
		}))
	}

	v1 := app.Group("/v1")
	v1.Get("/defaults", handlers.ListDefaultsHandler)
	v1.Get("/offers", handlers.ListOffersHandler)
	v1.Get("/check", handlers.CheckHandler)
	v1.Get("/conflicts", handlers.ConflictsHandler)

	app.Get("/health", handlers.HealthHandler)

	cleanup := func() {
		if stopRateLimiter != nil {
			stopRateLimiter()
		}
	}

	return &RouterResult{App: app, Cleanup: cleanup}
}

// customErrorHandler handles Fiber framework errors
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	errCode := domain.ErrInternal
	switch code {
	case fiber.StatusNotFound:
		errCode = domain.ErrNotFound
	case fiber.StatusMethodNotAllowed, fiber.StatusBadRequest:
		errCode = domain.ErrValidationFailed
	}

	return c.Status(code).JSON(ErrorResponse{
		Status:  "error",
		Code:    errCode,
		Message: message,
	})
}

func requestIDOf(c *fiber.Ctx) string {
	if rid, ok := c.Locals(domain.RequestIDKey).(string); ok {
		return rid
	}
	return "unknown"
}

// structuredLoggingMiddleware logs one zerolog event per request
func structuredLoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		logEvent := log.Info()
		if status >= 500 {
			logEvent = log.Error()
		} else if status >= 400 {
			logEvent = log.Warn()
		}

		logEvent.
			Str("request_id", requestIDOf(c)).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.IP()).
			Int("response_size", len(c.Response().Body())).
			Msg("HTTP request processed")

		return err
	}
}

// securityHeadersMiddleware adds security headers
func securityHeadersMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "no-referrer")
		c.Set("Cache-Control", "no-store")
		return c.Next()
	}
}
