package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/deadcoast/vince/internal/check"
	"github.com/deadcoast/vince/internal/conflict"
	"github.com/deadcoast/vince/internal/domain"
	"github.com/deadcoast/vince/internal/service"
)

// DocumentReader is the read side of the service used by the status API
type DocumentReader interface {
	List(ctx context.Context) (*service.Listing, error)
	Conflicts(ctx context.Context) (conflict.Report, error)
}

// ConsistencyChecker compares stored intent with the OS
type ConsistencyChecker interface {
	Check(ctx context.Context, entries []domain.DefaultEntry) []check.Result
}

// Handlers contains all HTTP handlers for the status API
type Handlers struct {
	documents     DocumentReader
	checker       ConsistencyChecker
	healthChecker domain.HealthChecker
}

// NewHandlers creates a new instance of API handlers
func NewHandlers(documents DocumentReader, checker ConsistencyChecker, healthChecker domain.HealthChecker) *Handlers {
	return &Handlers{
		documents:     documents,
		checker:       checker,
		healthChecker: healthChecker,
	}
}

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Status    string `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// SuccessResponse represents the standard success response format
type SuccessResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

// CheckResponse is the payload of GET /v1/check
type CheckResponse struct {
	Results []check.Result `json:"results"`
	Summary check.Summary  `json:"summary"`
}

// ListDefaultsHandler handles GET /v1/defaults. The optional state and
// extension query parameters filter the entries.
func (h *Handlers) ListDefaultsHandler(c *fiber.Ctx) error {
	listing, err := h.documents.List(c.Context())
	if err != nil {
		return h.sendError(c, err, "list_defaults")
	}

	state := domain.DefaultState(c.Query("state"))
	extension := c.Query("extension")
	if extension != "" {
		extension = domain.NormalizeExtension(extension)
		if !domain.ValidExtension(extension) {
			return h.sendError(c, domain.NewAppError(
				domain.ErrValidationFailed,
				"invalid extension filter",
				map[string]any{"extension": c.Query("extension")},
			), "list_defaults")
		}
	}

	entries := make([]domain.DefaultEntry, 0, len(listing.Defaults.Defaults))
	for _, entry := range listing.Defaults.Defaults {
		if state != "" && entry.State != state {
			continue
		}
		if extension != "" && entry.Extension != extension {
			continue
		}
		entries = append(entries, entry)
	}

	return c.Status(fiber.StatusOK).JSON(SuccessResponse{
		Status: "success",
		Data: map[string]any{
			"version":  listing.Defaults.Version,
			"defaults": entries,
			"count":    len(entries),
		},
	})
}

// ListOffersHandler handles GET /v1/offers
func (h *Handlers) ListOffersHandler(c *fiber.Ctx) error {
	listing, err := h.documents.List(c.Context())
	if err != nil {
		return h.sendError(c, err, "list_offers")
	}

	return c.Status(fiber.StatusOK).JSON(SuccessResponse{
		Status: "success",
		Data: map[string]any{
			"version": listing.Offers.Version,
			"offers":  listing.Offers.Offers,
			"count":   len(listing.Offers.Offers),
		},
	})
}

// CheckHandler handles GET /v1/check. It only queries the OS.
func (h *Handlers) CheckHandler(c *fiber.Ctx) error {
	listing, err := h.documents.List(c.Context())
	if err != nil {
		return h.sendError(c, err, "check")
	}

	results := h.checker.Check(c.Context(), listing.Defaults.Defaults)
	return c.Status(fiber.StatusOK).JSON(SuccessResponse{
		Status: "success",
		Data: CheckResponse{
			Results: results,
			Summary: check.Summarize(results),
		},
	})
}

// ConflictsHandler handles GET /v1/conflicts
func (h *Handlers) ConflictsHandler(c *fiber.Ctx) error {
	report, err := h.documents.Conflicts(c.Context())
	if err != nil {
		return h.sendError(c, err, "conflicts")
	}
	return c.Status(fiber.StatusOK).JSON(SuccessResponse{Status: "success", Data: report})
}

// HealthHandler handles GET /health
func (h *Handlers) HealthHandler(c *fiber.Ctx) error {
	health := h.healthChecker.CheckHealth(c.Context())

	status := fiber.StatusOK
	if health.Status == domain.HealthStatusUnhealthy {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(map[string]any{
		"status":     health.Status,
		"timestamp":  health.Timestamp.Format(time.RFC3339),
		"components": health.Components,
		"metrics":    health.Metrics,
	})
}

// statusFor maps an AppError code to its HTTP status
func statusFor(code string) int {
	switch code {
	case domain.ErrNotFound:
		return fiber.StatusNotFound
	case domain.ErrValidationFailed:
		return fiber.StatusUnprocessableEntity
	case domain.ErrConflict:
		return fiber.StatusConflict
	case domain.ErrRateLimited:
		return fiber.StatusTooManyRequests
	case domain.ErrLockTimeout, domain.ErrUnsupportedSchema:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// sendError sends a standardized error response
func (h *Handlers) sendError(c *fiber.Ctx, err error, operation string) error {
	var appErr *domain.AppError
	if !errors.As(err, &appErr) {
		appErr = domain.NewAppErrorWithCause(domain.ErrInternal, "internal error", err, nil)
	}
	appErr.WithOperation(c.Context(), operation)

	status := statusFor(appErr.Code)
	if status >= fiber.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", requestIDOf(c)).
			Str("operation", operation).
			Msg("Request failed")
	}

	return c.Status(status).JSON(ErrorResponse{
		Status:    "error",
		Code:      appErr.Code,
		Message:   appErr.Message,
		Details:   appErr.Details,
		RequestID: appErr.RequestID,
	})
}
