package health

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/deadcoast/vince/internal/check"
	"github.com/deadcoast/vince/internal/conflict"
	"github.com/deadcoast/vince/internal/domain"
	"github.com/deadcoast/vince/internal/platform"
)

// SystemHealthChecker reports on the store, the platform handler and the
// agreement between stored intent and the OS
type SystemHealthChecker struct {
	store    domain.DocumentStore
	handler  platform.Handler
	checker  *check.Checker
	detector *conflict.Detector

	// Health check configuration
	timeout   time.Duration
	startTime time.Time

	// Cached health status to avoid repeated OS queries
	lastCheck   time.Time
	lastHealth  domain.SystemHealth
	cacheTTL    time.Duration
	healthMutex sync.Mutex
}

// NewSystemHealthChecker creates a new system health checker. cacheTTL of
// zero disables caching.
func NewSystemHealthChecker(store domain.DocumentStore, handler platform.Handler, cacheTTL time.Duration) *SystemHealthChecker {
	return &SystemHealthChecker{
		store:     store,
		handler:   handler,
		checker:   check.NewChecker(handler),
		detector:  conflict.NewDetector(),
		timeout:   5 * time.Second,
		cacheTTL:  cacheTTL,
		startTime: time.Now(),
	}
}

// CheckHealth performs a full health check
func (h *SystemHealthChecker) CheckHealth(ctx context.Context) domain.SystemHealth {
	h.healthMutex.Lock()
	defer h.healthMutex.Unlock()

	// Return cached result if still valid
	if h.cacheTTL > 0 && !h.lastCheck.IsZero() && time.Since(h.lastCheck) < h.cacheTTL {
		return h.lastHealth
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	now := time.Now()
	components := make(map[string]domain.HealthStatus, 3)
	metrics := map[string]any{
		"uptime_seconds": time.Since(h.startTime).Seconds(),
		"handler":        h.handler.Name(),
	}

	components["storage"] = h.store.HealthCheck(checkCtx)
	components["platform"] = h.platformHealth()
	components["consistency"] = h.consistencyHealth(checkCtx, metrics)

	overallStatus := domain.HealthStatusHealthy
	for _, component := range components {
		overallStatus = aggregateStatus(overallStatus, component.Status)
	}

	systemHealth := domain.SystemHealth{
		Status:     overallStatus,
		Timestamp:  now,
		Components: components,
		Metrics:    metrics,
	}

	h.lastCheck = now
	h.lastHealth = systemHealth

	return systemHealth
}

// IsHealthy returns true if the system is healthy
func (h *SystemHealthChecker) IsHealthy(ctx context.Context) bool {
	return h.CheckHealth(ctx).Status == domain.HealthStatusHealthy
}

func (h *SystemHealthChecker) platformHealth() domain.HealthStatus {
	status := domain.HealthStatus{
		Status:    domain.HealthStatusHealthy,
		Timestamp: time.Now(),
		Details:   map[string]any{"handler": h.handler.Name()},
	}
	if h.handler.Name() == "unsupported" {
		status.Status = domain.HealthStatusDegraded
		status.Message = "no native association support on this system; intent is stored but never applied"
	}
	return status
}

func (h *SystemHealthChecker) consistencyHealth(ctx context.Context, metrics map[string]any) domain.HealthStatus {
	status := domain.HealthStatus{Status: domain.HealthStatusHealthy, Timestamp: time.Now()}

	defaults, err := h.store.LoadDefaults(ctx)
	if err != nil {
		status.Status = domain.HealthStatusUnhealthy
		status.Message = "defaults could not be loaded"
		status.Details = map[string]any{"error": err.Error()}
		return status
	}
	offers, err := h.store.LoadOffers(ctx)
	if err != nil {
		status.Status = domain.HealthStatusUnhealthy
		status.Message = "offers could not be loaded"
		status.Details = map[string]any{"error": err.Error()}
		return status
	}

	summary := check.Summarize(h.checker.Check(ctx, defaults.Defaults))
	conflicts := h.detector.Detect(defaults, offers)

	metrics["defaults"] = len(defaults.Defaults)
	metrics["offers"] = len(offers.Offers)

	status.Details = map[string]any{
		"check":     summary,
		"conflicts": conflicts,
	}

	var problems []string
	if summary.Mismatch > 0 {
		problems = append(problems, fmt.Sprintf("%d mismatched", summary.Mismatch))
	}
	if summary.Unknown > 0 {
		problems = append(problems, fmt.Sprintf("%d unknown", summary.Unknown))
	}
	if !conflicts.Empty() {
		problems = append(problems, fmt.Sprintf("%d duplicate active, %d dangling offers", len(conflicts.DuplicateActive), len(conflicts.DanglingOffers)))
	}
	if len(problems) > 0 {
		status.Status = domain.HealthStatusDegraded
		status.Message = strings.Join(problems, "; ")
	}
	return status
}

// aggregateStatus determines the overall status based on component statuses
func aggregateStatus(current, componentStatus string) string {
	// Priority: unhealthy > degraded > healthy
	statusPriority := map[string]int{
		domain.HealthStatusHealthy:   0,
		domain.HealthStatusDegraded:  1,
		domain.HealthStatusUnhealthy: 2,
	}

	if statusPriority[componentStatus] > statusPriority[current] {
		return componentStatus
	}
	return current
}
