package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/devloop/internal/logging"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// HealthCheck is the result of a single check.
type HealthCheck struct {
	Name        string        `json:"name"`
	Status      HealthStatus  `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"duration"`
	Critical    bool          `json:"critical"`
}

// CheckFunc reports the state of one component.
type CheckFunc func(ctx context.Context) (HealthStatus, string)

// HealthSummary provides a summary of health check results
type HealthSummary struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
	Degraded  int `json:"degraded"`
	Unknown   int `json:"unknown"`
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    time.Duration          `json:"uptime"`
	Checks    map[string]HealthCheck `json:"checks"`
	Summary   HealthSummary          `json:"summary"`
}

type registeredCheck struct {
	name     string
	critical bool
	fn       CheckFunc
}

// HealthMonitor runs registered checks on demand.
type HealthMonitor struct {
	mu      sync.RWMutex
	checks  []registeredCheck
	logger  logging.Logger
	started time.Time
	now     func() time.Time
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(logger logging.Logger) *HealthMonitor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &HealthMonitor{
		logger:  logger.WithComponent("health"),
		started: time.Now(),
		now:     time.Now,
	}
}

// RegisterCheck adds a check. A critical check that is unhealthy makes the
// whole process unhealthy; any other problem only degrades it.
func (hm *HealthMonitor) RegisterCheck(name string, critical bool, fn CheckFunc) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks = append(hm.checks, registeredCheck{name: name, critical: critical, fn: fn})
}

// GetHealth runs every check and aggregates the results.
func (hm *HealthMonitor) GetHealth(ctx context.Context) HealthResponse {
	hm.mu.RLock()
	checks := make([]registeredCheck, len(hm.checks))
	copy(checks, hm.checks)
	hm.mu.RUnlock()

	results := make(map[string]HealthCheck, len(checks))
	for _, c := range checks {
		start := hm.now()
		status, msg := c.fn(ctx)
		results[c.name] = HealthCheck{
			Name:        c.name,
			Status:      status,
			Message:     msg,
			LastChecked: start,
			Duration:    hm.now().Sub(start),
			Critical:    c.critical,
		}
	}

	return HealthResponse{
		Status:    overallStatus(results),
		Timestamp: hm.now(),
		Uptime:    hm.now().Sub(hm.started),
		Checks:    results,
		Summary:   summarize(results),
	}
}

func summarize(checks map[string]HealthCheck) HealthSummary {
	summary := HealthSummary{Total: len(checks)}
	for _, check := range checks {
		switch check.Status {
		case HealthStatusHealthy:
			summary.Healthy++
		case HealthStatusUnhealthy:
			summary.Unhealthy++
		case HealthStatusDegraded:
			summary.Degraded++
		default:
			summary.Unknown++
		}
	}
	return summary
}

func overallStatus(checks map[string]HealthCheck) HealthStatus {
	status := HealthStatusHealthy
	for _, check := range checks {
		switch {
		case check.Status == HealthStatusUnhealthy && check.Critical:
			return HealthStatusUnhealthy
		case check.Status != HealthStatusHealthy:
			status = HealthStatusDegraded
		}
	}
	return status
}

// HTTPHandler serves the aggregated health as JSON. Unhealthy maps to 503.
func (hm *HealthMonitor) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hm.GetHealth(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(health); err != nil {
			hm.logger.Error(r.Context(), err, "Failed to encode health response")
		}
	}
}
