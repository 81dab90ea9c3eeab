package health

import (
	"context"
	"sync"
	"time"
)

// Check reports an unhealthy dependency by returning an error.
type Check func(ctx context.Context) error

// HealthChecker runs named dependency checks.
type HealthChecker struct {
	mu     sync.RWMutex
	names  []string
	checks map[string]Check
	now    func() time.Time
}

// NewHealthChecker creates an empty health checker
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{checks: make(map[string]Check), now: time.Now}
}

// Register adds or replaces a named check.
func (h *HealthChecker) Register(name string, check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.checks[name]; !exists {
		h.names = append(h.names, name)
	}
	h.checks[name] = check
}

// GetHealthStatus runs every check and reports whether all passed.
func (h *HealthChecker) GetHealthStatus(ctx context.Context) (map[string]interface{}, bool) {
	h.mu.RLock()
	names := append([]string(nil), h.names...)
	checks := make(map[string]Check, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	h.mu.RUnlock()

	results := make(map[string]interface{}, len(names))
	healthy := true
	for _, name := range names {
		if err := checks[name](ctx); err != nil {
			healthy = false
			results[name] = map[string]interface{}{"status": "error", "error": err.Error()}
		} else {
			results[name] = map[string]interface{}{"status": "ok"}
		}
	}

	overallStatus := "ok"
	if !healthy {
		overallStatus = "degraded"
	}
	return map[string]interface{}{
		"status":    overallStatus,
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"checks":    results,
	}, healthy
}
