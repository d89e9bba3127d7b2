package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthCheckTimeout bounds each dependency probe so one hung backend cannot
// stall the whole endpoint.
const healthCheckTimeout = 2 * time.Second

// HealthHandler answers liveness probes and reports the health of the
// configured infrastructure dependencies.
type HealthHandler struct {
	logger    *slog.Logger
	checks    map[string]func(context.Context) error
	startedAt time.Time
}

// NewHealthHandler creates a HealthHandler anchored at the current time.
// checks maps dependency names (postgres, redis, s3) to their probes; nil or
// empty means liveness only.
func NewHealthHandler(logger *slog.Logger, checks map[string]func(context.Context) error) *HealthHandler {
	return &HealthHandler{
		logger:    logHandler(logger, "health"),
		checks:    checks,
		startedAt: time.Now().UTC(),
	}
}

// HealthCheck reports daemon uptime and per-dependency status. Any failing
// probe degrades the overall status to 503 so load balancers and monitors
// notice without parsing the body.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check(ctx)
		cancel()
		if err != nil {
			h.logger.Warn("dependency unhealthy",
				slog.String("dependency", name),
				slog.String("error", err.Error()),
			)
			deps[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	body := map[string]any{
		"status":         status,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}
	writeJSON(w, code, body)
}
