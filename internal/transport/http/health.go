package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"certo/pkg/platform/httputil"
)

// HealthChecker probes one backing service.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler reports process liveness and per-dependency status.
type HealthHandler struct {
	checks map[string]HealthChecker
	logger *slog.Logger
}

func NewHealthHandler(logger *slog.Logger, checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logger}
}

// HealthResponse is the health endpoint payload. Running is true whenever the
// process can answer; individual services report their own state.
type HealthResponse struct {
	Running       bool            `json:"running"`
	ServiceStatus map[string]bool `json:"service_status"`
}

// HandleHealth handles GET /health requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := make(map[string]bool, len(h.checks))
	for name, check := range h.checks {
		err := check.Health(ctx)
		status[name] = err == nil
		if err != nil {
			h.logger.WarnContext(ctx, "health check failed", "service", name, "error", err)
		}
	}

	httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Running:       true,
		ServiceStatus: status,
	})
}
