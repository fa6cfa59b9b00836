package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/farmgate/pkg/http"
)

// HealthChecker is implemented by *database.DB and *postgrest.Client
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
}

type HealthHandler struct {
	checker HealthChecker
	backend string
	logger  *slog.Logger
}

func NewHealthHandler(checker HealthChecker, backend string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		backend: backend,
		logger:  logger,
	}
}

// Health handles GET /health with a data store ping
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.checker.HealthCheck(ctx); err != nil {
		h.logger.Warn("health check failed", slog.String("backend", h.backend), slog.Any("error", err))
		pkghttp.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Backend: h.backend})
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok", Backend: h.backend})
}
