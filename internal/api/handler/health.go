package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mcoot/shrubbery/internal/api/response"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports server and storage health
type HealthHandler struct {
	store   Pinger
	logger  *slog.Logger
	timeout time.Duration
}

// NewHealthHandler creates a health handler. store may be nil.
func NewHealthHandler(store Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, logger: logger, timeout: 2 * time.Second}
}

// Health handles GET /api/v1/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			h.logger.Warn("storage ping failed", slog.String("error", err.Error()))
			response.JSON(w, http.StatusServiceUnavailable, response.Health{Status: "unavailable"})
			return
		}
	}
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
