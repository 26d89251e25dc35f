package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/limpopoconnect/classifieds-api/internal/http/respond"
)

const storePingTimeout = 2 * time.Second

// HealthHandler returns uptime and store reachability.
type HealthHandler struct {
	startedAt time.Time
	ping      func(context.Context) error
}

// NewHealthHandler creates a health endpoint handler. ping may be nil.
func NewHealthHandler(startedAt time.Time, ping func(context.Context) error) *HealthHandler {
	return &HealthHandler{startedAt: startedAt, ping: ping}
}

// Register wires the handler into a ServeMux.
func (h *HealthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handle)
}

func (h *HealthHandler) handle(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Truncate(time.Second).String(),
		"store":  "ok",
	}
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), storePingTimeout)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["store"] = "unavailable"
		}
	}
	respond.JSON(w, status, body)
}
