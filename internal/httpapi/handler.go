// Package httpapi implements the Control Surface's HTTP handlers (§6):
// POST /v1/update, GET /v1/metrics, GET /healthz.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/bnema/zerowrap"

	"github.com/rcarmo/guerite/internal/adapters/dto"
	"github.com/rcarmo/guerite/internal/adapters/in/http/middleware"
	"github.com/rcarmo/guerite/internal/boundaries/in"
)

// Config carries the control surface's own settings, resolved from the
// GUERITE_HTTP_API_* env vars by internal/config.
type Config struct {
	Token          string // GUERITE_HTTP_API_TOKEN, empty disables bearer auth
	MetricsEnabled bool   // GUERITE_HTTP_API_METRICS
}

// Handler implements the control surface's HTTP handlers.
type Handler struct {
	loop           in.Loop
	metricsHandler http.Handler
	cfg            Config
	log            zerowrap.Logger
}

// NewHandler creates a Handler. metricsHandler may be nil if metrics are
// disabled; requests to /v1/metrics then 404.
func NewHandler(loop in.Loop, metricsHandler http.Handler, cfg Config, log zerowrap.Logger) *Handler {
	return &Handler{loop: loop, metricsHandler: metricsHandler, cfg: cfg, log: log}
}

// RegisterRoutes registers the control surface routes on mux. /healthz is
// always unauthenticated; /v1/update and /v1/metrics sit behind bearer
// auth when a token is configured.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	auth := middleware.BearerAuth(h.cfg.Token, h.log)

	mux.HandleFunc("/healthz", h.handleHealthz)
	mux.Handle("/v1/update", auth(http.HandlerFunc(h.handleUpdate)))

	if h.cfg.MetricsEnabled && h.metricsHandler != nil {
		mux.Handle("/v1/metrics", auth(h.metricsHandler))
	}
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.loop.TriggerCycle()
	w.WriteHeader(http.StatusNoContent)
}

type healthzResponse struct {
	Status string `json:"status"`
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	state := h.loop.State()
	w.Header().Set("Content-Type", "application/json")
	if state == in.LoopNotReady {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(healthzResponse{Status: string(state)})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: message})
}
