package ingress

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/callbackd/callbackd/pkg/config"
)

// healthResponse is the health check body.
type healthResponse struct {
	IsOK bool `json:"is_ok"`
}

// HealthHandler reports supervisor liveness.
type HealthHandler struct {
	healthy func() bool
	logger  *slog.Logger
}

// NewHealthHandler creates the health check handler.
func NewHealthHandler(healthy func() bool, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{healthy: healthy, logger: logger}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(healthResponse{IsOK: h.healthy()}); err != nil {
		h.logger.Error("health response failed", "error", err)
	}
}

// NewHealthServer binds the health handler to the configured host, port
// and path.
func NewHealthServer(cfg config.HealthEndpointConfig, healthy func() bool, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, NewHealthHandler(healthy, logger))
	return &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Hostname, cfg.Port),
		Handler: mux,
	}
}
