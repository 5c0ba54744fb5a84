package api

import (
	"encoding/json"
	"net/http"

	"github.com/meshwork/orchestrator/internal/registry"
)

// RefreshHandler adapts HTTP POST /internal/registry/refresh onto a
// manual Registry.Refresh trigger, useful alongside the background
// refresh ticker when an operator needs an immediate re-sync (§10).
type RefreshHandler struct {
	Registry  *registry.Registry
	Discovery *registry.DiscoveryClient
	Dial      registry.Dialer
}

func NewRefreshHandler(reg *registry.Registry, discovery *registry.DiscoveryClient, dial registry.Dialer) *RefreshHandler {
	return &RefreshHandler{Registry: reg, Discovery: discovery, Dial: dial}
}

func (h *RefreshHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.Registry.Refresh(r.Context(), h.Discovery, h.Dial); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "refreshed"})
}
