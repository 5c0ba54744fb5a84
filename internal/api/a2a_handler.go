package api

import (
	"encoding/json"
	"net/http"

	"github.com/meshwork/orchestrator/internal/a2a"
)

// A2AHandler adapts HTTP POST /a2a/message onto the a2a.Adapter's
// HandleMessage boundary.
type A2AHandler struct {
	Adapter *a2a.Adapter
}

func NewA2AHandler(adapter *a2a.Adapter) *A2AHandler {
	return &A2AHandler{Adapter: adapter}
}

type sendMessageRequest struct {
	TaskID  string     `json:"task_id"`
	Message a2a.Message `json:"message"`
	Session string     `json:"session,omitempty"`
}

func (h *A2AHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	task := h.Adapter.HandleMessage(r.Context(), req.Message)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(task)
}
