package gateway

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// WebSocketHandler exposes the connection manager as an http.Handler.
type WebSocketHandler struct {
	cm *ConnectionManager
}

// NewWebSocketHandler creates a handler that upgrades requests on the
// given manager.
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{cm: cm}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.cm.UpgradeConnection(w, r); err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		http.Error(w, "failed to upgrade connection", http.StatusBadRequest)
	}
}
