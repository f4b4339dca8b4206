package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/bobmcallan/finch/internal/common"
)

// wsHub broadcasts refresh lifecycle events to connected dashboard clients
// so open tabs stay in sync without polling.
type wsHub struct {
	logger   *common.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func newWSHub(logger *common.Logger) *wsHub {
	return &wsHub{
		logger: logger,
		upgrader: websocket.Upgrader{
			// The dashboard may be served from a different origin in development
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

// handleWS upgrades the connection and registers the client. Reads are
// drained only to detect disconnects; the hub is broadcast-only.
func (h *wsHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug().Int("clients", count).Msg("WebSocket client connected")

	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *wsHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
}

// broadcast sends an event to every connected client. Write failures drop
// the client.
func (h *wsHub) broadcast(event string, payload map[string]interface{}) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["event"] = event
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn().Err(err).Str("event", event).Msg("Failed to encode WebSocket event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}
