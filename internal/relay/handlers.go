// Package relay exposes the HTTP surface of the relay: the WebSocket upgrade
// endpoint with its admission checks, and the health endpoint.
package relay

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler serves the relay's HTTP endpoints for one gateway instance.
type Handler struct {
	gateway  *Gateway
	upgrader websocket.Upgrader
}

// NewHandler creates the HTTP handler set for a gateway.
func NewHandler(g *Gateway) *Handler {
	policy := newOriginPolicy(g.cfg.AllowedOrigins)
	return &Handler{
		gateway: g,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.check,
		},
	}
}

// ServeWS handles WebSocket upgrade requests and connection admission. The
// connection is rejected with close code 1008 when roomId is missing and
// 1011 when the broker is down: accepting a connection that cannot relay
// would fail every send, so the gateway fails closed instead.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	roomID := r.URL.Query().Get("roomId")
	userID := r.URL.Query().Get("userId")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	if roomID == "" {
		rejectConn(conn, websocket.ClosePolicyViolation, "Room ID is required")
		return
	}

	if !h.gateway.broker.Connected() {
		log.Printf("Broker unavailable; rejecting connection from %s", r.RemoteAddr)
		rejectConn(conn, websocket.CloseInternalServerErr, "Server error, try again later.")
		return
	}

	if userID == "" {
		userID = "user_" + uuid.NewString()[:8]
	}

	h.gateway.enter(newClient(conn, roomID, userID, h.gateway.cfg))
}

// healthResponse mirrors the health document the UI already consumes.
type healthResponse struct {
	Status            string `json:"status"`
	Message           string `json:"message"`
	BrokerConnected   bool   `json:"rabbitMqConnected"`
	ActiveRooms       int    `json:"activeRoomsOnInstance"`
	ActiveConnections int    `json:"webSocketClients"`
}

// ServeHealth reports broker connectivity and local room/connection counts.
func (h *Handler) ServeHealth(w http.ResponseWriter, _ *http.Request) {
	stats := h.gateway.Stats()

	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(healthResponse{
		Status:            "UP",
		Message:           "Chat relay is running",
		BrokerConnected:   stats.BrokerConnected,
		ActiveRooms:       stats.ActiveRooms,
		ActiveConnections: stats.ActiveConnections,
	})
	if err != nil {
		log.Printf("Error writing health response: %v", err)
	}
}

// rejectConn closes a just-upgraded connection with an explanatory close
// code before any registration happens.
func rejectConn(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && !isExpectedCloseError(err) {
		log.Printf("Error writing close message: %v", err)
	}
	if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
		log.Printf("Error closing rejected connection: %v", err)
	}
}
