// Package relay defines the wire payload types shared by the gateway, the
// broker bridge, and the clients.
package relay

import "strings"

// Event type values carried in server frames and broker messages.
const (
	TypeChat   = "chat"
	TypeSystem = "system"
	TypeInfo   = "info"
	TypeError  = "error"
)

// systemSender is the sender name attached to server-generated events.
const systemSender = "System"

// Event is the canonical chat event exchanged between gateway instances via
// the broker. RoomID routes the event; the remaining fields are forwarded to
// clients verbatim.
type Event struct {
	RoomID    string `json:"roomId"`
	Type      string `json:"type"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Frame is the server-to-client JSON payload: the Event minus its routing
// information.
type Frame struct {
	Type      string `json:"type"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// inboundFrame is the only recognized client-to-server payload.
type inboundFrame struct {
	Text string `json:"text"`
}

func (e Event) frame() Frame {
	return Frame{Type: e.Type, Sender: e.Sender, Text: e.Text, Timestamp: e.Timestamp}
}

// roomRoutingKey returns the broker routing key for a room.
func roomRoutingKey(roomID string) string {
	return "room." + roomID
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
