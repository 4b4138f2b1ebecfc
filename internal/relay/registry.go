// Package relay tracks which local connections belong to which room via the
// Registry type. The registry owns no cross-process state; cross-instance
// membership only exists implicitly through broker bindings.
package relay

import (
	"encoding/json"
	"log"
	"sync"
)

// Registry is the per-instance mapping from room key to the set of live
// local connections. All membership transitions are driven by the gateway
// event loop; the mutex exists so broadcasts, the heartbeat sweep, and
// health introspection can read from other goroutines.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[*Client]struct{})}
}

// Register adds a connection to the room's set, creating the set if absent.
// Registering the same connection twice is a no-op.
func (r *Registry) Register(roomKey string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomKey]
	if !ok {
		room = make(map[*Client]struct{})
		r.rooms[roomKey] = room
	}
	room[c] = struct{}{}
}

// Unregister removes a connection from the room's set. It reports whether
// the room has no local members left, in which case the room key itself is
// removed and the caller is expected to drop the broker binding.
func (r *Registry) Unregister(roomKey string, c *Client) (empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomKey]
	if !ok {
		return false
	}

	delete(room, c)
	if len(room) == 0 {
		delete(r.rooms, roomKey)
		return true
	}
	return false
}

// BroadcastLocal delivers a frame to every open connection registered under
// the room key. Connections that are closed or cannot keep up are skipped
// silently; their removal happens via the close handler, not here.
func (r *Registry) BroadcastLocal(roomKey string, f Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		log.Printf("Error encoding frame for room %s: %v", roomKey, err)
		return
	}

	r.mu.RLock()
	targets := make([]*Client, 0, len(r.rooms[roomKey]))
	for c := range r.rooms[roomKey] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(payload)
	}
}

// Size returns the number of local connections in a room.
func (r *Registry) Size(roomKey string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomKey])
}

// TotalRooms returns the number of rooms with at least one local connection.
func (r *Registry) TotalRooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// TotalConnections returns the number of live local connections across all rooms.
func (r *Registry) TotalConnections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, room := range r.rooms {
		total += len(room)
	}
	return total
}

// snapshot returns all registered connections, for the heartbeat sweep and
// shutdown.
func (r *Registry) snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0)
	for _, room := range r.rooms {
		for c := range room {
			clients = append(clients, c)
		}
	}
	return clients
}
