package rooms

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Service exposes the room-identity HTTP API over a Store.
type Service struct {
	store Store
	newID func() string
}

// NewService creates the service with the default room id generator.
func NewService(store Store) (*Service, error) {
	gen, err := newRoomIDGenerator()
	if err != nil {
		return nil, err
	}
	return &Service{store: store, newID: gen}, nil
}

// Router returns the chi router with all room service routes.
func (s *Service) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Post("/api/rooms", s.createRoom)
	r.Get("/api/rooms/{roomId}", s.getRoom)
	r.Get("/health", s.health)
	return r
}

func (s *Service) createRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.store.Ready(ctx) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Redis not available"})
		return
	}

	roomID := s.newID()
	if err := s.store.Create(ctx, roomID); err != nil {
		log.Printf("Error creating room: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create room"})
		return
	}

	log.Printf("Room created: %s", roomID)
	writeJSON(w, http.StatusCreated, map[string]string{"roomId": roomID})
}

func (s *Service) getRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.store.Ready(ctx) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Redis not available"})
		return
	}

	roomID := chi.URLParam(r, "roomId")
	exists, err := s.store.Exists(ctx, roomID)
	if err != nil {
		log.Printf("Error validating room %s: %v", roomID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to validate room"})
		return
	}

	if !exists {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Room not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"roomId": roomID, "exists": true})
}

func (s *Service) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "UP",
		"redisReady": s.store.Ready(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}
