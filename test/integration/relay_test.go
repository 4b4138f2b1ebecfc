// Package integration contains end-to-end tests that wire the room service
// and multiple relay instances together the way a deployment would, with an
// in-process broker standing in for RabbitMQ.
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycore/relay/internal/relay"
	"github.com/relaycore/relay/internal/rooms"
	"github.com/relaycore/relay/test/testhelpers"
)

// memStore is an in-memory rooms.Store for tests that do not need Redis.
type memStore struct {
	mu    sync.Mutex
	rooms map[string]struct{}
}

func newMemStore() *memStore {
	return &memStore{rooms: make(map[string]struct{})}
}

func (s *memStore) Create(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[roomID] = struct{}{}
	return nil
}

func (s *memStore) Exists(_ context.Context, roomID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[roomID]
	return ok, nil
}

func (s *memStore) Ready(context.Context) bool { return true }

func startRelayInstance(t *testing.T, mb *relay.MemoryBroker) *httptest.Server {
	t.Helper()

	cfg := relay.DefaultConfig()
	cfg.AllowedOrigins = []string{"*"}
	cfg.HeartbeatInterval = time.Minute

	inst := mb.Attach()
	gateway := relay.NewGateway(cfg, inst)
	inst.OnMessage(gateway.HandleBrokerBody)
	go gateway.Run()

	srv := httptest.NewServer(relay.Routes(gateway))
	t.Cleanup(func() {
		srv.Close()
		_ = gateway.Shutdown(2 * time.Second)
	})
	return srv
}

func startRoomService(t *testing.T) *httptest.Server {
	t.Helper()

	svc, err := rooms.NewService(newMemStore())
	require.NoError(t, err)

	srv := httptest.NewServer(svc.Router())
	t.Cleanup(srv.Close)
	return srv
}

func TestRoomLifecycleAcrossServices(t *testing.T) {
	roomSvc := startRoomService(t)
	broker := relay.NewMemoryBroker()
	relayA := startRelayInstance(t, broker)
	relayB := startRelayInstance(t, broker)

	// Create a room through the identity service, as the UI would.
	resp, err := http.Post(roomSvc.URL+"/api/rooms", "application/json", nil)
	require.NoError(t, err)
	testhelpers.AssertStatusCode(t, resp, http.StatusCreated)

	var created struct {
		RoomID string `json:"roomId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	require.NotEmpty(t, created.RoomID)

	// Validate it exists before connecting.
	resp = testhelpers.MakeRequest(t, http.MethodGet, roomSvc.URL+"/api/rooms/"+created.RoomID)
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	resp.Body.Close()

	// Chat across two relay instances.
	alice := testhelpers.DialRoom(t, relayA.URL, created.RoomID, "alice")
	testhelpers.ReadUntil(t, alice, "system", "alice has joined the room.")
	bob := testhelpers.DialRoom(t, relayB.URL, created.RoomID, "bob")
	testhelpers.ReadUntil(t, bob, "info", "Welcome bob!")
	testhelpers.ReadUntil(t, alice, "system", "bob has joined the room.")

	require.NoError(t, alice.WriteJSON(map[string]string{"text": "hello from A"}))
	chat := testhelpers.ReadUntil(t, bob, "chat", "hello from A")
	assert.Equal(t, "alice", chat.Sender)

	// Both relay instances report the room in their health documents.
	for _, srv := range []*httptest.Server{relayA, relayB} {
		resp := testhelpers.MakeRequest(t, http.MethodGet, srv.URL+"/health")
		testhelpers.AssertStatusCode(t, resp, http.StatusOK)
		testhelpers.AssertContentType(t, resp, "application/json")

		var health struct {
			BrokerConnected bool `json:"rabbitMqConnected"`
			ActiveRooms     int  `json:"activeRoomsOnInstance"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
		resp.Body.Close()
		assert.True(t, health.BrokerConnected)
		assert.Equal(t, 1, health.ActiveRooms)
	}
}

func TestUnknownRoomIsRejectedByIdentityService(t *testing.T) {
	roomSvc := startRoomService(t)

	resp := testhelpers.MakeRequest(t, http.MethodGet, roomSvc.URL+"/api/rooms/doesnotexist")
	defer resp.Body.Close()
	testhelpers.AssertStatusCode(t, resp, http.StatusNotFound)
}
