package relay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(roomID, userID string) *Client {
	return newClient(nil, roomID, userID, DefaultConfig())
}

func TestRegistryRegisterAndCounts(t *testing.T) {
	r := NewRegistry()
	alice := testClient("abc1234", "alice")
	bob := testClient("abc1234", "bob")

	r.Register("abc1234", alice)
	r.Register("abc1234", bob)
	r.Register("other", testClient("other", "carol"))

	assert.Equal(t, 2, r.Size("abc1234"))
	assert.Equal(t, 1, r.Size("other"))
	assert.Equal(t, 0, r.Size("missing"))
	assert.Equal(t, 2, r.TotalRooms())
	assert.Equal(t, 3, r.TotalConnections())
}

func TestRegistryRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	alice := testClient("abc1234", "alice")

	r.Register("abc1234", alice)
	r.Register("abc1234", alice)

	assert.Equal(t, 1, r.Size("abc1234"))
}

func TestRegistryUnregisterSignalsEmptyRoom(t *testing.T) {
	r := NewRegistry()
	alice := testClient("abc1234", "alice")
	bob := testClient("abc1234", "bob")
	r.Register("abc1234", alice)
	r.Register("abc1234", bob)

	assert.False(t, r.Unregister("abc1234", alice))
	assert.True(t, r.Unregister("abc1234", bob))
	assert.Equal(t, 0, r.TotalRooms())

	// Unregistering from a room that no longer exists must not report empty
	// again.
	assert.False(t, r.Unregister("abc1234", bob))
}

func TestBroadcastLocalReachesEveryOpenConnection(t *testing.T) {
	r := NewRegistry()
	alice := testClient("abc1234", "alice")
	bob := testClient("abc1234", "bob")
	r.Register("abc1234", alice)
	r.Register("abc1234", bob)

	frame := Frame{Type: TypeChat, Sender: "alice", Text: "hi", Timestamp: 42}
	r.BroadcastLocal("abc1234", frame)

	for _, c := range []*Client{alice, bob} {
		select {
		case payload := <-c.send:
			var got Frame
			require.NoError(t, json.Unmarshal(payload, &got))
			assert.Equal(t, frame, got)
		default:
			t.Fatalf("client %s did not receive the broadcast", c.userID)
		}
	}
}

func TestBroadcastLocalSkipsClosedConnections(t *testing.T) {
	r := NewRegistry()
	alice := testClient("abc1234", "alice")
	bob := testClient("abc1234", "bob")
	r.Register("abc1234", alice)
	r.Register("abc1234", bob)

	require.True(t, bob.markClosed())
	r.BroadcastLocal("abc1234", Frame{Type: TypeChat, Sender: "alice", Text: "hi"})

	assert.Len(t, alice.send, 1)
	assert.Len(t, bob.send, 0)
}

func TestBroadcastLocalUnknownRoomIsNoop(t *testing.T) {
	r := NewRegistry()
	r.BroadcastLocal("nobody-home", Frame{Type: TypeChat, Text: "hi"})
}
