package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBrokerRoutesToBoundInstancesOnly(t *testing.T) {
	mb := NewMemoryBroker()

	var gotA, gotB [][]byte
	a := mb.Attach()
	a.OnMessage(func(body []byte) { gotA = append(gotA, body) })
	b := mb.Attach()
	b.OnMessage(func(body []byte) { gotB = append(gotB, body) })

	require.NoError(t, a.BindRoom("abc1234"))

	require.NoError(t, b.Publish(roomRoutingKey("abc1234"), []byte("one")))
	require.NoError(t, b.Publish(roomRoutingKey("other"), []byte("two")))

	assert.Equal(t, [][]byte{[]byte("one")}, gotA)
	assert.Empty(t, gotB)
}

func TestMemoryBrokerDeliversToPublisherInstance(t *testing.T) {
	mb := NewMemoryBroker()

	var got [][]byte
	a := mb.Attach()
	a.OnMessage(func(body []byte) { got = append(got, body) })
	require.NoError(t, a.BindRoom("abc1234"))

	require.NoError(t, a.Publish(roomRoutingKey("abc1234"), []byte("hello")))

	assert.Len(t, got, 1)
}

func TestMemoryBrokerUnbindStopsDelivery(t *testing.T) {
	mb := NewMemoryBroker()

	var got [][]byte
	a := mb.Attach()
	a.OnMessage(func(body []byte) { got = append(got, body) })
	require.NoError(t, a.BindRoom("abc1234"))
	require.NoError(t, a.UnbindRoom("abc1234"))

	require.NoError(t, a.Publish(roomRoutingKey("abc1234"), []byte("hello")))

	assert.Empty(t, got)
}

func TestMemoryBrokerClosedInstanceFailsOperations(t *testing.T) {
	mb := NewMemoryBroker()
	a := mb.Attach()

	require.True(t, a.Connected())
	require.NoError(t, a.Close())

	assert.False(t, a.Connected())
	assert.ErrorIs(t, a.Publish("room.x", nil), ErrBrokerUnavailable)
	assert.ErrorIs(t, a.BindRoom("x"), ErrBrokerUnavailable)
	assert.ErrorIs(t, a.UnbindRoom("x"), ErrBrokerUnavailable)
}
