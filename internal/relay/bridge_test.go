package relay

import (
	"encoding/json"
	"strings"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcknowledger struct {
	acked        bool
	nacked       bool
	nackRequeued bool
}

func (f *fakeAcknowledger) Ack(_ uint64, _ bool) error {
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked = true
	f.nackRequeued = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(_ uint64, _ bool) error {
	return nil
}

func TestHandleDeliveryAcksValidEvent(t *testing.T) {
	b := NewBridge("amqp://localhost")

	var got Event
	b.OnMessage(func(ev Event) { got = ev })

	want := Event{RoomID: "abc1234", Type: TypeChat, Sender: "alice", Text: "hi", Timestamp: 42}
	body, err := json.Marshal(want)
	require.NoError(t, err)

	ack := &fakeAcknowledger{}
	b.handleDelivery(amqp.Delivery{Acknowledger: ack, Body: body})

	assert.Equal(t, want, got)
	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
}

func TestHandleDeliveryNacksMalformedPayloadWithoutRequeue(t *testing.T) {
	b := NewBridge("amqp://localhost")

	handled := false
	b.OnMessage(func(Event) { handled = true })

	ack := &fakeAcknowledger{}
	b.handleDelivery(amqp.Delivery{Acknowledger: ack, Body: []byte("not json")})

	assert.False(t, handled)
	assert.False(t, ack.acked)
	assert.True(t, ack.nacked)
	assert.False(t, ack.nackRequeued, "malformed payloads must not be requeued")
}

func TestDisconnectedBridgeFailsLocally(t *testing.T) {
	b := NewBridge("amqp://localhost")

	assert.False(t, b.Connected())
	assert.ErrorIs(t, b.Publish("room.abc1234", []byte("{}")), ErrBrokerUnavailable)
	assert.ErrorIs(t, b.BindRoom("abc1234"), ErrBrokerUnavailable)
	assert.ErrorIs(t, b.UnbindRoom("abc1234"), ErrBrokerUnavailable)
	assert.NoError(t, b.Close())
}

func TestInstanceQueueNamesAreUnique(t *testing.T) {
	a := NewBridge("amqp://localhost")
	b := NewBridge("amqp://localhost")

	assert.True(t, strings.HasPrefix(a.QueueName(), instanceQueuePrefix))
	assert.True(t, strings.HasPrefix(b.QueueName(), instanceQueuePrefix))
	assert.NotEqual(t, a.QueueName(), b.QueueName())
}
