package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStampIsMonotonicPerSender(t *testing.T) {
	c := testClient("abc1234", "alice")

	prev := c.stamp()
	for i := 0; i < 100; i++ {
		next := c.stamp()
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestEnqueueOnClosedClientFails(t *testing.T) {
	c := testClient("abc1234", "alice")
	c.markClosed()

	assert.False(t, c.enqueue([]byte("hi")))
}

func TestEnqueueDropsWhenBufferFull(t *testing.T) {
	c := testClient("abc1234", "alice")

	for i := 0; i < sendBufferSize; i++ {
		assert.True(t, c.enqueue([]byte("x")))
	}
	assert.False(t, c.enqueue([]byte("overflow")))
}

func TestMarkClosedFlipsOnce(t *testing.T) {
	c := testClient("abc1234", "alice")

	assert.True(t, c.markClosed())
	assert.False(t, c.markClosed())
}
