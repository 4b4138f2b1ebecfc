package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl := newRateLimiter(3, time.Second)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow(), "message %d within burst should be allowed", i)
	}
	assert.False(t, rl.allow(), "message beyond burst should be rejected")
}

func TestRateLimiterRefills(t *testing.T) {
	rl := newRateLimiter(2, 100*time.Millisecond)

	assert.True(t, rl.allow())
	assert.True(t, rl.allow())
	assert.False(t, rl.allow())

	time.Sleep(150 * time.Millisecond)
	assert.True(t, rl.allow(), "tokens should refill after the interval")
}

func TestRateLimiterDefendsAgainstBadParameters(t *testing.T) {
	rl := newRateLimiter(0, 0)
	assert.True(t, rl.allow())
}
