package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dkeye/Chat/internal/core"
)

func TestRoomRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRoomRateLimiter(2, time.Second)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("alice"))
	assert.True(t, rl.Allow("alice"))
	assert.False(t, rl.Allow("alice"))
	assert.True(t, rl.Allow("bob"))

	now = now.Add(1100 * time.Millisecond)
	assert.True(t, rl.Allow("alice"))
}

func TestWsSignalConnTrySend(t *testing.T) {
	c := &WsSignalConn{send: make(chan core.Frame, 1)}
	assert.NoError(t, c.TrySend([]byte("a")))
	assert.ErrorIs(t, c.TrySend([]byte("b")), ErrBackpressure)
	c.Close()
	c.Close()
	assert.ErrorIs(t, c.TrySend([]byte("c")), ErrConnClosed)
}

func TestRoomRateLimiterSweep(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRoomRateLimiter(5, time.Second)
	rl.now = func() time.Time { return now }

	rl.Allow("alice")
	now = now.Add(600 * time.Millisecond)
	rl.Allow("bob")
	assert.Equal(t, 2, rl.Sweep())

	now = now.Add(500 * time.Millisecond)
	assert.Equal(t, 1, rl.Sweep())

	now = now.Add(time.Second)
	assert.Equal(t, 0, rl.Sweep())
}
