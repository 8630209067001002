package httpx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSweepRemovesElapsedWindows(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerWindow: 5,
		Window:            time.Minute,
	})
	defer rl.Stop()

	rl.Check("stale")
	rl.Check("fresh")
	require.Equal(t, 2, rl.EntryCount())

	// Age out only the stale key
	rl.mu.Lock()
	rl.entries["stale"].resetTime = time.Now().Add(-time.Second)
	rl.mu.Unlock()

	rl.sweep(time.Now())
	require.Equal(t, 1, rl.EntryCount())

	// The surviving window still denies correctly after the sweep
	for range 4 {
		require.True(t, rl.Check("fresh").Allowed)
	}
	require.False(t, rl.Check("fresh").Allowed)
}
