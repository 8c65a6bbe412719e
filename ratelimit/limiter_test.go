package ratelimit_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inschat/auth-service/ratelimit"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter() (*ratelimit.Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := ratelimit.NewLimiter(10, 60*time.Second, ratelimit.WithNowTime(clock.Now))
	return l, clock
}

func TestLimiter_Admit(t *testing.T) {
	t.Run("limit within window", func(t *testing.T) {
		l, _ := newTestLimiter()
		for i := 0; i < 10; i++ {
			require.True(t, l.Admit("10.0.0.1"), "call %d", i+1)
		}
		require.False(t, l.Admit("10.0.0.1"), "11th call within the window")
	})

	t.Run("rejected calls are not recorded", func(t *testing.T) {
		l, clock := newTestLimiter()
		for i := 0; i < 10; i++ {
			require.True(t, l.Admit("10.0.0.1"))
		}
		for i := 0; i < 5; i++ {
			require.False(t, l.Admit("10.0.0.1"))
		}
		// Once the original ten age out, a full burst is available again;
		// the rejected attempts added nothing.
		clock.Advance(61 * time.Second)
		for i := 0; i < 10; i++ {
			require.True(t, l.Admit("10.0.0.1"), "call %d after window", i+1)
		}
	})

	t.Run("window slides off the oldest call", func(t *testing.T) {
		l, clock := newTestLimiter()
		require.True(t, l.Admit("10.0.0.1"))
		clock.Advance(30 * time.Second)
		for i := 0; i < 9; i++ {
			require.True(t, l.Admit("10.0.0.1"))
		}
		require.False(t, l.Admit("10.0.0.1"))

		// 61s after the oldest call it falls out of the window and one
		// more request fits.
		clock.Advance(31 * time.Second)
		require.True(t, l.Admit("10.0.0.1"))
		require.False(t, l.Admit("10.0.0.1"))
	})

	t.Run("ips are tracked independently", func(t *testing.T) {
		l, _ := newTestLimiter()
		for i := 0; i < 10; i++ {
			require.True(t, l.Admit("10.0.0.1"))
		}
		require.False(t, l.Admit("10.0.0.1"))
		require.True(t, l.Admit("10.0.0.2"))
	})

	t.Run("empty ip admitted without recording", func(t *testing.T) {
		l, _ := newTestLimiter()
		for i := 0; i < 50; i++ {
			require.True(t, l.Admit(""))
		}
	})
}
