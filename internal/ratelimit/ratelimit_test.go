package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestLimiter_Admit_GlobalCapAcrossDistinctUsers(t *testing.T) {
	t.Parallel()

	l := New(5, time.Second, 5*time.Second)

	admitted := 0
	for i := 0; i < 6; i++ {
		// six users inside half a second
		if l.Admit(int64(100+i), t0.Add(time.Duration(i)*80*time.Millisecond)) {
			admitted++
		}
	}
	require.Equal(t, 5, admitted)
}

func TestLimiter_Admit_WindowSlides(t *testing.T) {
	t.Parallel()

	l := New(5, time.Second, 0)
	for i := 0; i < 5; i++ {
		require.True(t, l.Admit(int64(i), t0))
	}
	require.False(t, l.Admit(99, t0.Add(500*time.Millisecond)))

	// entries at exactly now-window are still counted
	require.False(t, l.Admit(99, t0.Add(time.Second)))
	require.True(t, l.Admit(99, t0.Add(time.Second+time.Millisecond)))
}

func TestLimiter_Admit_UserCooldown(t *testing.T) {
	t.Parallel()

	l := New(5, time.Second, 5*time.Second)

	require.True(t, l.Admit(7, t0))
	require.False(t, l.Admit(7, t0.Add(4999*time.Millisecond)), "inside cooldown")
	require.True(t, l.Admit(7, t0.Add(5*time.Second)))
}

func TestLimiter_Admit_CooldownRejectsEvenWithHeadroom(t *testing.T) {
	t.Parallel()

	l := New(100, time.Second, 5*time.Second)
	require.True(t, l.Admit(1, t0))
	require.False(t, l.Admit(1, t0.Add(2*time.Second)))
	require.Equal(t, 0, l.InFlight(t0.Add(2*time.Second)))
}

func TestLimiter_Admit_RejectionHasNoSideEffects(t *testing.T) {
	t.Parallel()

	l := New(1, time.Second, 5*time.Second)
	require.True(t, l.Admit(1, t0))

	// rejected globally: must not start a cooldown for user 2
	require.False(t, l.Admit(2, t0.Add(100*time.Millisecond)))
	require.True(t, l.Admit(2, t0.Add(1100*time.Millisecond)))

	// rejected by cooldown: must not consume global capacity
	require.False(t, l.Admit(2, t0.Add(2200*time.Millisecond)))
	require.True(t, l.Admit(3, t0.Add(2200*time.Millisecond)))
}

func TestLimiter_Admit_ConcurrentNeverExceedsLimit(t *testing.T) {
	t.Parallel()

	l := New(5, time.Second, 5*time.Second)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if l.Admit(id, t0) {
				admitted.Add(1)
			}
		}(int64(i))
	}
	wg.Wait()

	require.Equal(t, int32(5), admitted.Load())
}

func TestLimiter_Sweep(t *testing.T) {
	t.Parallel()

	l := New(5, time.Second, 5*time.Second)
	require.True(t, l.Admit(1, t0))
	require.True(t, l.Admit(2, t0.Add(3*time.Second)))

	require.Equal(t, 1, l.Sweep(t0.Add(6*time.Second)))
	require.True(t, l.Admit(1, t0.Add(6*time.Second)))
	require.False(t, l.Admit(2, t0.Add(6*time.Second)))
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	l := New(0, 0, -1)
	require.Equal(t, DefaultGlobalLimit, l.limit)
	require.Equal(t, DefaultWindow, l.window)
	require.Equal(t, DefaultCooldown, l.cooldown)
}
