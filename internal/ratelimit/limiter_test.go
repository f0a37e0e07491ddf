package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAllow_WindowedRejection(t *testing.T) {
	l := New(60*time.Second, 3)
	now := time.Now()

	require.True(t, l.Allow("signin|1.2.3.4", now))
	require.True(t, l.Allow("signin|1.2.3.4", now.Add(time.Second)))
	require.True(t, l.Allow("signin|1.2.3.4", now.Add(2*time.Second)))
	require.False(t, l.Allow("signin|1.2.3.4", now.Add(3*time.Second)), "4th attempt within window must be rejected")

	// After the window elapses the oldest entries fall out and a new
	// attempt is admitted again.
	require.True(t, l.Allow("signin|1.2.3.4", now.Add(61*time.Second)))
}

func TestAllow_RejectionDoesNotRecord(t *testing.T) {
	l := New(60*time.Second, 1)
	now := time.Now()

	require.True(t, l.Allow("k", now))
	for i := 0; i < 10; i++ {
		require.False(t, l.Allow("k", now.Add(time.Duration(i)*time.Second)))
	}
	// Only the single admitted attempt counts, so once it ages out the
	// client gets back in regardless of the rejected hammering.
	require.True(t, l.Allow("k", now.Add(61*time.Second)))
}

func TestAllow_IndependentKeys(t *testing.T) {
	l := New(time.Minute, 1)
	now := time.Now()

	require.True(t, l.Allow("signin|1.2.3.4", now))
	require.True(t, l.Allow("signin|5.6.7.8", now))
	require.True(t, l.Allow("signup|1.2.3.4", now))
	require.False(t, l.Allow("signin|1.2.3.4", now))
}

func TestPrune_DropsDeadBuckets(t *testing.T) {
	l := New(time.Minute, 5)
	now := time.Now()

	l.Allow("a", now)
	l.Allow("b", now)
	require.Equal(t, 2, l.Len())

	l.Prune(now.Add(2 * time.Minute))
	require.Equal(t, 0, l.Len())
}

func TestAllow_Concurrent(t *testing.T) {
	l := New(time.Minute, 50)
	now := time.Now()

	var wg sync.WaitGroup
	admitted := make(chan struct{}, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("k", now) {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)

	n := 0
	for range admitted {
		n++
	}
	require.Equal(t, 50, n, "exactly max attempts must be admitted under contention")
}
