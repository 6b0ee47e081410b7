package reverseproxy

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	closed bool
}

func (f *fakeSender) RoundTrip(*http.Request) (*http.Response, error) { return nil, nil }
func (f *fakeSender) Closed() bool                                    { return f.closed }
func (f *fakeSender) Close() error                                    { f.closed = true; return nil }

// TestConnectionPoolBound verifies spec §8's pool-bound invariant: the
// number of concurrently reserved slots for one address never exceeds
// min(global_limit, local_limit[addr]).
func TestConnectionPoolBound(t *testing.T) {
	pool := NewConnectionPool(2)
	pool.SetLocalLimit("backend-a", 2)

	ctx := context.Background()
	require.NoError(t, pool.Reserve(ctx, "backend-a"))
	require.NoError(t, pool.Reserve(ctx, "backend-a"))

	cctx, cancel := context.WithTimeout(ctx, 0)
	defer cancel()
	err := pool.Reserve(cctx, "backend-a")
	require.Error(t, err, "a third reservation should block until the global limit frees up")
}

func TestConnectionPoolCheckoutDiscardsClosed(t *testing.T) {
	pool := NewConnectionPool(4)
	closedSender := &fakeSender{closed: true}
	liveSender := &fakeSender{}

	pool.Checkin("addr", closedSender, true)
	pool.Checkin("addr", liveSender, true)

	got, ok := pool.Checkout("addr")
	require.True(t, ok)
	require.Same(t, liveSender, got, "checkout should skip past closed senders")

	_, ok = pool.Checkout("addr")
	require.False(t, ok, "pool should be empty after reclaiming the only live sender")
}

func TestConnectionPoolConcurrentReserveRelease(t *testing.T) {
	pool := NewConnectionPool(3)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pool.Reserve(ctx, "addr"); err == nil {
				pool.Release("addr")
			}
		}()
	}
	wg.Wait()
}
