package modulecache

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetOrInitSingleFlight(t *testing.T) {
	c := New()
	var calls int64

	var wg sync.WaitGroup
	results := make([]any, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrInit("fingerprint-a", func() (any, error) {
				atomic.AddInt64(&calls, 1)
				instance := "instance"
				return &instance, nil
			})
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt64(&calls))
	for _, r := range results {
		require.Same(t, results[0].(*string), r.(*string))
	}
}
