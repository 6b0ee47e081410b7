package reverseproxy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestHealthWindowRejoin verifies spec §8's health-tracking invariant:
// a backend that accumulates max_fails consecutive failures is marked
// unhealthy, and rejoins the live set once its failures have aged out
// of the window.
func TestHealthWindowRejoin(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h := NewHealthTracker(10*time.Second, 3)
	h.now = func() time.Time { return now }

	h.RecordFailure(0)
	h.RecordFailure(0)
	require.False(t, h.Unhealthy(0), "below max_fails should stay healthy")

	h.RecordFailure(0)
	require.True(t, h.Unhealthy(0), "reaching max_fails should mark unhealthy")

	now = now.Add(11 * time.Second)
	require.False(t, h.Unhealthy(0), "failures older than window should age out")
}

// TestBackendSetLiveFallback exercises the "all unhealthy falls back to
// full set" rule of spec §4.5.
func TestBackendSetLiveFallback(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h := NewHealthTracker(10*time.Second, 1)
	h.now = func() time.Time { return now }

	set := &BackendSet{
		Backends: []*Backend{{}, {}},
		Health:   h,
	}

	h.RecordFailure(0)
	h.RecordFailure(1)

	live := set.Live()
	require.ElementsMatch(t, []int{0, 1}, live, "all-unhealthy should fall back to the full set")
}
