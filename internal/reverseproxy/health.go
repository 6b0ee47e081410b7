package reverseproxy

import (
	"sync"
	"time"
)

// HealthTracker is the per-proxy-set TTL cache mapping backend index to
// consecutive failure count (spec §3 "failed_backends", §4.5 "Health
// tracking"). Grounded on the teacher's atomic Unhealthy/Fails fields in
// caddyhttp/proxy/upstream.go, generalized from a single atomic flag to
// a TTL-windowed counter as the spec requires.
type HealthTracker struct {
	mu       sync.Mutex
	window   time.Duration
	maxFails int
	fails    map[int][]time.Time

	now func() time.Time
}

func NewHealthTracker(window time.Duration, maxFails int) *HealthTracker {
	if window <= 0 {
		window = 10 * time.Second
	}
	if maxFails <= 0 {
		maxFails = 1
	}
	return &HealthTracker{
		window:   window,
		maxFails: maxFails,
		fails:    map[int][]time.Time{},
		now:      time.Now,
	}
}

// RecordFailure increments the failure count for backend i (spec §4.5
// "On a connection-setup failure, the failure counter is incremented").
func (h *HealthTracker) RecordFailure(i int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	h.fails[i] = append(h.prune(h.fails[i], now), now)
}

// RecordSuccess resets the failure counter for backend i (spec §4.5 "On
// a successful response ... the counter resets").
func (h *HealthTracker) RecordSuccess(i int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.fails, i)
}

// Unhealthy reports whether backend i has accumulated max_fails
// consecutive failures within the configured window.
func (h *HealthTracker) Unhealthy(i int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	fails := h.prune(h.fails[i], now)
	h.fails[i] = fails
	return len(fails) >= h.maxFails
}

func (h *HealthTracker) prune(fails []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-h.window)
	n := 0
	for _, f := range fails {
		if f.After(cutoff) {
			fails[n] = f
			n++
		}
	}
	return fails[:n]
}
