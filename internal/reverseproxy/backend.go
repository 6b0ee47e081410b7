// Package reverseproxy implements the Reverse-Proxy Engine of spec §4.5:
// upstream selection, health tracking, connection pooling, request/
// response rewriting, and upgrade passthrough. Grounded on the
// teacher's caddyhttp/proxy package (policy.go's Policy interface and
// UpstreamHost bookkeeping, upstream.go's health-check worker, proxy.go's
// header rewriting), adapted from Caddyfile-driven staticUpstream to the
// spec's ReverseProxy record (§3) and its four named algorithms.
package reverseproxy

import (
	"net/url"
	"sync/atomic"
)

// Backend is one upstream target in a ReverseProxy's proxy_to list
// (spec §3 "backend keys").
type Backend struct {
	URL            *url.URL
	UnixPath       string
	LocalLimit     int           // 0 = unlimited
	IdleTimeout    int64         // seconds, 0 = pool default

	inFlight atomic.Int64
}

// InFlight returns the current number of requests this engine has
// dispatched to the backend and not yet completed.
func (b *Backend) InFlight() int64 { return b.inFlight.Load() }

func (b *Backend) beginRequest() { b.inFlight.Add(1) }
func (b *Backend) endRequest()   { b.inFlight.Add(-1) }

func (b *Backend) Address() string {
	if b.UnixPath != "" {
		return "unix:" + b.UnixPath
	}
	return b.URL.String()
}

// BackendSet is the ordered sequence of backends for one ReverseProxy
// configuration (spec §3 "proxy_to").
type BackendSet struct {
	Backends []*Backend
	Health   *HealthTracker
}

// Live returns the indices of backends not currently marked unhealthy.
// If every backend is unhealthy, it returns all indices — "selection
// falls back to the full set" to prevent total-outage masking (spec
// §4.5).
func (s *BackendSet) Live() []int {
	live := make([]int, 0, len(s.Backends))
	for i := range s.Backends {
		if !s.Health.Unhealthy(i) {
			live = append(live, i)
		}
	}
	if len(live) == 0 {
		live = make([]int, len(s.Backends))
		for i := range s.Backends {
			live[i] = i
		}
	}
	return live
}
