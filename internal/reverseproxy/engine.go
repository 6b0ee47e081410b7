package reverseproxy

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/ferronweb/ferron-core/internal/metrics"
)

// ErrNoLiveBackends is returned when a BackendSet has no backends
// configured at all (distinct from "all unhealthy", which still
// attempts the full set per spec §4.5).
var ErrNoLiveBackends = errors.New("reverseproxy: no backends configured")

// Serve selects a backend, dials or reuses a pooled connection, sends
// req, and returns the upstream response. On a connection-setup failure
// it records a health failure and retries against the next selection,
// making at most cfg.RetryAttempts attempts in all (at least one) (spec
// §4.5 "Retry on connection failure").
// The caller is responsible for relaying the returned response to the
// client and for Close()ing its Body.
func (e *Engine) Serve(ctx context.Context, req *http.Request, clientIP string) (*http.Response, error) {
	if len(e.backends.Backends) == 0 {
		return nil, ErrNoLiveBackends
	}

	attempts := e.cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		live := e.backends.Live()
		idx := e.algorithm.Select(live, e.backends.Backends)
		if idx < 0 {
			return nil, ErrNoLiveBackends
		}
		backend := e.backends.Backends[idx]

		resp, err := e.sendTo(ctx, backend, req, clientIP)
		if err != nil {
			e.backends.Health.RecordFailure(idx)
			metrics.SetBackendHealth(backend.Address(), e.backends.Health.Unhealthy(idx))
			lastErr = err
			continue
		}
		e.backends.Health.RecordSuccess(idx)
		metrics.SetBackendHealth(backend.Address(), false)
		return resp, nil
	}
	return nil, lastErr
}

func (e *Engine) sendTo(ctx context.Context, backend *Backend, req *http.Request, clientIP string) (*http.Response, error) {
	addr := backend.Address()

	sender, ok := e.pool.Checkout(addr)
	if !ok {
		if err := e.pool.Reserve(ctx, addr); err != nil {
			return nil, err
		}
		var err error
		sender, err = e.dialer.Dial(ctx, backend, clientAddr(clientIP))
		if err != nil {
			e.pool.Release(addr)
			return nil, err
		}
	}

	backend.beginRequest()
	defer backend.endRequest()

	outReq := req.Clone(ctx)
	outReq.RequestURI = ""
	if backend.URL != nil {
		outReq.URL.Scheme = backend.URL.Scheme
		outReq.URL.Host = backend.URL.Host
		if !e.cfg.PreserveHostHeader {
			outReq.Host = backend.URL.Host
		}
	}

	PrepareUpstreamRequest(outReq, clientIP, schemeOf(req), e.cfg.Rewrite)

	resp, err := sender.RoundTrip(outReq)
	keepalive := err == nil && e.cfg.Keepalive && !isUpgrade(outReq, resp)
	e.pool.Checkin(addr, sender, keepalive)
	if err != nil {
		return nil, err
	}

	PrepareDownstreamResponse(resp, e.cfg.Rewrite)
	return resp, nil
}

// clientAddr turns the canonical client IP string carried alongside the
// request into a net.Addr suitable as a PROXY protocol source address;
// returns nil if ip doesn't parse (e.g. unknown/empty), in which case
// the caller skips PROXY-protocol wrapping for that dial.
func clientAddr(ip string) net.Addr {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil
	}
	return &net.TCPAddr{IP: parsed}
}

func schemeOf(req *http.Request) string {
	if req.TLS != nil {
		return "https"
	}
	return "http"
}

func isUpgrade(req *http.Request, resp *http.Response) bool {
	if resp != nil && resp.StatusCode == http.StatusSwitchingProtocols {
		return true
	}
	return strings.EqualFold(req.Header.Get("Upgrade"), "websocket")
}

// Upgrade hijacks the client connection and the (already dialed) raw
// upstream connection, relaying bytes bidirectionally after the 101
// handshake — spec §4.5 "upgrade passthrough (e.g. WebSocket)". The
// caller must have already validated that resp is a 101 response.
func Upgrade(clientConn net.Conn, upstreamConn net.Conn) error {
	errc := make(chan error, 2)
	go func() {
		_, err := io.Copy(upstreamConn, clientConn)
		errc <- err
	}()
	go func() {
		_, err := io.Copy(clientConn, upstreamConn)
		errc <- err
	}()
	return <-errc
}
