package reverseproxy

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"
)

// Sender is a pooled, already-established upstream connection capable of
// round-tripping requests — either an HTTP/1 keepalive connection or an
// HTTP/2 multiplexed connection (spec §3 ConnectionPool "SendRequest").
type Sender interface {
	RoundTrip(*http.Request) (*http.Response, error)
	Closed() bool
	Close() error
}

// http1Sender wraps a single dedicated *http.Transport pinned to one
// already-dialed connection, so the pool's accounting of "one sender per
// slot" holds even though net/http's Transport has its own internal
// pool.
type http1Sender struct {
	conn      net.Conn
	transport *http.Transport
	closed    chan struct{}
}

func newHTTP1Sender(conn net.Conn) *http1Sender {
	s := &http1Sender{conn: conn, closed: make(chan struct{})}
	s.transport = &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return conn, nil
		},
		DisableCompression: true,
	}
	return s
}

func (s *http1Sender) RoundTrip(req *http.Request) (*http.Response, error) {
	return s.transport.RoundTrip(req)
}

func (s *http1Sender) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *http1Sender) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	s.transport.CloseIdleConnections()
	return s.conn.Close()
}

type http2Sender struct {
	cc *http2.ClientConn
}

func (s *http2Sender) RoundTrip(req *http.Request) (*http.Response, error) {
	return s.cc.RoundTrip(req)
}

func (s *http2Sender) Closed() bool { return !s.cc.CanTakeNewRequest() }

func (s *http2Sender) Close() error { return s.cc.Close() }

// ConnectionPool is the bounded, per-address connection pool of spec §3:
// "for each address, len(live_slots[addr]) <= min(global_limit,
// local_limit[addr])". Grounded on the teacher's staticUpstream
// KeepAlive accounting (caddyhttp/proxy/upstream.go), generalized to an
// explicit slot map rather than relying on net/http's built-in pool so
// the bound is observable and testable (spec §8 invariant).
type ConnectionPool struct {
	mu          sync.Mutex
	globalLimit int
	globalInUse int
	localLimits map[string]int
	slots       map[string][]Sender
	notify      chan struct{}
}

func NewConnectionPool(globalLimit int) *ConnectionPool {
	return &ConnectionPool{
		globalLimit: globalLimit,
		localLimits: map[string]int{},
		slots:       map[string][]Sender{},
		notify:      make(chan struct{}, 1),
	}
}

func (p *ConnectionPool) SetLocalLimit(addr string, limit int) {
	p.mu.Lock()
	p.localLimits[addr] = limit
	p.mu.Unlock()
}

func (p *ConnectionPool) localLimit(addr string) int {
	if l, ok := p.localLimits[addr]; ok && l > 0 {
		return l
	}
	return p.globalLimit
}

// Checkout returns a non-closed Sender for addr if one is pooled,
// discarding closed senders as it scans (spec §3 ConnectionPool
// invariant: "on checkout, a non-closed sender is preferred; on
// check-in, closed senders are discarded"). If none is available, ok is
// false and the caller should establish a new connection and then call
// Reserve before dialing, to cooperatively block within the bound.
func (p *ConnectionPool) Checkout(addr string) (Sender, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bucket := p.slots[addr]
	for len(bucket) > 0 {
		s := bucket[len(bucket)-1]
		bucket = bucket[:len(bucket)-1]
		p.slots[addr] = bucket
		if !s.Closed() {
			return s, true
		}
		p.globalInUse--
	}
	return nil, false
}

// Reserve cooperatively blocks (respecting ctx) until a slot is free for
// addr under both the global and local bound, then reserves it for the
// caller's soon-to-be-established connection.
func (p *ConnectionPool) Reserve(ctx context.Context, addr string) error {
	for {
		p.mu.Lock()
		local := p.localLimit(addr)
		inUseLocal := len(p.slots[addr])
		if (p.globalLimit <= 0 || p.globalInUse < p.globalLimit) && (local <= 0 || inUseLocal < local) {
			p.globalInUse++
			p.mu.Unlock()
			return nil
		}
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.notify:
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Checkin returns sender to the pool for reuse if keepalive is enabled
// and the sender is not closed; otherwise the slot is released (spec §5
// "Shared-resource policy").
func (p *ConnectionPool) Checkin(addr string, sender Sender, keepalive bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if keepalive && !sender.Closed() {
		p.slots[addr] = append(p.slots[addr], sender)
	} else {
		p.globalInUse--
		sender.Close()
	}
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Release gives back a reserved slot without pooling a sender, used when
// connection setup itself failed after Reserve succeeded.
func (p *ConnectionPool) Release(addr string) {
	p.mu.Lock()
	p.globalInUse--
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// InFlight returns the number of live+in-use slots for addr, for the
// §8 pool-bound invariant test.
func (p *ConnectionPool) InFlight(addr string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots[addr])
}

var _ = tls.Config{} // upstream TLS config is threaded in by transport.go
