package listener

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ferronweb/ferron-core/internal/ferronlog"
)

// BindRetryAttempts and BindRetryDelay implement spec §4.3's
// bind-conflict retry policy: on a hot reload, a bind failure (e.g. the
// old process hasn't released the socket yet) is retried a bounded
// number of times before giving up; on the very first pass (process
// startup), a bind failure is fatal immediately.
const (
	BindRetryAttempts = 10
	BindRetryDelay    = 1 * time.Second
)

// boundListener is one live bound socket and its goroutine feeding the
// shared connection stream.
type boundListener struct {
	addr     Address
	tcp      net.Listener
	tlsConf  *atomic.Pointer[tls.Config]
	cancel   context.CancelFunc
}

// Pool is the set of all bound listeners for the current configuration
// generation, each running its own accept loop (spec §4.3 "one thread
// per bound address"). Grounded on the teacher's NetworkAddress.Listen /
// ListenAll in listeners.go, adapted from caddy's ad hoc per-app
// listener management into an explicit pool object with a shared
// bounded output channel and observable TLS hot-swap.
type Pool struct {
	mu            sync.Mutex
	listeners     map[string]*boundListener
	quicListeners map[string]*quicListener
	out           chan ConnectionData
	log           *ferronlog.Logger
}

// NewPool creates a Pool whose accepted-connection channel is bounded
// at bufferSize (spec §4.3 "bounded channel — a slow pipeline applies
// backpressure to accept loops rather than growing memory unboundedly").
func NewPool(bufferSize int, log *ferronlog.Logger) *Pool {
	if log == nil {
		log = ferronlog.Nop()
	}
	return &Pool{
		listeners: map[string]*boundListener{},
		out:       make(chan ConnectionData, bufferSize),
		log:       log,
	}
}

// Connections returns the shared stream of accepted connections across
// every bound address in the pool.
func (p *Pool) Connections() <-chan ConnectionData {
	return p.out
}

// Bind opens a TCP listener for addr (optionally under a TLS config,
// hot-swappable via SetTLSConfig), retrying up to BindRetryAttempts
// times with BindRetryDelay between attempts when firstPass is false
// (spec §4.3 "hot reload retry"); on firstPass a failure is returned
// immediately as fatal.
func (p *Pool) Bind(ctx context.Context, addr Address, tlsConf *tls.Config, firstPass bool) error {
	var ln net.Listener
	var err error

	attempts := 1
	if !firstPass {
		attempts = BindRetryAttempts
	}

	for i := 0; i < attempts; i++ {
		ln, err = net.Listen(addr.Network, addr.String())
		if err == nil {
			break
		}
		if firstPass {
			return fmt.Errorf("listener: fatal bind failure on %s: %w", addr, err)
		}
		p.log.Warn("bind attempt failed, retrying", zap.String("address", addr.String()), zap.Int("attempt", i+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(BindRetryDelay):
		}
	}
	if err != nil {
		return fmt.Errorf("listener: exhausted %d bind attempts on %s: %w", attempts, addr, err)
	}

	tlsPtr := &atomic.Pointer[tls.Config]{}
	tlsPtr.Store(tlsConf)

	runCtx, cancel := context.WithCancel(ctx)
	bl := &boundListener{addr: addr, tcp: ln, tlsConf: tlsPtr, cancel: cancel}

	p.mu.Lock()
	p.listeners[addr.String()] = bl
	p.mu.Unlock()

	go p.acceptLoop(runCtx, bl)
	return nil
}

func (p *Pool) acceptLoop(ctx context.Context, bl *boundListener) {
	for {
		conn, err := bl.tcp.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				p.log.Warn("accept error", zap.String("address", bl.addr.String()), zap.Error(err))
				continue
			}
		}

		if cfg := bl.tlsConf.Load(); cfg != nil {
			conn = tls.Server(conn, cfg)
		}

		select {
		case p.out <- ConnectionData{Conn: conn, Address: bl.addr, Protocol: "tcp"}:
		case <-ctx.Done():
			conn.Close()
			return
		}
	}
}

// SetTLSConfig hot-swaps the TLS configuration used for new
// connections on addr without unbinding the socket (spec §4.3
// "TLS config hot-swap via atomic pointer"). In-flight connections
// keep using whatever config they were accepted under.
func (p *Pool) SetTLSConfig(addr Address, cfg *tls.Config) error {
	p.mu.Lock()
	bl, ok := p.listeners[addr.String()]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("listener: no bound listener for %s", addr)
	}
	bl.tlsConf.Store(cfg)
	return nil
}

// Close unbinds every listener in the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, bl := range p.listeners {
		bl.cancel()
		if err := bl.tcp.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, ql := range p.quicListeners {
		ql.cancel()
		if err := ql.ln.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.listeners = map[string]*boundListener{}
	p.quicListeners = map[string]*quicListener{}
	return firstErr
}

// CloseAddress unbinds a single listener, used when a configuration
// reload drops an address entirely.
func (p *Pool) CloseAddress(addr Address) error {
	p.mu.Lock()
	bl, ok := p.listeners[addr.String()]
	delete(p.listeners, addr.String())
	p.mu.Unlock()
	if !ok {
		return nil
	}
	bl.cancel()
	return bl.tcp.Close()
}
