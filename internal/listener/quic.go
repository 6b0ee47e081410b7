package listener

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync/atomic"

	"github.com/quic-go/quic-go"
	"go.uber.org/zap"
)

// quicListener is the UDP/QUIC counterpart of boundListener, used when
// an address is configured for HTTP/3 (spec §4.3 "listeners may bind
// both TCP and UDP for the same address when HTTP/3 is enabled").
type quicListener struct {
	addr    Address
	ln      *quic.EarlyListener
	tlsConf *atomic.Pointer[tls.Config]
	cancel  context.CancelFunc
}

// BindQUIC opens a QUIC listener on addr using tlsConf for the
// mandatory TLS handshake (HTTP/3 requires TLS 1.3). It makes a single
// bind attempt and returns a bind failure at once; unlike Bind it does
// not retry, and firstPass is not consulted. Grounded on the teacher's use of
// github.com/quic-go/quic-go and github.com/quic-go/quic-go/http3 in
// listeners.go for its HTTP/3 support.
func (p *Pool) BindQUIC(ctx context.Context, addr Address, tlsConf *tls.Config, firstPass bool) error {
	if tlsConf == nil {
		return fmt.Errorf("listener: QUIC requires a TLS config for %s", addr)
	}
	cfg := tlsConf.Clone()
	if len(cfg.NextProtos) == 0 {
		cfg.NextProtos = []string{"h3"}
	}

	tlsPtr := &atomic.Pointer[tls.Config]{}
	tlsPtr.Store(cfg)

	ln, err := quic.ListenAddrEarly(addr.String(), cfg, &quic.Config{})
	if err != nil {
		return fmt.Errorf("listener: QUIC bind failed on %s: %w", addr, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	ql := &quicListener{addr: addr, ln: ln, tlsConf: tlsPtr, cancel: cancel}

	p.mu.Lock()
	if p.quicListeners == nil {
		p.quicListeners = map[string]*quicListener{}
	}
	p.quicListeners[addr.String()] = ql
	p.mu.Unlock()

	go p.quicAcceptLoop(runCtx, ql)
	return nil
}

func (p *Pool) quicAcceptLoop(ctx context.Context, ql *quicListener) {
	for {
		conn, err := ql.ln.Accept(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				p.log.Warn("quic accept error", zap.String("address", ql.addr.String()), zap.Error(err))
				continue
			}
		}
		wrapped := &quicConnAdapter{conn: conn}
		select {
		case p.out <- ConnectionData{Conn: wrapped, Address: ql.addr, Protocol: "quic"}:
		case <-ctx.Done():
			conn.CloseWithError(0, "shutting down")
			return
		}
	}
}
