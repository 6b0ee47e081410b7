package reverseproxy

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"golang.org/x/net/http2"
)

// Dialer establishes the raw connection for a Backend, then negotiates a
// Sender appropriate to the backend's scheme and configured protocol
// (spec §4.5 "upstream transport"). Grounded on the teacher's dial logic
// in caddyhttp/proxy/upstream.go, generalized to cover TCP, Unix-socket,
// and TLS-upgraded (h2) upstreams.
type Dialer struct {
	DialTimeout time.Duration
	TLSConfig   *tls.Config

	// EnableHTTP2 offers h2 via ALPN alongside http/1.1 (spec §3
	// "proxy_http2"); ForceHTTP2 skips negotiation and always speaks h2,
	// even over cleartext via prior knowledge (spec §3 "proxy_http2_only").
	EnableHTTP2 bool
	ForceHTTP2  bool

	// ProxyProtocol, when set, prefixes the dialed connection with a
	// PROXY protocol v1/v2 header before any application bytes are
	// written (spec §3 "proxy_header").
	ProxyProtocol ProxyProtocolVersion
}

func (d *Dialer) dialTimeout() time.Duration {
	if d.DialTimeout > 0 {
		return d.DialTimeout
	}
	return 5 * time.Second
}

// Dial opens a new connection to backend b and wraps it as a Sender.
// clientAddr, when non-nil, is the downstream client's address, used as
// the PROXY protocol source address when d.ProxyProtocol is enabled.
func (d *Dialer) Dial(ctx context.Context, b *Backend, clientAddr net.Addr) (Sender, error) {
	network := "tcp"
	addr := ""
	useTLS := false

	switch {
	case b.UnixPath != "":
		network = "unix"
		addr = b.UnixPath
	case b.URL != nil:
		addr = b.URL.Host
		useTLS = b.URL.Scheme == "https"
	}

	dctx, cancel := context.WithTimeout(ctx, d.dialTimeout())
	defer cancel()

	var conn net.Conn
	var err error
	nd := net.Dialer{}
	conn, err = nd.DialContext(dctx, network, addr)
	if err != nil {
		return nil, err
	}

	if d.ProxyProtocol != ProxyProtocolNone && clientAddr != nil {
		if err := WrapWithProxyProtocol(conn, d.ProxyProtocol, clientAddr, conn.RemoteAddr()); err != nil {
			conn.Close()
			return nil, err
		}
	}

	if useTLS {
		cfg := d.TLSConfig
		if cfg == nil {
			cfg = &tls.Config{}
		}
		if cfg.ServerName == "" && b.URL != nil {
			cfg = cfg.Clone()
			cfg.ServerName = hostOnly(b.URL.Host)
		}
		switch {
		case d.ForceHTTP2:
			cfg = cfg.Clone()
			cfg.NextProtos = []string{"h2"}
		case d.EnableHTTP2:
			cfg = cfg.Clone()
			cfg.NextProtos = append([]string{"h2", "http/1.1"}, cfg.NextProtos...)
		}
		tlsConn := tls.Client(conn, cfg)
		if err := tlsConn.HandshakeContext(dctx); err != nil {
			conn.Close()
			return nil, err
		}
		if tlsConn.ConnectionState().NegotiatedProtocol == "h2" {
			return newHTTP2Sender(tlsConn)
		}
		conn = tlsConn
	} else if d.ForceHTTP2 {
		return newHTTP2Sender(conn)
	}

	return newHTTP1Sender(conn), nil
}

func newHTTP2Sender(conn net.Conn) (Sender, error) {
	t := &http2.Transport{AllowHTTP: true}
	cc, err := t.NewClientConn(conn)
	if err != nil {
		return nil, err
	}
	return &http2Sender{cc: cc}, nil
}

func hostOnly(hostport string) string {
	h, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return h
}
