package reverseproxy

import (
	"net"

	proxyproto "github.com/pires/go-proxyproto"
)

// ProxyProtocolVersion selects the PROXY protocol header version sent to
// a backend that has proxy_protocol enabled (spec §3 "proxy_protocol").
type ProxyProtocolVersion int

const (
	ProxyProtocolNone ProxyProtocolVersion = iota
	ProxyProtocolV1
	ProxyProtocolV2
)

// WrapWithProxyProtocol writes a PROXY protocol v1 or v2 header to conn
// describing the original client/proxy endpoints, before any application
// bytes are sent, so the backend can recover the true client address
// (spec §4.5 "proxy_protocol: prepend a PROXY protocol header"). Grounded
// on github.com/pires/go-proxyproto's Header type, as used by the
// teacher's caddytls listener wrapper for the inbound-facing equivalent.
func WrapWithProxyProtocol(conn net.Conn, version ProxyProtocolVersion, src, dst net.Addr) error {
	if version == ProxyProtocolNone {
		return nil
	}
	ver := byte(1)
	if version == ProxyProtocolV2 {
		ver = 2
	}
	header := proxyproto.HeaderProxyFromAddrs(ver, src, dst)
	_, err := header.WriteTo(conn)
	return err
}
