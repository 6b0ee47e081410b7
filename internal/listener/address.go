// Package listener implements the Listener Pool (spec §4.3 / "C2"):
// one bound socket per configured address, each feeding a bounded
// stream of accepted connections into the request pipeline, with
// bind-conflict retry on hot reload and atomic TLS config hot-swap.
// Grounded on the teacher's root-level listeners.go (NetworkAddress
// parsing and ListenAll) and its use of quic-go/http3 for UDP/QUIC
// binding alongside the TCP listener.
package listener

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Address is a parsed bind address: network, host, and port (spec §3
// "listener address").
type Address struct {
	Network string
	Host    string
	Port    uint16
}

func (a Address) String() string {
	if a.Network == "unix" {
		return a.Host
	}
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

// ParseAddress parses "host:port" or "unix:/path/to.sock" forms (spec
// §3 "bind directive"), defaulting the network to tcp.
func ParseAddress(raw string) (Address, error) {
	if scheme, path, ok := strings.Cut(raw, ":"); ok && scheme == "unix" {
		return Address{Network: "unix", Host: path}, nil
	}
	host, portStr, err := net.SplitHostPort(raw)
	if err != nil {
		return Address{}, fmt.Errorf("listener: invalid address %q: %w", raw, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Address{}, fmt.Errorf("listener: invalid port in %q: %w", raw, err)
	}
	return Address{Network: "tcp", Host: host, Port: uint16(port)}, nil
}
