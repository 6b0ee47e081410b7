package listener

import "net"

// ConnectionData is one accepted connection handed from a bound
// listener into the request pipeline, tagged with which address and
// protocol accepted it (spec §4.3 "ConnectionData stream").
type ConnectionData struct {
	Conn     net.Conn
	Address  Address
	Protocol string // "tcp", "quic"
}
