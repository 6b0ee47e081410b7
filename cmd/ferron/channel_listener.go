package main

import (
	"errors"
	"net"

	"github.com/ferronweb/ferron-core/internal/listener"
)

// channelListener adapts listener.Pool's shared ConnectionData stream
// (spec §4.3) into a net.Listener so the request pipeline can be driven
// by the stock net/http server loop, grounded on the teacher's use of
// net/http.Serve over a custom net.Listener in its own HTTP app setup.
type channelListener struct {
	conns  <-chan listener.ConnectionData
	addr   net.Addr
	closed chan struct{}
}

func newChannelListener(pool *listener.Pool) *channelListener {
	return &channelListener{
		conns:  pool.Connections(),
		addr:   &net.TCPAddr{},
		closed: make(chan struct{}),
	}
}

func (c *channelListener) Accept() (net.Conn, error) {
	select {
	case data, ok := <-c.conns:
		if !ok {
			return nil, errors.New("channel_listener: connection stream closed")
		}
		return data.Conn, nil
	case <-c.closed:
		return nil, errors.New("channel_listener: listener closed")
	}
}

func (c *channelListener) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

func (c *channelListener) Addr() net.Addr { return c.addr }
