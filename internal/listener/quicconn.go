package listener

import (
	"context"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

// quicConnAdapter exposes one QUIC connection's first bidirectional
// stream as a net.Conn, so the rest of the pipeline (which speaks
// net.Conn / http.Request) doesn't need to know about QUIC's
// multi-stream model for the simple request/response case this pool
// feeds into. A full HTTP/3 server would drive quic-go/http3 directly
// against the underlying quic.Connection; this adapter covers the
// pool's "one ConnectionData per logical request" contract (spec §4.3).
type quicConnAdapter struct {
	conn   *quic.Conn
	stream *quic.Stream
}

func (a *quicConnAdapter) ensureStream() error {
	if a.stream != nil {
		return nil
	}
	str, err := a.conn.AcceptStream(context.Background())
	if err != nil {
		return err
	}
	a.stream = str
	return nil
}

func (a *quicConnAdapter) Read(b []byte) (int, error) {
	if err := a.ensureStream(); err != nil {
		return 0, err
	}
	return a.stream.Read(b)
}

func (a *quicConnAdapter) Write(b []byte) (int, error) {
	if err := a.ensureStream(); err != nil {
		return 0, err
	}
	return a.stream.Write(b)
}

func (a *quicConnAdapter) Close() error {
	if a.stream != nil {
		a.stream.Close()
	}
	return a.conn.CloseWithError(0, "closed")
}

func (a *quicConnAdapter) LocalAddr() net.Addr  { return a.conn.LocalAddr() }
func (a *quicConnAdapter) RemoteAddr() net.Addr { return a.conn.RemoteAddr() }

func (a *quicConnAdapter) SetDeadline(t time.Time) error {
	if err := a.ensureStream(); err != nil {
		return err
	}
	return a.stream.SetDeadline(t)
}

func (a *quicConnAdapter) SetReadDeadline(t time.Time) error {
	if err := a.ensureStream(); err != nil {
		return err
	}
	return a.stream.SetReadDeadline(t)
}

func (a *quicConnAdapter) SetWriteDeadline(t time.Time) error {
	if err := a.ensureStream(); err != nil {
		return err
	}
	return a.stream.SetWriteDeadline(t)
}
