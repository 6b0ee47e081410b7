package listener

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBindAndAcceptDeliversConnection(t *testing.T) {
	pool := NewPool(4, nil)
	defer pool.Close()

	addr := Address{Network: "tcp", Host: "127.0.0.1", Port: freePort(t)}
	require.NoError(t, pool.Bind(context.Background(), addr, nil, true))

	dialDone := make(chan error, 1)
	go func() {
		conn, err := net.Dial("tcp", addr.String())
		if err == nil {
			conn.Close()
		}
		dialDone <- err
	}()

	select {
	case cd := <-pool.Connections():
		require.Equal(t, "tcp", cd.Protocol)
		cd.Conn.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accepted connection")
	}
	require.NoError(t, <-dialDone)
}

func TestBindFirstPassFailureIsFatal(t *testing.T) {
	pool := NewPool(4, nil)
	defer pool.Close()

	addr := Address{Network: "tcp", Host: "127.0.0.1", Port: freePort(t)}
	require.NoError(t, pool.Bind(context.Background(), addr, nil, true))

	pool2 := NewPool(4, nil)
	defer pool2.Close()
	err := pool2.Bind(context.Background(), addr, nil, true)
	require.Error(t, err, "binding an already-bound address on the first pass must fail immediately")
}

func freePort(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return uint16(ln.Addr().(*net.TCPAddr).Port)
}
