package client_test

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parleychat/parley/pkg/client"
)

func TestJoinTimesOutOnSilentHost(t *testing.T) {
	// A host that accepts the connection but never answers the
	// handshake.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.Copy(io.Discard, conn)
	}()

	c, err := client.Dial(ln.Addr().String())
	require.NoError(t, err)
	defer c.Close()
	c.RequestTimeout = 200 * time.Millisecond

	start := time.Now()
	_, err = c.Join("alice")
	require.Error(t, err)
	require.Less(t, time.Since(start), 3*time.Second, "handshake must give up within the request bound")
}
