package server

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parleychat/parley/pkg/model"
	"github.com/parleychat/parley/pkg/protocol"
)

func TestBroadcastDropsDeadPeerImmediately(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bind = "127.0.0.1:0"
	s := New(cfg)

	local, remote := net.Pipe()
	require.NoError(t, remote.Close())
	require.NoError(t, local.Close())

	dead := &peer{conn: local, user: model.User{ID: "u-dead", Username: "alice"}}
	s.addPeer(dead)

	s.broadcast(&protocol.Envelope{NewMessage: &protocol.NewMessageEvent{}})

	// The failed push must deregister the peer, not just close it, so
	// later broadcasts stop retrying a dead connection.
	s.mu.RLock()
	_, present := s.peers["u-dead"]
	s.mu.RUnlock()
	require.False(t, present)
	require.Equal(t, int64(1), s.metrics.Count(metricEventsFailed))

	s.broadcast(&protocol.Envelope{NewMessage: &protocol.NewMessageEvent{}})
	require.Equal(t, int64(1), s.metrics.Count(metricEventsFailed), "a reclaimed peer must not fail again")
}
