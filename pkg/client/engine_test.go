package client_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parleychat/parley/pkg/client"
	"github.com/parleychat/parley/pkg/model"
	"github.com/parleychat/parley/pkg/server"
)

func startServer(t *testing.T) *server.Server {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.Bind = "127.0.0.1:0"
	cfg.MetricsInterval = 0
	srv := server.New(cfg)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Shutdown)
	return srv
}

func connect(t *testing.T, addr, username string) *client.Engine {
	t.Helper()
	e := client.NewEngine()
	require.NoError(t, e.Connect(addr, username))
	t.Cleanup(e.Close)
	return e
}

func TestEngineConnectPopulatesMirror(t *testing.T) {
	srv := startServer(t)
	alice := connect(t, srv.Addr().String(), "alice")

	// Connect refreshes eagerly; no events are needed for the joiner's
	// own view.
	require.Equal(t, client.StateConnected, alice.State())
	require.Equal(t, []string{"alice"}, alice.Usernames())
	require.Equal(t, 1, alice.Count())
	require.Empty(t, alice.Messages())
	require.NotEmpty(t, alice.UserID())
}

func TestEngineMirrorsRemoteJoin(t *testing.T) {
	srv := startServer(t)
	addr := srv.Addr().String()

	alice := connect(t, addr, "alice")
	connect(t, addr, "bob")

	require.Eventually(t, func() bool {
		return alice.Count() == 2
	}, 3*time.Second, 25*time.Millisecond)
	require.Equal(t, []string{"alice", "bob"}, alice.Usernames())
}

func TestEngineSendRefreshesOwnLog(t *testing.T) {
	srv := startServer(t)
	addr := srv.Addr().String()

	alice := connect(t, addr, "alice")
	bob := connect(t, addr, "bob")

	require.NoError(t, alice.Send("hello"))

	// The sender's mirror is refreshed before Send returns.
	msgs := alice.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "alice", msgs[0].Username)
	require.Equal(t, "hello", msgs[0].Content)
	require.Equal(t, uint64(1), msgs[0].Sequence)

	// Bob converges via the push event.
	require.Eventually(t, func() bool {
		return len(bob.Messages()) == 1
	}, 3*time.Second, 25*time.Millisecond)
}

func TestEngineSendBlankRejected(t *testing.T) {
	srv := startServer(t)
	alice := connect(t, srv.Addr().String(), "alice")

	err := alice.Send("   ")
	require.ErrorIs(t, err, model.ErrEmptyContent)
	require.Empty(t, alice.Messages())
}

func TestEngineSendBeforeConnect(t *testing.T) {
	e := client.NewEngine()
	require.ErrorIs(t, e.Send("hello"), model.ErrNotJoined)
}

func TestEngineCallbacks(t *testing.T) {
	srv := startServer(t)
	addr := srv.Addr().String()

	rosters := make(chan []string, 8)
	logs := make(chan []model.Message, 8)

	alice := client.NewEngine()
	alice.SetOnRoster(func(usernames []string, count int) {
		select {
		case rosters <- usernames:
		default:
		}
	})
	alice.SetOnMessages(func(messages []model.Message) {
		select {
		case logs <- messages:
		default:
		}
	})
	require.NoError(t, alice.Connect(addr, "alice"))
	t.Cleanup(alice.Close)

	bob := connect(t, addr, "bob")
	require.NoError(t, bob.Send("hey"))

	requireReceive(t, rosters, func(usernames []string) bool {
		return len(usernames) == 2
	}, "roster with both members")
	requireReceive(t, logs, func(messages []model.Message) bool {
		return len(messages) == 1 && messages[0].Content == "hey"
	}, "log with bob's message")
}

func TestEngineCallbacksRegisteredAfterConnect(t *testing.T) {
	srv := startServer(t)
	addr := srv.Addr().String()

	// Register the callback only after Connect, while the engine's
	// event goroutines are already running and processing the joiner's
	// own presence events.
	alice := connect(t, addr, "alice")

	rosters := make(chan []string, 8)
	alice.SetOnRoster(func(usernames []string, count int) {
		select {
		case rosters <- usernames:
		default:
		}
	})

	connect(t, addr, "bob")

	requireReceive(t, rosters, func(usernames []string) bool {
		return len(usernames) == 2
	}, "roster with both members")
}

func TestEngineConnectNoSession(t *testing.T) {
	// Grab a port that nothing listens on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	e := client.NewEngine()
	err = e.Connect(addr, "alice")
	require.ErrorIs(t, err, model.ErrNoSession)
	require.Equal(t, client.StateDisconnected, e.State())
}

func TestEngineDuplicateJoinLeavesDisconnected(t *testing.T) {
	srv := startServer(t)
	addr := srv.Addr().String()

	connect(t, addr, "alice")

	e := client.NewEngine()
	err := e.Connect(addr, "alice")
	require.ErrorIs(t, err, model.ErrDuplicateUsername)
	require.Equal(t, client.StateDisconnected, e.State())
}

func TestEngineDisconnectCallback(t *testing.T) {
	srv := startServer(t)

	disconnected := make(chan string, 1)
	alice := client.NewEngine()
	alice.SetOnDisconnect(func(reason string) {
		select {
		case disconnected <- reason:
		default:
		}
	})
	require.NoError(t, alice.Connect(srv.Addr().String(), "alice"))
	t.Cleanup(alice.Close)

	srv.Shutdown()

	select {
	case <-disconnected:
	case <-time.After(3 * time.Second):
		t.Fatal("OnDisconnect not called after server shutdown")
	}
	require.Equal(t, client.StateDisconnected, alice.State())
}

func requireReceive[T any](t *testing.T, ch <-chan T, match func(T) bool, what string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case v := <-ch:
			if match(v) {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}
