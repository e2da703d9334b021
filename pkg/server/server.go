// Package server implements the Parley session host: the TCP control
// listener, the command dispatcher that is the sole writer of session
// state, and the event broadcaster that fans out presence and message
// notifications to every joined connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/parleychat/parley/pkg/model"
	"github.com/parleychat/parley/pkg/store"
)

// Server hosts the single chat session of this process.
type Server struct {
	cfg     Config
	store   *store.Store
	metrics *Metrics

	ln      net.Listener
	mu      sync.RWMutex
	peers   map[string]*peer // user id -> joined connection
	started atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Server. The session itself does not exist until Start.
func New(cfg Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		store:   store.New(),
		metrics: NewMetrics(),
		peers:   make(map[string]*peer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Store exposes the session state for in-process callers (tests, the
// host flow). All external mutation still goes through the dispatcher.
func (s *Server) Store() *store.Store {
	return s.store
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Addr returns the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Start opens the listener and begins accepting connections. It is a
// one-shot transition: a second Start in this process fails with
// model.ErrAlreadyHosting, as does binding a port another process
// already occupies.
func (s *Server) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("server: start: %w", model.ErrAlreadyHosting)
	}

	ln, err := net.Listen("tcp", s.cfg.Bind)
	if err != nil {
		s.started.Store(false)
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("server: listen %s: %w: %v", s.cfg.Bind, model.ErrAlreadyHosting, err)
		}
		return fmt.Errorf("server: listen %s: %w", s.cfg.Bind, err)
	}
	s.ln = ln

	slog.Info("session hosted", "bind", ln.Addr().String())
	go s.acceptLoop()
	return nil
}

// Shutdown stops the listener and closes every live connection.
func (s *Server) Shutdown() {
	s.cancel()
	if s.ln != nil {
		_ = s.ln.Close()
	}

	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		_ = p.conn.Close()
	}
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				slog.Error("accept error", "err", err)
				continue
			}
		}
		go s.handleConn(conn)
	}
}

func (s *Server) addPeer(p *peer) {
	s.mu.Lock()
	s.peers[p.user.ID] = p
	s.mu.Unlock()
}

func (s *Server) removePeer(userID string) {
	s.mu.Lock()
	delete(s.peers, userID)
	s.mu.Unlock()
}
