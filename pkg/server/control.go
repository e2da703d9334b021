package server

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/parleychat/parley/pkg/model"
	"github.com/parleychat/parley/pkg/protocol"
)

// peer is a joined connection. Writes are serialized through mu because
// the connection's own handler and broadcasts from other handlers both
// push frames to it.
type peer struct {
	conn net.Conn
	mu   sync.Mutex
	user model.User
}

func (p *peer) send(env *protocol.Envelope, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if timeout > 0 {
		_ = p.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	return protocol.WriteEnvelope(p.conn, env)
}

func (p *peer) sendError(err error, timeout time.Duration) {
	_ = p.send(&protocol.Envelope{
		ErrorResponse: &protocol.ErrorResponse{Code: model.Code(err), Message: err.Error()},
	}, timeout)
}

// handleConn owns one connection's lifecycle: join handshake, dispatch
// loop, and the unconditional leave on the way out.
func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	remote := conn.RemoteAddr().String()
	s.metrics.incr(metricConnsAccepted, 1)
	s.metrics.incr(metricConnsActive, 1)
	defer s.metrics.decr(metricConnsActive, 1)
	slog.Debug("client connected", "remote", remote)

	// First frame must be a join request.
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.JoinTimeout.Std()))
	env, err := protocol.ReadEnvelope(conn)
	if err != nil {
		slog.Debug("handshake read failed", "remote", remote, "err", err)
		return
	}
	if env.JoinRequest == nil {
		sendErrorRaw(conn, model.ErrNotJoined, "first frame must be join_request")
		return
	}

	user, err := s.store.Join(env.JoinRequest.Username)
	if err != nil {
		s.metrics.incr(metricJoinsRejected, 1)
		slog.Info("join rejected", "username", env.JoinRequest.Username, "remote", remote, "err", err)
		sendErrorRaw(conn, err, err.Error())
		return
	}
	s.metrics.incr(metricJoinsAccepted, 1)

	p := &peer{conn: conn, user: *user}
	s.addPeer(p)
	defer func() {
		s.removePeer(p.user.ID)
		// Leave is idempotent; broadcast only when a member was removed.
		if s.store.Leave(p.user.Username) {
			slog.Info("client left", "user", p.user.Username, "remote", remote)
			s.broadcastPresence()
		}
	}()

	if err := p.send(&protocol.Envelope{
		JoinResponse: &protocol.JoinResponse{UserID: user.ID, Username: user.Username},
	}, s.cfg.WriteTimeout.Std()); err != nil {
		slog.Debug("join response write failed", "user", user.Username, "err", err)
		return
	}
	slog.Info("client joined", "user", user.Username, "id", user.ID, "remote", remote)
	s.broadcastPresence()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		if s.cfg.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout.Std()))
		}
		env, err := protocol.ReadEnvelope(conn)
		if err != nil {
			logDisconnect(p.user.Username, err)
			return
		}
		s.handleEnvelope(p, env)
	}
}

// handleEnvelope dispatches one request frame from a joined connection.
// Every request gets a determinate response; nothing is swallowed.
func (s *Server) handleEnvelope(p *peer, env *protocol.Envelope) {
	timeout := s.cfg.WriteTimeout.Std()

	switch {
	case env.JoinRequest != nil:
		p.sendError(model.ErrAlreadyJoined, timeout)

	case env.SendRequest != nil:
		msg, err := s.store.Append(p.user.Username, env.SendRequest.Content)
		if err != nil {
			s.metrics.incr(metricMessagesRejected, 1)
			p.sendError(err, timeout)
			return
		}
		s.metrics.incr(metricMessagesAppended, 1)
		_ = p.send(&protocol.Envelope{SendResponse: &protocol.SendResponse{Message: toWire(msg)}}, timeout)
		s.broadcast(&protocol.Envelope{NewMessage: &protocol.NewMessageEvent{}})

	case env.UserListRequest != nil:
		_ = p.send(&protocol.Envelope{
			UserListResponse: &protocol.UserListResponse{Usernames: s.store.Usernames()},
		}, timeout)

	case env.UserCountRequest != nil:
		_ = p.send(&protocol.Envelope{
			UserCountResponse: &protocol.UserCountResponse{Count: s.store.Count()},
		}, timeout)

	case env.MessageLogRequest != nil:
		msgs := lo.Map(s.store.Messages(), func(m model.Message, _ int) protocol.MessageInfo {
			return toWire(m)
		})
		_ = p.send(&protocol.Envelope{
			MessageLogResponse: &protocol.MessageLogResponse{Messages: msgs},
		}, timeout)

	case env.Ping != nil:
		_ = p.send(&protocol.Envelope{Pong: &protocol.Pong{Timestamp: env.Ping.Timestamp}}, timeout)

	default:
		p.sendError(errors.New("unrecognized request"), timeout)
	}
}

// broadcastPresence pushes both presence events to every joined
// connection.
func (s *Server) broadcastPresence() {
	s.broadcast(&protocol.Envelope{UserListUpdated: &protocol.UserListUpdatedEvent{}})
	s.broadcast(&protocol.Envelope{UserCountChanged: &protocol.UserCountChangedEvent{}})
}

// broadcast pushes one event to all joined connections, the originator of
// the change included: events carry no payload, so every member runs the
// same refresh regardless of origin. Delivery is best-effort per
// connection: a failed push closes that peer's conn, and its handler runs
// the normal leave cleanup.
func (s *Server) broadcast(env *protocol.Envelope) {
	s.mu.RLock()
	peers := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.RUnlock()

	for _, p := range peers {
		if err := p.send(env, s.cfg.WriteTimeout.Std()); err != nil {
			s.metrics.incr(metricEventsFailed, 1)
			slog.Warn("event push failed, reclaiming peer", "user", p.user.Username, "err", err)
			// Drop the peer now so later broadcasts skip it; its handler
			// still runs the leave cleanup when the closed conn unblocks
			// its read.
			s.removePeer(p.user.ID)
			_ = p.conn.Close()
			continue
		}
		s.metrics.incr(metricEventsPushed, 1)
	}
}

func toWire(m model.Message) protocol.MessageInfo {
	return protocol.MessageInfo{
		Username: m.Username,
		Content:  m.Content,
		Sequence: m.Sequence,
		SentAt:   m.SentAt.Unix(),
	}
}

func sendErrorRaw(conn net.Conn, err error, msg string) {
	_ = protocol.WriteEnvelope(conn, &protocol.Envelope{
		ErrorResponse: &protocol.ErrorResponse{Code: model.Code(err), Message: msg},
	})
}

func logDisconnect(username string, err error) {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), isClosedErr(err):
		slog.Debug("client disconnected", "user", username)
	case errors.Is(err, os.ErrDeadlineExceeded):
		slog.Info("client idle timeout, reclaiming", "user", username)
	default:
		slog.Debug("read error", "user", username, "err", err)
	}
}

func isClosedErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "use of closed network connection") ||
		strings.Contains(s, "connection reset by peer") ||
		strings.Contains(s, "broken pipe")
}
