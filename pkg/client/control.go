// Package client implements the Parley client networking: the control
// connection and the synchronization shim that mirrors server state.
package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/parleychat/parley/pkg/model"
	"github.com/parleychat/parley/pkg/protocol"
)

const (
	dialTimeout    = 5 * time.Second
	requestTimeout = 10 * time.Second
	eventBuffer    = 32
)

// ControlClient manages the TCP control connection. Commands are
// serialized (one outstanding request at a time); the receive loop routes
// response frames to the waiting caller and pushed events to a buffered
// channel, so a query issued from the event consumer can never deadlock
// against its own response.
type ControlClient struct {
	conn    net.Conn
	writeMu sync.Mutex // one frame on the wire at a time
	reqMu   sync.Mutex // one outstanding request at a time

	// RequestTimeout bounds the join handshake and every request round
	// trip. Set before issuing any command; defaults to 10s.
	RequestTimeout time.Duration

	pending chan *protocol.Envelope
	events  chan *protocol.Envelope
	done    chan struct{}

	closeOnce sync.Once
}

// Dial connects to a session host. A refused or timed-out connection
// means nothing is listening there: the error wraps model.ErrNoSession.
func Dial(addr string) (*ControlClient, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("client: connect %s: %w", addr, errors.Join(model.ErrNoSession, err))
	}
	return &ControlClient{
		conn:           conn,
		RequestTimeout: requestTimeout,
		pending:        make(chan *protocol.Envelope, 1),
		events:         make(chan *protocol.Envelope, eventBuffer),
		done:           make(chan struct{}),
	}, nil
}

// Join performs the join handshake. It must be called once, before
// StartReceiving; the handshake reads the connection directly.
func (c *ControlClient) Join(username string) (*protocol.JoinResponse, error) {
	if err := c.write(&protocol.Envelope{JoinRequest: &protocol.JoinRequest{Username: username}}); err != nil {
		return nil, fmt.Errorf("client: send join: %w", err)
	}

	// A host that accepts but never replies must not hang the caller;
	// the handshake read gets the same bound as any request.
	_ = c.conn.SetReadDeadline(time.Now().Add(c.RequestTimeout))
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()

	for {
		env, err := protocol.ReadEnvelope(c.conn)
		if err != nil {
			return nil, fmt.Errorf("client: read join response: %w", err)
		}
		// An event from another member's concurrent join may land ahead
		// of our response; the eager refresh after joining covers it.
		if env.IsEvent() {
			continue
		}
		if env.ErrorResponse != nil {
			return nil, responseError(env.ErrorResponse)
		}
		if env.JoinResponse == nil {
			return nil, fmt.Errorf("client: unexpected response to join")
		}
		return env.JoinResponse, nil
	}
}

// StartReceiving starts the receive loop. Pushed events are delivered to
// Events; response frames are handed to the caller waiting in request.
func (c *ControlClient) StartReceiving() {
	go func() {
		defer close(c.done)
		for {
			env, err := protocol.ReadEnvelope(c.conn)
			if err != nil {
				slog.Debug("control connection closed", "err", err)
				return
			}
			if env.IsEvent() {
				c.deliverEvent(env)
				continue
			}
			select {
			case c.pending <- env:
			default:
				// Nobody waiting (a timed-out request); drop it.
			}
		}
	}()
}

// deliverEvent queues an event for the consumer. Events carry no state,
// only "something changed": when the buffer is full the oldest hint is
// dropped, because whichever refresh eventually runs re-queries the
// latest snapshot and staleness self-heals.
func (c *ControlClient) deliverEvent(env *protocol.Envelope) {
	select {
	case c.events <- env:
		return
	default:
	}
	select {
	case <-c.events:
	default:
	}
	select {
	case c.events <- env:
	default:
	}
}

func (c *ControlClient) write(env *protocol.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.RequestTimeout))
	return protocol.WriteEnvelope(c.conn, env)
}

// request sends one command and suspends the caller until its response,
// an error, or the liveness bound.
func (c *ControlClient) request(env *protocol.Envelope) (*protocol.Envelope, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	// Drop a stale response left behind by a timed-out predecessor.
	select {
	case <-c.pending:
	default:
	}

	if err := c.write(env); err != nil {
		return nil, fmt.Errorf("client: send request: %w", err)
	}

	select {
	case resp := <-c.pending:
		if resp.ErrorResponse != nil {
			return nil, responseError(resp.ErrorResponse)
		}
		return resp, nil
	case <-c.done:
		return nil, fmt.Errorf("client: connection closed")
	case <-time.After(c.RequestTimeout):
		return nil, fmt.Errorf("client: request timed out")
	}
}

// Send submits a chat message and returns the stored message.
func (c *ControlClient) Send(content string) (protocol.MessageInfo, error) {
	resp, err := c.request(&protocol.Envelope{SendRequest: &protocol.SendRequest{Content: content}})
	if err != nil {
		return protocol.MessageInfo{}, err
	}
	if resp.SendResponse == nil {
		return protocol.MessageInfo{}, fmt.Errorf("client: unexpected response to send")
	}
	return resp.SendResponse.Message, nil
}

// Users returns the roster snapshot in join order.
func (c *ControlClient) Users() ([]string, error) {
	resp, err := c.request(&protocol.Envelope{UserListRequest: &protocol.UserListRequest{}})
	if err != nil {
		return nil, err
	}
	if resp.UserListResponse == nil {
		return nil, fmt.Errorf("client: unexpected response to user list")
	}
	return resp.UserListResponse.Usernames, nil
}

// Count returns the current member count.
func (c *ControlClient) Count() (int, error) {
	resp, err := c.request(&protocol.Envelope{UserCountRequest: &protocol.UserCountRequest{}})
	if err != nil {
		return 0, err
	}
	if resp.UserCountResponse == nil {
		return 0, fmt.Errorf("client: unexpected response to user count")
	}
	return resp.UserCountResponse.Count, nil
}

// Messages returns the full log snapshot in ascending sequence order.
func (c *ControlClient) Messages() ([]protocol.MessageInfo, error) {
	resp, err := c.request(&protocol.Envelope{MessageLogRequest: &protocol.MessageLogRequest{}})
	if err != nil {
		return nil, err
	}
	if resp.MessageLogResponse == nil {
		return nil, fmt.Errorf("client: unexpected response to message log")
	}
	return resp.MessageLogResponse.Messages, nil
}

// Ping round-trips a keepalive frame.
func (c *ControlClient) Ping() error {
	resp, err := c.request(&protocol.Envelope{Ping: &protocol.Ping{Timestamp: time.Now().Unix()}})
	if err != nil {
		return err
	}
	if resp.Pong == nil {
		return fmt.Errorf("client: unexpected response to ping")
	}
	return nil
}

// Events returns the pushed-event channel.
func (c *ControlClient) Events() <-chan *protocol.Envelope {
	return c.events
}

// Done returns a channel closed when the connection is lost.
func (c *ControlClient) Done() <-chan struct{} {
	return c.done
}

// Close closes the control connection.
func (c *ControlClient) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.conn.Close() })
	return err
}

func responseError(er *protocol.ErrorResponse) error {
	if sentinel := model.FromCode(er.Code); sentinel != nil {
		return fmt.Errorf("client: %w", sentinel)
	}
	return fmt.Errorf("client: server error %d: %s", er.Code, er.Message)
}
