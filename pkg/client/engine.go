package client

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/parleychat/parley/pkg/model"
	"github.com/parleychat/parley/pkg/protocol"
)

const keepaliveInterval = 20 * time.Second

// State is the engine connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Engine keeps a local mirror of the session: roster, member count, and
// message log. Pushed events carry no payload, so every event triggers a
// re-query of the relevant snapshot; the mirror therefore converges on
// server state no matter how events and refreshes interleave.
type Engine struct {
	mu      sync.RWMutex
	state   State
	control *ControlClient
	userID  string
	user    string

	usernames []string
	count     int
	messages  []model.Message

	stop     chan struct{}
	stopOnce sync.Once
	closing  bool

	// Callbacks are guarded by mu and fire outside the lock, with
	// copies. Register them through the setters; the event goroutines
	// read them concurrently.
	onRoster     func(usernames []string, count int)
	onMessages   func(messages []model.Message)
	onError      func(err error)
	onDisconnect func(reason string)
}

// NewEngine creates a disconnected Engine.
func NewEngine() *Engine {
	return &Engine{stop: make(chan struct{})}
}

// SetOnRoster registers the roster-changed callback. Safe to call while
// the engine is connected.
func (e *Engine) SetOnRoster(fn func(usernames []string, count int)) {
	e.mu.Lock()
	e.onRoster = fn
	e.mu.Unlock()
}

// SetOnMessages registers the log-changed callback.
func (e *Engine) SetOnMessages(fn func(messages []model.Message)) {
	e.mu.Lock()
	e.onMessages = fn
	e.mu.Unlock()
}

// SetOnError registers the background-refresh error callback.
func (e *Engine) SetOnError(fn func(err error)) {
	e.mu.Lock()
	e.onError = fn
	e.mu.Unlock()
}

// SetOnDisconnect registers the connection-lost callback. It does not
// fire on a local Close.
func (e *Engine) SetOnDisconnect(fn func(reason string)) {
	e.mu.Lock()
	e.onDisconnect = fn
	e.mu.Unlock()
}

// Connect dials addr, joins the session as username, and starts the
// event, keepalive, and disconnect-watch goroutines. The mirror is
// populated eagerly before Connect returns.
func (e *Engine) Connect(addr, username string) error {
	e.mu.Lock()
	if e.state != StateDisconnected {
		e.mu.Unlock()
		return fmt.Errorf("engine: %w", model.ErrAlreadyJoined)
	}
	e.state = StateConnecting
	e.mu.Unlock()

	ctrl, err := Dial(addr)
	if err != nil {
		e.setState(StateDisconnected)
		return err
	}

	resp, err := ctrl.Join(username)
	if err != nil {
		_ = ctrl.Close()
		e.setState(StateDisconnected)
		return err
	}

	e.mu.Lock()
	e.control = ctrl
	e.userID = resp.UserID
	e.user = resp.Username
	e.state = StateConnected
	e.mu.Unlock()

	ctrl.StartReceiving()
	go e.eventLoop(ctrl)
	go e.keepalive(ctrl)
	go e.watchDisconnect(ctrl)

	// Populate the mirror now rather than waiting for the join's own
	// presence events to round-trip.
	if err := e.refreshAll(); err != nil {
		e.reportError(err)
	}

	slog.Info("joined session", "addr", addr, "user", resp.Username, "id", resp.UserID)
	return nil
}

// Send submits a message and eagerly refreshes the log, so the sender
// sees their own message without waiting for an event round-trip.
func (e *Engine) Send(content string) error {
	ctrl := e.controlConn()
	if ctrl == nil {
		return fmt.Errorf("engine: %w", model.ErrNotJoined)
	}
	if _, err := ctrl.Send(content); err != nil {
		return err
	}
	return e.refreshMessages()
}

// Usernames returns a copy of the mirrored roster, in join order.
func (e *Engine) Usernames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.usernames)
}

// Count returns the mirrored member count.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.count
}

// Messages returns a copy of the mirrored log, in sequence order.
func (e *Engine) Messages() []model.Message {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.messages)
}

// Username returns the name this engine joined under.
func (e *Engine) Username() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.user
}

// UserID returns the server-assigned member id.
func (e *Engine) UserID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.userID
}

// State returns the current connection state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Close leaves the session by closing the control connection.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closing = true
	ctrl := e.control
	e.state = StateDisconnected
	e.mu.Unlock()

	e.stopOnce.Do(func() { close(e.stop) })
	if ctrl != nil {
		_ = ctrl.Close()
	}
}

func (e *Engine) eventLoop(ctrl *ControlClient) {
	for {
		select {
		case <-e.stop:
			return
		case env := <-ctrl.Events():
			var err error
			switch {
			case env.NewMessage != nil:
				err = e.refreshMessages()
			case env.UserListUpdated != nil, env.UserCountChanged != nil:
				err = e.refreshRoster()
			}
			if err != nil {
				e.reportError(err)
			}
		}
	}
}

func (e *Engine) keepalive(ctrl *ControlClient) {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			if err := ctrl.Ping(); err != nil {
				// The disconnect watcher handles a dead connection.
				slog.Debug("keepalive failed", "err", err)
			}
		}
	}
}

func (e *Engine) watchDisconnect(ctrl *ControlClient) {
	select {
	case <-e.stop:
		return
	case <-ctrl.Done():
	}

	e.mu.Lock()
	closing := e.closing
	e.state = StateDisconnected
	cb := e.onDisconnect
	e.mu.Unlock()
	e.stopOnce.Do(func() { close(e.stop) })

	if closing {
		return
	}
	slog.Info("connection to session lost")
	if cb != nil {
		cb("connection lost")
	}
}

func (e *Engine) refreshAll() error {
	if err := e.refreshRoster(); err != nil {
		return err
	}
	return e.refreshMessages()
}

// refreshRoster re-queries the roster and count and updates the mirror.
func (e *Engine) refreshRoster() error {
	ctrl := e.controlConn()
	if ctrl == nil {
		return fmt.Errorf("engine: %w", model.ErrNotJoined)
	}

	usernames, err := ctrl.Users()
	if err != nil {
		return err
	}
	count, err := ctrl.Count()
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.usernames = usernames
	e.count = count
	cb := e.onRoster
	e.mu.Unlock()

	if cb != nil {
		cb(slices.Clone(usernames), count)
	}
	return nil
}

// refreshMessages re-queries the full log and updates the mirror.
func (e *Engine) refreshMessages() error {
	ctrl := e.controlConn()
	if ctrl == nil {
		return fmt.Errorf("engine: %w", model.ErrNotJoined)
	}

	wire, err := ctrl.Messages()
	if err != nil {
		return err
	}
	msgs := lo.Map(wire, func(m protocol.MessageInfo, _ int) model.Message {
		return model.Message{
			Username: m.Username,
			Content:  m.Content,
			Sequence: m.Sequence,
			SentAt:   time.Unix(m.SentAt, 0),
		}
	})

	e.mu.Lock()
	e.messages = msgs
	cb := e.onMessages
	e.mu.Unlock()

	if cb != nil {
		cb(slices.Clone(msgs))
	}
	return nil
}

func (e *Engine) controlConn() *ControlClient {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state != StateConnected {
		return nil
	}
	return e.control
}

func (e *Engine) setState(st State) {
	e.mu.Lock()
	e.state = st
	e.mu.Unlock()
}

func (e *Engine) reportError(err error) {
	select {
	case <-e.stop:
		return
	default:
	}
	slog.Debug("refresh failed", "err", err)
	e.mu.RLock()
	cb := e.onError
	e.mu.RUnlock()
	if cb != nil {
		cb(err)
	}
}
