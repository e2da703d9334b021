// Package store holds the in-memory state of the active chat session: the
// registry of joined users and the append-only message log. The server
// dispatcher is the sole writer; all mutation happens under one mutex so
// registry and log updates are linearizable per session, and read-only
// snapshots never observe a mutation in progress.
package store

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parleychat/parley/pkg/model"
)

// Store is the authoritative session state. State lives only for the
// process lifetime; nothing is persisted across restarts.
type Store struct {
	mu sync.RWMutex

	now func() time.Time

	members map[string]*model.User // username -> user, currently joined
	order   []string               // usernames in join order
	authors map[string]struct{}    // every username that ever joined
	log     []model.Message
	nextSeq uint64
}

// New creates a Store using time.Now().UTC().
func New() *Store {
	return NewWithClock(func() time.Time { return time.Now().UTC() })
}

// NewWithClock creates a Store with a custom clock.
func NewWithClock(now func() time.Time) *Store {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Store{
		now:     now,
		members: make(map[string]*model.User),
		authors: make(map[string]struct{}),
	}
}

// Join adds a user to the registry. It fails with model.ErrInvalidUsername
// for an empty or malformed name and with model.ErrDuplicateUsername when
// the name is already present (case-sensitive). Two concurrent joins with
// the same username cannot both succeed.
func (s *Store) Join(username string) (*model.User, error) {
	if err := model.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("store: join: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.members[username]; exists {
		return nil, fmt.Errorf("store: join %q: %w", username, model.ErrDuplicateUsername)
	}

	user := &model.User{
		ID:       uuid.NewString(),
		Username: username,
		JoinedAt: s.now(),
	}
	s.members[username] = user
	s.order = append(s.order, username)
	s.authors[username] = struct{}{}

	copyUser := *user
	return &copyUser, nil
}

// Leave removes a user from the registry. It is idempotent: the returned
// bool reports whether a member was actually removed, and callers must not
// broadcast a presence change when it is false.
func (s *Store) Leave(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.members[username]; !exists {
		return false
	}
	delete(s.members, username)
	if i := slices.Index(s.order, username); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return true
}

// Usernames returns a snapshot of the current members in join order.
func (s *Store) Usernames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// Count returns the current member count.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// Append adds a message to the log. Content is sanitized and trimmed
// before admission; a blank result fails with model.ErrEmptyContent. The
// author must have joined the session at some point (a member who has
// since left may still flush an in-flight message); an unknown author
// fails with model.ErrUnknownAuthor. On success the message gets the next
// sequence number: concurrent appends receive distinct, strictly
// increasing values with no gaps.
func (s *Store) Append(username, content string) (model.Message, error) {
	content = model.SanitizeContent(content)
	if content == "" {
		return model.Message{}, fmt.Errorf("store: append: %w", model.ErrEmptyContent)
	}
	if len([]rune(content)) > model.MaxContentLen {
		content = string([]rune(content)[:model.MaxContentLen])
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.authors[username]; !ok {
		return model.Message{}, fmt.Errorf("store: append from %q: %w", username, model.ErrUnknownAuthor)
	}

	s.nextSeq++
	msg := model.Message{
		Username: username,
		Content:  content,
		Sequence: s.nextSeq,
		SentAt:   s.now(),
	}
	s.log = append(s.log, msg)
	return msg, nil
}

// Messages returns the full log in ascending sequence order. The snapshot
// is a consistent prefix of the true log: no entries missing below the
// highest sequence returned, none out of order.
func (s *Store) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.log)
}
