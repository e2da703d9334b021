// Package model defines the core domain types for Parley.
package model

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// MaxUsernameLen is the maximum username length in runes.
const MaxUsernameLen = 32

// MaxContentLen is the maximum chat message length in runes.
const MaxContentLen = 2000

// User is a participant in the active session.
type User struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joined_at"`
}

// Message is one chat utterance. Immutable once appended to the log;
// Sequence defines the total order of the log, starting at 1 with no gaps.
type Message struct {
	Username string    `json:"username"`
	Content  string    `json:"content"`
	Sequence uint64    `json:"sequence"`
	SentAt   time.Time `json:"sent_at"`
}

// ValidateUsername checks that a username is non-empty, at most
// MaxUsernameLen runes, and free of control characters. Usernames are
// case-sensitive; uniqueness is enforced by the session registry.
func ValidateUsername(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUsername)
	}
	if utf8.RuneCountInString(name) > MaxUsernameLen {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidUsername, MaxUsernameLen)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character", ErrInvalidUsername)
		}
	}
	return nil
}

// SanitizeContent collapses newlines to spaces, strips other control
// characters, and trims surrounding whitespace from message text.
func SanitizeContent(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(mapped)
}
