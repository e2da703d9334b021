package model

import "errors"

// Sentinel errors for the session core. Callers classify failures with
// errors.Is; the wire protocol carries them as numeric codes (see Code and
// FromCode) so a client can reconstruct the same sentinel on its side.
var (
	// Validation
	ErrInvalidUsername = errors.New("invalid username")
	ErrEmptyContent    = errors.New("empty message content")

	// Conflict
	ErrDuplicateUsername = errors.New("username already taken")
	ErrAlreadyHosting    = errors.New("already hosting a session")

	// Not found
	ErrUnknownAuthor = errors.New("unknown author")
	ErrNoSession     = errors.New("no session at address")

	// Connection state
	ErrNotJoined     = errors.New("not joined")
	ErrAlreadyJoined = errors.New("already joined")
)

// Wire codes for the error taxonomy. Grouped by tens: 1x validation,
// 2x conflict, 3x not found, 4x connection state.
const (
	CodeInvalidUsername   int32 = 10
	CodeEmptyContent      int32 = 11
	CodeDuplicateUsername int32 = 20
	CodeAlreadyHosting    int32 = 21
	CodeUnknownAuthor     int32 = 30
	CodeNoSession         int32 = 31
	CodeNotJoined         int32 = 40
	CodeAlreadyJoined     int32 = 41
	CodeInternal          int32 = 99
)

// Code maps an error to its wire code. Unrecognized errors map to
// CodeInternal.
func Code(err error) int32 {
	switch {
	case errors.Is(err, ErrInvalidUsername):
		return CodeInvalidUsername
	case errors.Is(err, ErrEmptyContent):
		return CodeEmptyContent
	case errors.Is(err, ErrDuplicateUsername):
		return CodeDuplicateUsername
	case errors.Is(err, ErrAlreadyHosting):
		return CodeAlreadyHosting
	case errors.Is(err, ErrUnknownAuthor):
		return CodeUnknownAuthor
	case errors.Is(err, ErrNoSession):
		return CodeNoSession
	case errors.Is(err, ErrNotJoined):
		return CodeNotJoined
	case errors.Is(err, ErrAlreadyJoined):
		return CodeAlreadyJoined
	default:
		return CodeInternal
	}
}

// FromCode maps a wire code back to its sentinel error. Unrecognized codes
// return nil so the caller can fall back to the transported message text.
func FromCode(code int32) error {
	switch code {
	case CodeInvalidUsername:
		return ErrInvalidUsername
	case CodeEmptyContent:
		return ErrEmptyContent
	case CodeDuplicateUsername:
		return ErrDuplicateUsername
	case CodeAlreadyHosting:
		return ErrAlreadyHosting
	case CodeUnknownAuthor:
		return ErrUnknownAuthor
	case CodeNoSession:
		return ErrNoSession
	case CodeNotJoined:
		return ErrNotJoined
	case CodeAlreadyJoined:
		return ErrAlreadyJoined
	default:
		return nil
	}
}
