package model_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/parleychat/parley/pkg/model"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "alice", false},
		{"unicode", "ål1cé", false},
		{"inner space", "alice b", false},
		{"max length", strings.Repeat("a", model.MaxUsernameLen), false},
		{"empty", "", true},
		{"spaces only", "   ", true},
		{"too long", strings.Repeat("a", model.MaxUsernameLen+1), true},
		{"tab", "a\tb", true},
		{"newline", "a\nb", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := model.ValidateUsername(tt.input)
			if tt.wantErr {
				if !errors.Is(err, model.ErrInvalidUsername) {
					t.Errorf("ValidateUsername(%q) = %v, want ErrInvalidUsername", tt.input, err)
				}
			} else if err != nil {
				t.Errorf("ValidateUsername(%q) = %v, want nil", tt.input, err)
			}
		})
	}
}

func TestSanitizeContent(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello", "hello"},
		{"trims", "  hello  ", "hello"},
		{"newlines to spaces", "hello\nworld", "hello world"},
		{"crlf", "hello\r\nworld", "hello  world"},
		{"strips control", "he\x00llo", "hello"},
		{"blank", " \n\t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := model.SanitizeContent(tt.input); got != tt.want {
				t.Errorf("SanitizeContent(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestErrorCodeRoundTrip(t *testing.T) {
	sentinels := []error{
		model.ErrInvalidUsername,
		model.ErrEmptyContent,
		model.ErrDuplicateUsername,
		model.ErrAlreadyHosting,
		model.ErrUnknownAuthor,
		model.ErrNoSession,
		model.ErrNotJoined,
		model.ErrAlreadyJoined,
	}

	seen := make(map[int32]bool)
	for _, sentinel := range sentinels {
		code := model.Code(sentinel)
		if seen[code] {
			t.Errorf("code %d assigned to more than one sentinel", code)
		}
		seen[code] = true

		back := model.FromCode(code)
		if !errors.Is(back, sentinel) {
			t.Errorf("FromCode(Code(%v)) = %v", sentinel, back)
		}
	}
}

func TestErrorCodeWrapped(t *testing.T) {
	wrapped := errors.Join(errors.New("store: join"), model.ErrDuplicateUsername)
	if got := model.Code(wrapped); got != model.CodeDuplicateUsername {
		t.Errorf("Code(wrapped) = %d, want %d", got, model.CodeDuplicateUsername)
	}
}

func TestErrorCodeUnknown(t *testing.T) {
	if got := model.Code(errors.New("boom")); got != model.CodeInternal {
		t.Errorf("Code(unknown) = %d, want %d", got, model.CodeInternal)
	}
	if got := model.FromCode(model.CodeInternal); got != nil {
		t.Errorf("FromCode(CodeInternal) = %v, want nil", got)
	}
	if got := model.FromCode(12345); got != nil {
		t.Errorf("FromCode(12345) = %v, want nil", got)
	}
}
