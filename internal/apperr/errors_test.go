package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", NotFound("channel %s not found", "ch-1"), KindNotFound},
		{"unauthorized", Unauthorized("bad key"), KindUnauthorized},
		{"invalid", InvalidInput("temperature is required"), KindInvalidInput},
		{"internal", Internal("storing feed", errors.New("disk full")), KindInternal},
		{"wrapped", fmt.Errorf("ingest: %w", NotFound("gone")), KindNotFound},
		{"plain", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSentinels(t *testing.T) {
	err := fmt.Errorf("verify: %w", Unauthorized("write key mismatch"))

	if !errors.Is(err, ErrUnauthorized) {
		t.Error("errors.Is(err, ErrUnauthorized) = false, want true")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("errors.Is(err, ErrNotFound) = true, want false")
	}
	// Two distinct messages of the same kind are not equal to each other.
	if errors.Is(NotFound("a"), NotFound("b")) {
		t.Error("errors.Is matched two different messages")
	}
}

func TestMessageOf(t *testing.T) {
	cause := errors.New("sqlite: database is locked")
	err := Internal("failed to store feed", cause)

	if got := MessageOf(err); got != "failed to store feed" {
		t.Errorf("MessageOf() = %q, want %q", got, "failed to store feed")
	}
	if !errors.Is(err, cause) {
		t.Error("Internal() does not unwrap to its cause")
	}
	if got := MessageOf(cause); got != "internal error" {
		t.Errorf("MessageOf(plain) = %q, want generic message", got)
	}
}

func TestKindString(t *testing.T) {
	for kind, want := range map[Kind]string{
		KindInternal:     "internal",
		KindNotFound:     "not_found",
		KindUnauthorized: "unauthorized",
		KindInvalidInput: "invalid_input",
	} {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
