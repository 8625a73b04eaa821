package usecase

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatchesByKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", wrongCurrentPassword())

	if !errors.Is(err, ErrWrongPassword) {
		t.Fatal("expected errors.Is to match on kind")
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Fatal("different kinds must not match")
	}

	var uerr *Error
	if !errors.As(err, &uerr) || uerr.Message != "Current password is incorrect" {
		t.Fatalf("unexpected error %v", uerr)
	}
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := internalError("", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable")
	}
	if err.Message != ErrInternal.Message {
		t.Fatalf("expected generic message, got %q", err.Message)
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(validationError("email", "Email is required")); got != KindValidation {
		t.Fatalf("expected validation kind, got %s", got)
	}
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Fatalf("expected plain errors to be internal, got %s", got)
	}
}
