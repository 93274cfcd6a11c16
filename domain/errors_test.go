package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsDomainError(t *testing.T) {
	if !IsDomainError(ErrTaskExhausted, ErrCodeExhausted) {
		t.Fatal("sentinel should match its own code")
	}
	if IsDomainError(ErrTaskExhausted, ErrCodeNotFound) {
		t.Fatal("sentinel matched the wrong code")
	}
	if IsDomainError(errors.New("plain"), ErrCodeInternal) {
		t.Fatal("plain errors carry no domain code")
	}
}

func TestIsDomainError_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", ErrTaskExhausted)
	if !IsDomainError(wrapped, ErrCodeExhausted) {
		t.Fatal("wrapping should preserve the code")
	}

	classified := WrapError(ErrCodeInternal, "storage failure", errors.New("connection reset"))
	if !IsDomainError(classified, ErrCodeInternal) {
		t.Fatal("WrapError should classify the cause")
	}
	if classified.Unwrap() == nil {
		t.Fatal("WrapError should keep the cause")
	}
}

func TestErrorMessage(t *testing.T) {
	err := WrapError(ErrCodeInternal, "append failed", errors.New("timeout"))
	if err.Error() != "append failed: timeout" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	plain := NewError(ErrCodeInvalid, "bad cost")
	if plain.Error() != "bad cost" {
		t.Fatalf("unexpected message: %s", plain.Error())
	}
}
