package services_test

import (
	"errors"
	"strings"
	"testing"

	"organ/internal/services"
	"organ/internal/store"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalService, "recognize", "search", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"recognize", "search", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestFailureStatusMapping(t *testing.T) {
	validationErr := services.Wrap(services.ErrValidation, "transfer", "prepare", "invalid", nil)
	if status := services.FailureStatus(validationErr); status != store.JobReview {
		t.Fatalf("expected review for validation error, got %s", status)
	}

	conflictErr := services.Wrap(services.ErrConflict, "transfer", "move", "target exists", nil)
	if status := services.FailureStatus(conflictErr); status != store.JobReview {
		t.Fatalf("expected review for conflict error, got %s", status)
	}

	transientErr := services.Wrap(services.ErrTransient, "transfer", "copy", "copy failed", errors.New("io"))
	if status := services.FailureStatus(transientErr); status != store.JobFailed {
		t.Fatalf("expected failed for transient error, got %s", status)
	}

	if status := services.FailureStatus(nil); status != store.JobFailed {
		t.Fatalf("expected failed for nil error, got %s", status)
	}
}

func TestRetryable(t *testing.T) {
	if !services.Retryable(services.Wrap(services.ErrRateLimited, "recognize", "search", "429", nil)) {
		t.Fatal("rate limited should be retryable")
	}
	if services.Retryable(services.Wrap(services.ErrValidation, "recognize", "parse", "bad", nil)) {
		t.Fatal("validation should not be retryable")
	}
}
