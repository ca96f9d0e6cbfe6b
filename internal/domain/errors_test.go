package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestErrorKindClassification(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{NewValidationError("name is required"), KindValidation},
		{&UnknownOperationError{Operation: "launch_rocket"}, KindUnknownOperation},
		{&UnknownEventError{Event: "rocket.launched"}, KindUnknownEvent},
		{&TransientStoreError{Op: "insert", Err: errors.New("down")}, KindTransientStore},
		{&ReferenceNotFoundError{Kind: "user", ID: "u-1"}, KindReferenceNotFound},
		{&GatewayTimeoutError{Operation: "get_user", Timeout: time.Second}, KindGatewayTimeout},
		{errors.New("anything else"), KindInternal},
	}

	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.kind {
			t.Fatalf("expected %s, got %s for %v", tc.kind, got, tc.err)
		}
	}
}

func TestErrorKindSeesThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("handling user.create: %w", &TransientStoreError{Op: "insert", Err: errors.New("down")})
	if got := ErrorKind(wrapped); got != KindTransientStore {
		t.Fatalf("wrapping hid the kind: %s", got)
	}
	if !IsRetryable(wrapped) {
		t.Fatal("wrapped transient error should stay retryable")
	}
}

func TestIsRetryableBoundary(t *testing.T) {
	if IsRetryable(NewValidationError("bad input")) {
		t.Fatal("validation must never be retried")
	}
	if IsRetryable(&UnknownOperationError{Operation: "x"}) {
		t.Fatal("unknown operations must never be retried")
	}
	if !IsRetryable(&ReferenceNotFoundError{Kind: "organization", ID: "org-1"}) {
		t.Fatal("reference misses absorb ordering races via retries")
	}
}
