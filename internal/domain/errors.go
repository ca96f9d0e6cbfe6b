package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by repositories when a document does not exist.
var ErrNotFound = errors.New("not found")

// Error kinds surfaced on the wire and in gateway responses.
const (
	KindValidation        = "validation"
	KindUnknownOperation  = "unknown_operation"
	KindUnknownEvent      = "unknown_event"
	KindTransientStore    = "transient_store"
	KindReferenceNotFound = "reference_not_found"
	KindGatewayTimeout    = "gateway_timeout"
	KindInternal          = "internal"
)

// ValidationError marks malformed or incomplete input. It is never retried:
// the gateway rejects it before publishing, and a handler that raises it
// dead-letters the message on the first attempt.
type ValidationError struct {
	Fields []string
}

func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Fields, "; "))
}

// UnknownOperationError means the gateway has no route for the requested
// operation. Nothing is published.
type UnknownOperationError struct {
	Operation string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation: %s", e.Operation)
}

// UnknownEventError means a consumed message carries an event name no handler
// is registered for. The message is acknowledged and dropped so that rolling
// deploys with an evolving event vocabulary do not wedge the queue.
type UnknownEventError struct {
	Event string
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("unknown event: %s", e.Event)
}

// TransientStoreError wraps a store failure that is expected to heal
// (connection refused, timeout). Messages failing with it are requeued with
// backoff up to the configured attempt limit.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transient store error during %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// ReferenceNotFoundError means a reference attribute did not resolve to an
// existing entity. It is retried a bounded number of times to absorb ordering
// races between related create events, then dead-lettered.
type ReferenceNotFoundError struct {
	Kind string
	ID   string
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("%s %q does not exist", e.Kind, e.ID)
}

// GatewayTimeoutError means no correlated reply arrived within the deadline.
// The original message may still be processed later; retrying is the caller's
// call, not the gateway's.
type GatewayTimeoutError struct {
	Operation string
	Timeout   time.Duration
}

func (e *GatewayTimeoutError) Error() string {
	return fmt.Sprintf("no reply for %s within %s", e.Operation, e.Timeout)
}

// ErrorKind classifies err into one of the Kind constants. Unrecognized
// errors are internal.
func ErrorKind(err error) string {
	var (
		validation *ValidationError
		unknownOp  *UnknownOperationError
		unknownEv  *UnknownEventError
		transient  *TransientStoreError
		reference  *ReferenceNotFoundError
		timeout    *GatewayTimeoutError
	)

	switch {
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &unknownOp):
		return KindUnknownOperation
	case errors.As(err, &unknownEv):
		return KindUnknownEvent
	case errors.As(err, &transient):
		return KindTransientStore
	case errors.As(err, &reference):
		return KindReferenceNotFound
	case errors.As(err, &timeout):
		return KindGatewayTimeout
	default:
		return KindInternal
	}
}

// IsRetryable reports whether err warrants a requeue instead of an immediate
// dead-letter. Reference misses are retryable to absorb create-ordering races.
func IsRetryable(err error) bool {
	switch ErrorKind(err) {
	case KindTransientStore, KindReferenceNotFound, KindGatewayTimeout:
		return true
	default:
		return false
	}
}
