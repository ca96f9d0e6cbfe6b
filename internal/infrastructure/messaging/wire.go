package messaging

import (
	"errors"
	"time"

	"github.com/emporion-io/emporion/internal/domain"
	"github.com/emporion-io/emporion/internal/infrastructure/contracts"
)

// WireFromError flattens a classified error for a reply body.
func WireFromError(err error) *contracts.WireError {
	we := &contracts.WireError{
		Kind:    domain.ErrorKind(err),
		Message: err.Error(),
	}

	var reference *domain.ReferenceNotFoundError
	if errors.As(err, &reference) {
		we.Details = map[string]any{
			"kind": reference.Kind,
			"id":   reference.ID,
		}
	}

	return we
}

// ErrorFromWire reconstructs a typed error from a reply body so callers can
// classify downstream failures with errors.As, same as local ones.
func ErrorFromWire(we *contracts.WireError) error {
	if we == nil {
		return nil
	}

	switch we.Kind {
	case domain.KindValidation:
		return domain.NewValidationError(we.Message)
	case domain.KindReferenceNotFound:
		ref := &domain.ReferenceNotFoundError{}
		if kind, ok := we.Details["kind"].(string); ok {
			ref.Kind = kind
		}
		if id, ok := we.Details["id"].(string); ok {
			ref.ID = id
		}
		return ref
	case domain.KindTransientStore:
		return &domain.TransientStoreError{Op: "remote", Err: errors.New(we.Message)}
	case domain.KindUnknownOperation:
		return &domain.UnknownOperationError{Operation: we.Message}
	case domain.KindUnknownEvent:
		return &domain.UnknownEventError{Event: we.Message}
	case domain.KindGatewayTimeout:
		return &domain.GatewayTimeoutError{Operation: we.Message, Timeout: time.Duration(0)}
	default:
		return errors.New(we.Message)
	}
}
