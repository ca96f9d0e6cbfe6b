package contracts

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Event is the message structure for AMQP. Name identifies intent, Payload
// matches the target entity's create/lookup shape. Delivery concerns
// (queue, correlation id, replyTo) travel in AMQP properties, not in the body.
type Event struct {
	Name           string          `json:"name"`
	Payload        json.RawMessage `json:"payload"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
	OccurredAt     time.Time       `json:"occurredAt"`
}

// NewEvent builds an event envelope. When no idempotency key is supplied the
// payload fingerprint stands in, so a byte-identical redelivery dedupes the
// same way a keyed one does.
func NewEvent(name string, payload json.RawMessage, idempotencyKey string) Event {
	if idempotencyKey == "" {
		idempotencyKey = Fingerprint(payload)
	}

	return Event{
		Name:           name,
		Payload:        payload,
		IdempotencyKey: idempotencyKey,
		OccurredAt:     time.Now().UTC(),
	}
}

// Fingerprint derives a content key from a payload.
func Fingerprint(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Reply is the body of a correlated response. Exactly one of Error and Data
// is set.
type Reply struct {
	Error *WireError      `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// WireError carries a classified failure across service boundaries.
type WireError struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Routing keys - commands and queries, using consistent entity.verb patterns
const (
	CommandOrganizationCreate = "organization.create"
	CommandUserCreate         = "user.create"
	CommandStoreCreate        = "store.create"

	QueryOrganizationGet = "organization.get"
	QueryUserGet         = "user.get"
	QueryStoreGet        = "store.get"
)

// Lifecycle events emitted after a successful mutation
const (
	EventOrganizationCreated = "organization.created"
	EventUserCreated         = "user.created"
	EventStoreCreated        = "store.created"
)

// Known reports whether name belongs to the event vocabulary. Handler
// registration checks it so a typo fails at startup, not at dispatch.
func Known(name string) bool {
	switch name {
	case CommandOrganizationCreate, CommandUserCreate, CommandStoreCreate,
		QueryOrganizationGet, QueryUserGet, QueryStoreGet,
		EventOrganizationCreated, EventUserCreated, EventStoreCreated:
		return true
	}
	return false
}
