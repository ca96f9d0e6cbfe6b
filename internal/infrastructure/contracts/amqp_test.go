package contracts

import (
	"encoding/json"
	"testing"
)

func TestNewEventDerivesKeyFromPayload(t *testing.T) {
	payload := json.RawMessage(`{"name":"Acme"}`)

	keyed := NewEvent(CommandOrganizationCreate, payload, "caller-key")
	if keyed.IdempotencyKey != "caller-key" {
		t.Fatalf("caller key overridden: %q", keyed.IdempotencyKey)
	}

	derived := NewEvent(CommandOrganizationCreate, payload, "")
	if derived.IdempotencyKey != Fingerprint(payload) {
		t.Fatalf("expected payload fingerprint, got %q", derived.IdempotencyKey)
	}

	// Byte-identical payloads dedupe the same way keyed ones do.
	again := NewEvent(CommandOrganizationCreate, payload, "")
	if again.IdempotencyKey != derived.IdempotencyKey {
		t.Fatal("fingerprint is not stable across deliveries")
	}

	other := NewEvent(CommandOrganizationCreate, json.RawMessage(`{"name":"Other"}`), "")
	if other.IdempotencyKey == derived.IdempotencyKey {
		t.Fatal("distinct payloads must not collide")
	}
}

func TestKnownCoversTheWholeVocabulary(t *testing.T) {
	for _, name := range []string{
		CommandOrganizationCreate, CommandUserCreate, CommandStoreCreate,
		QueryOrganizationGet, QueryUserGet, QueryStoreGet,
		EventOrganizationCreated, EventUserCreated, EventStoreCreated,
	} {
		if !Known(name) {
			t.Fatalf("%s should be known", name)
		}
	}

	for _, name := range []string{"", "organization", "organization.delete", "product.create"} {
		if Known(name) {
			t.Fatalf("%s should not be known", name)
		}
	}
}
