package domain

import "testing"

func TestNewOrganizationTrimsAndValidates(t *testing.T) {
	org, err := NewOrganization("  Acme  ", " widgets ", "key-1")
	if err != nil {
		t.Fatalf("new organization: %v", err)
	}
	if org.Name != "Acme" || org.Description != "widgets" {
		t.Fatalf("fields not trimmed: %+v", org)
	}
	if org.ID == "" || org.CreatedAt.IsZero() {
		t.Fatalf("identity fields missing: %+v", org)
	}
	if org.IdempotencyKey != "key-1" {
		t.Fatalf("idempotency key lost: %q", org.IdempotencyKey)
	}

	if _, err := NewOrganization("   ", "", ""); err == nil {
		t.Fatal("expected blank name to be rejected")
	}
}

func TestNewUserNormalizesAndValidates(t *testing.T) {
	user, err := NewUser("Jo@Acme.IO", " Jo ", "org-1", "key-1")
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	if user.Email != "jo@acme.io" {
		t.Fatalf("email not normalized: %q", user.Email)
	}
	if user.Name != "Jo" {
		t.Fatalf("name not trimmed: %q", user.Name)
	}

	if _, err := NewUser("not-an-email", "Jo", "org-1", ""); err == nil {
		t.Fatal("expected invalid email to be rejected")
	}
	if _, err := NewUser("jo@acme.io", "Jo", "", ""); err == nil {
		t.Fatal("expected missing organization reference to be rejected")
	}
}

func TestNewStoreRequiresOwner(t *testing.T) {
	store, err := NewStore("Corner Shop", "u-1", "", "key-1")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if store.OwnerID != "u-1" {
		t.Fatalf("owner lost: %+v", store)
	}

	if _, err := NewStore("Corner Shop", "", "", ""); err == nil {
		t.Fatal("expected missing owner reference to be rejected")
	}
}
