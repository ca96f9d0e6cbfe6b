package user

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/emporion-io/emporion/internal/domain"
	"github.com/emporion-io/emporion/internal/infrastructure/contracts"
	"github.com/emporion-io/emporion/internal/infrastructure/logging"
	"github.com/emporion-io/emporion/internal/infrastructure/messaging"
)

type memoryUsers struct {
	mu    sync.Mutex
	byID  map[string]*domain.User
	byKey map[string]*domain.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{
		byID:  make(map[string]*domain.User),
		byKey: make(map[string]*domain.User),
	}
}

func (m *memoryUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byKey[user.IdempotencyKey]; exists {
		return nil
	}
	m.byID[user.ID] = user
	m.byKey[user.IdempotencyKey] = user
	return nil
}

func (m *memoryUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func (m *memoryUsers) FindByIdempotencyKey(_ context.Context, key string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byKey[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func (m *memoryUsers) EnsureIndexes(context.Context) error { return nil }

type capturePublisher struct {
	mu     sync.Mutex
	events []contracts.Event
}

func (c *capturePublisher) PublishMessage(_ context.Context, _, _ string, event contracts.Event, _ messaging.PublishOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

// scriptedRequester answers reference queries from a canned script, one reply
// per call, so tests can model an ordering race that resolves itself.
type scriptedRequester struct {
	replies []contracts.Reply
	errs    []error
	calls   int
}

func (s *scriptedRequester) Request(context.Context, string, string, contracts.Event, time.Duration) (contracts.Reply, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return contracts.Reply{}, s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return contracts.Reply{Data: json.RawMessage(`{}`)}, nil
}

func organizationFound() contracts.Reply {
	return contracts.Reply{Data: json.RawMessage(`{"id":"org-1","name":"Acme"}`)}
}

func organizationMissing(id string) contracts.Reply {
	miss := &domain.ReferenceNotFoundError{Kind: "organization", ID: id}
	return contracts.Reply{Error: messaging.WireFromError(miss)}
}

func createUserEvent(t *testing.T, orgID, key string) contracts.Event {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"email":          "jo@acme.io",
		"name":           "Jo",
		"organizationId": orgID,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return contracts.NewEvent(contracts.CommandUserCreate, body, key)
}

func TestHandleCreateVerifiesOrganizationThenPersists(t *testing.T) {
	repo := newMemoryUsers()
	publisher := &capturePublisher{}
	requester := &scriptedRequester{replies: []contracts.Reply{organizationFound()}}
	svc := NewService(repo, publisher, requester, time.Second, logging.NewNop())

	reply, err := svc.HandleCreate(context.Background(), createUserEvent(t, "org-1", "key-1"))
	if err != nil {
		t.Fatalf("handle create: %v", err)
	}

	var user domain.User
	if err := json.Unmarshal(reply.Data, &user); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if user.OrganizationID != "org-1" {
		t.Fatalf("unexpected entity: %+v", user)
	}
	if user.Email != "jo@acme.io" {
		t.Fatalf("email not normalized: %q", user.Email)
	}

	if requester.calls != 1 {
		t.Fatalf("expected one reference query, got %d", requester.calls)
	}
	if len(publisher.events) != 1 || publisher.events[0].Name != contracts.EventUserCreated {
		t.Fatalf("expected user.created lifecycle event, got %+v", publisher.events)
	}
}

func TestHandleCreateMissingOrganizationIsRetryable(t *testing.T) {
	repo := newMemoryUsers()
	requester := &scriptedRequester{replies: []contracts.Reply{organizationMissing("org-9")}}
	svc := NewService(repo, &capturePublisher{}, requester, time.Second, logging.NewNop())

	_, err := svc.HandleCreate(context.Background(), createUserEvent(t, "org-9", "key-1"))

	var reference *domain.ReferenceNotFoundError
	if !errors.As(err, &reference) {
		t.Fatalf("expected ReferenceNotFoundError, got %v", err)
	}
	if !domain.IsRetryable(err) {
		t.Fatal("a reference miss must be retryable to absorb create-ordering races")
	}
	if len(repo.byID) != 0 {
		t.Fatal("nothing may be persisted when the reference fails to resolve")
	}
}

func TestHandleCreateRetryAfterRaceSucceeds(t *testing.T) {
	// First delivery: the organization's create event has not been processed
	// yet. Redelivery: it has.
	repo := newMemoryUsers()
	requester := &scriptedRequester{replies: []contracts.Reply{
		organizationMissing("org-1"),
		organizationFound(),
	}}
	svc := NewService(repo, &capturePublisher{}, requester, time.Second, logging.NewNop())

	event := createUserEvent(t, "org-1", "key-1")

	if _, err := svc.HandleCreate(context.Background(), event); !domain.IsRetryable(err) {
		t.Fatalf("first delivery should fail retryably, got %v", err)
	}
	if _, err := svc.HandleCreate(context.Background(), event); err != nil {
		t.Fatalf("redelivery should succeed once the organization exists: %v", err)
	}
	if len(repo.byID) != 1 {
		t.Fatalf("expected one persisted user, got %d", len(repo.byID))
	}
}

func TestHandleCreateVerificationTimeoutIsRetryable(t *testing.T) {
	requester := &scriptedRequester{errs: []error{
		&domain.GatewayTimeoutError{Operation: contracts.QueryOrganizationGet, Timeout: time.Second},
	}}
	svc := NewService(newMemoryUsers(), &capturePublisher{}, requester, time.Second, logging.NewNop())

	_, err := svc.HandleCreate(context.Background(), createUserEvent(t, "org-1", ""))
	if !domain.IsRetryable(err) {
		t.Fatalf("verification timeout should be retryable, got %v", err)
	}
}

func TestHandleCreateRedeliverySkipsVerification(t *testing.T) {
	repo := newMemoryUsers()
	requester := &scriptedRequester{replies: []contracts.Reply{organizationFound()}}
	svc := NewService(repo, &capturePublisher{}, requester, time.Second, logging.NewNop())

	event := createUserEvent(t, "org-1", "key-1")

	if _, err := svc.HandleCreate(context.Background(), event); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if _, err := svc.HandleCreate(context.Background(), event); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	if requester.calls != 1 {
		t.Fatalf("replay of an applied create must not re-verify, got %d queries", requester.calls)
	}
	if len(repo.byID) != 1 {
		t.Fatalf("expected one persisted user, got %d", len(repo.byID))
	}
}

func TestHandleGetMissRepliesNegatively(t *testing.T) {
	svc := NewService(newMemoryUsers(), &capturePublisher{}, &scriptedRequester{}, time.Second, logging.NewNop())

	body, _ := json.Marshal(map[string]string{"id": "u-404"})
	reply, err := svc.HandleGet(context.Background(), contracts.NewEvent(contracts.QueryUserGet, body, ""))
	if err != nil {
		t.Fatalf("a miss is an answer, not a failure: %v", err)
	}
	if reply.Error == nil || reply.Error.Kind != domain.KindReferenceNotFound {
		t.Fatalf("expected negative reply, got %+v", reply)
	}
}
