package operations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/emporion-io/emporion/internal/domain"
	"github.com/emporion-io/emporion/internal/gateway"
	"github.com/emporion-io/emporion/internal/infrastructure/contracts"
	"github.com/emporion-io/emporion/internal/infrastructure/logging"
	"github.com/emporion-io/emporion/internal/infrastructure/messaging"
	"github.com/emporion-io/emporion/internal/routing"
	"github.com/go-chi/chi/v5"
)

type stubPublisher struct {
	events []contracts.Event
}

func (s *stubPublisher) PublishMessage(_ context.Context, _, _ string, event contracts.Event, _ messaging.PublishOptions) error {
	s.events = append(s.events, event)
	return nil
}

type stubRequester struct {
	reply contracts.Reply
	err   error
}

func (s *stubRequester) Request(context.Context, string, string, contracts.Event, time.Duration) (contracts.Reply, error) {
	if s.err != nil {
		return contracts.Reply{}, s.err
	}
	return s.reply, nil
}

func newTestServer(publisher *stubPublisher, requester *stubRequester) *chi.Mux {
	table := routing.NewTable(routing.DefaultRoutes(time.Second))
	router := gateway.NewRouter(table, publisher, requester, logging.NewNop(), nil)
	h := NewHandler(router, nil)

	r := chi.NewRouter()
	r.Post("/organizations", h.CreateOrganizationHandler)
	r.Post("/users", h.CreateUserHandler)
	r.Get("/organizations/{id}", h.GetOrganizationHandler)
	r.Post("/operations/{operation}", h.OperationHandler)
	return r
}

func TestCreateOrganizationReturnsAccepted(t *testing.T) {
	publisher := &stubPublisher{}
	srv := newTestServer(publisher, &stubRequester{})

	req := httptest.NewRequest(http.MethodPost, "/organizations", strings.NewReader(`{"name":"Acme"}`))
	req.Header.Set(IdempotencyKeyHeader, "key-1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected one publish, got %d", len(publisher.events))
	}
	if publisher.events[0].IdempotencyKey != "key-1" {
		t.Fatalf("idempotency key header not forwarded: %q", publisher.events[0].IdempotencyKey)
	}

	var body acceptedResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != gateway.StatusAccepted {
		t.Fatalf("unexpected status %q", body.Status)
	}
}

func TestCreateOrganizationRejectsUnknownFields(t *testing.T) {
	srv := newTestServer(&stubPublisher{}, &stubRequester{})

	req := httptest.NewRequest(http.MethodPost, "/organizations", strings.NewReader(`{"name":"Acme","tier":"gold"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateUserMissingFieldReturnsBadRequest(t *testing.T) {
	publisher := &stubPublisher{}
	srv := newTestServer(publisher, &stubRequester{})

	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"email":"jo@acme.io","name":"Jo"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(publisher.events) != 0 {
		t.Fatal("nothing may be published for invalid input")
	}
}

func TestGetOrganizationReturnsReply(t *testing.T) {
	requester := &stubRequester{reply: contracts.Reply{Data: json.RawMessage(`{"id":"org-1","name":"Acme"}`)}}
	srv := newTestServer(&stubPublisher{}, requester)

	req := httptest.NewRequest(http.MethodGet, "/organizations/org-1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body replyResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != gateway.StatusReplied {
		t.Fatalf("unexpected status %q", body.Status)
	}
	if string(body.Data) != `{"id":"org-1","name":"Acme"}` {
		t.Fatalf("unexpected data: %s", body.Data)
	}
}

func TestGetOrganizationTimeoutReturns504(t *testing.T) {
	requester := &stubRequester{err: &domain.GatewayTimeoutError{Operation: contracts.QueryOrganizationGet, Timeout: time.Second}}
	srv := newTestServer(&stubPublisher{}, requester)

	req := httptest.NewRequest(http.MethodGet, "/organizations/org-1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}
}

func TestOperationHandlerRoutesByName(t *testing.T) {
	publisher := &stubPublisher{}
	srv := newTestServer(publisher, &stubRequester{})

	req := httptest.NewRequest(http.MethodPost, "/operations/create_store", strings.NewReader(`{"name":"Shop","ownerId":"u-1"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(publisher.events) != 1 || publisher.events[0].Name != contracts.CommandStoreCreate {
		t.Fatalf("unexpected publish: %+v", publisher.events)
	}
}

func TestOperationHandlerUnknownOperationReturns404(t *testing.T) {
	srv := newTestServer(&stubPublisher{}, &stubRequester{})

	req := httptest.NewRequest(http.MethodPost, "/operations/launch_rocket", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
