package operations

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/emporion-io/emporion/internal/gateway"
	jsonutil "github.com/emporion-io/emporion/internal/infrastructure/json"
	"github.com/emporion-io/emporion/internal/infrastructure/metrics"
	"github.com/go-chi/chi/v5"
)

// IdempotencyKeyHeader lets a caller pin the dedup key for a create. Without
// it, redeliveries still dedupe on payload content, but two intentional
// identical creates would collapse into one.
const IdempotencyKeyHeader = "Idempotency-Key"

type Handler struct {
	router  *gateway.Router
	metrics *metrics.Metrics
}

func NewHandler(router *gateway.Router, m *metrics.Metrics) *Handler {
	return &Handler{
		router:  router,
		metrics: m,
	}
}

// CreateOrganizationHandler accepts an organization create and enqueues it.
// 202 means enqueued, not applied.
func (h *Handler) CreateOrganizationHandler(w http.ResponseWriter, r *http.Request) {
	var req createOrganizationRequest
	if err := jsonutil.Read(r, &req); err != nil {
		jsonutil.WriteValidationError(w, err)
		return
	}

	h.route(w, r, "create_organization", req)
}

// CreateUserHandler accepts a user create referencing an organization.
func (h *Handler) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := jsonutil.Read(r, &req); err != nil {
		jsonutil.WriteValidationError(w, err)
		return
	}

	h.route(w, r, "create_user", req)
}

// CreateStoreHandler accepts a store create referencing an owning user.
func (h *Handler) CreateStoreHandler(w http.ResponseWriter, r *http.Request) {
	var req createStoreRequest
	if err := jsonutil.Read(r, &req); err != nil {
		jsonutil.WriteValidationError(w, err)
		return
	}

	h.route(w, r, "create_store", req)
}

func (h *Handler) GetOrganizationHandler(w http.ResponseWriter, r *http.Request) {
	h.getByID(w, r, "get_organization")
}

func (h *Handler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	h.getByID(w, r, "get_user")
}

func (h *Handler) GetStoreHandler(w http.ResponseWriter, r *http.Request) {
	h.getByID(w, r, "get_store")
}

// OperationHandler is the generic entry point: any operation in the routing
// table can be invoked by name, so adding a service needs a table entry, not
// a gateway release.
func (h *Handler) OperationHandler(w http.ResponseWriter, r *http.Request) {
	operation := chi.URLParam(r, "operation")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		jsonutil.WriteValidationError(w, err)
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	h.dispatch(w, r, operation, body)
}

func (h *Handler) route(w http.ResponseWriter, r *http.Request, operation string, req any) {
	body, err := json.Marshal(req)
	if err != nil {
		jsonutil.WriteInternalError(w, err)
		return
	}

	h.dispatch(w, r, operation, body)
}

func (h *Handler) getByID(w http.ResponseWriter, r *http.Request, operation string) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonutil.WriteError(w, http.StatusBadRequest, "id is missing")
		return
	}

	h.dispatch(w, r, operation, []byte(fmt.Sprintf(`{"id":%q}`, id)))
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, operation string, body json.RawMessage) {
	start := time.Now()

	result, err := h.router.Route(r.Context(), operation, body, r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		h.observe(operation, "error", start)
		jsonutil.WriteClassifiedError(w, err)
		return
	}

	h.observe(operation, result.Status, start)

	switch result.Status {
	case gateway.StatusAccepted:
		jsonutil.Write(w, http.StatusAccepted, acceptedResponse{Status: result.Status})
	default:
		jsonutil.Write(w, http.StatusOK, replyResponse{Status: result.Status, Data: result.Reply})
	}
}

func (h *Handler) observe(operation, status string, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.RequestDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}
