// Package gateway translates external operations into broker events. It never
// touches an entity store: every effect happens downstream, behind a queue.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/emporion-io/emporion/internal/domain"
	"github.com/emporion-io/emporion/internal/infrastructure/contracts"
	"github.com/emporion-io/emporion/internal/infrastructure/logging"
	"github.com/emporion-io/emporion/internal/infrastructure/messaging"
	"github.com/emporion-io/emporion/internal/infrastructure/metrics"
	"github.com/emporion-io/emporion/internal/routing"
)

const (
	StatusAccepted = "accepted"
	StatusReplied  = "replied"
)

// Result is what an external caller gets back. Accepted means "enqueued",
// never "applied": a fire-and-forget operation carries no guarantee of
// downstream success.
type Result struct {
	Status string          `json:"status"`
	Reply  json.RawMessage `json:"reply,omitempty"`
}

type Router struct {
	table     *routing.Table
	publisher messaging.Publisher
	requester messaging.RequestReplier
	logger    logging.Logger
	metrics   *metrics.Metrics
}

func NewRouter(
	table *routing.Table,
	publisher messaging.Publisher,
	requester messaging.RequestReplier,
	logger logging.Logger,
	m *metrics.Metrics,
) *Router {
	return &Router{
		table:     table,
		publisher: publisher,
		requester: requester,
		logger:    logger,
		metrics:   m,
	}
}

// Route resolves operation, validates input against the route's required
// fields and performs exactly one publish. For request-reply routes it
// suspends the calling context until the correlated reply arrives or the
// route's timeout elapses; the publish is not retried on timeout, since the
// original message may still be processed later.
func (r *Router) Route(ctx context.Context, operation string, input json.RawMessage, idempotencyKey string) (*Result, error) {
	route, err := r.table.Lookup(operation)
	if err != nil {
		return nil, err
	}

	if err := validateRequired(input, route.Required); err != nil {
		return nil, err
	}

	event := contracts.NewEvent(route.Event, input, idempotencyKey)

	if route.Mode == routing.FireAndForget {
		if err := r.publisher.PublishMessage(ctx, messaging.CommandsExchange, route.Event, event, messaging.PublishOptions{}); err != nil {
			return nil, err
		}

		r.countPublished(route.Event)
		r.logger.Info(logging.Messaging, logging.Publish, "operation enqueued", map[logging.ExtraKey]any{
			logging.Operation: operation,
			logging.Queue:     route.Queue,
			logging.EventName: route.Event,
		})

		return &Result{Status: StatusAccepted}, nil
	}

	reply, err := r.requester.Request(ctx, messaging.CommandsExchange, route.Event, event, route.Timeout)
	if err != nil {
		var timeout *domain.GatewayTimeoutError
		if errors.As(err, &timeout) {
			// The publish happened, only the reply is missing.
			r.countPublished(route.Event)
			// Name the external operation, not the internal event.
			return nil, &domain.GatewayTimeoutError{Operation: operation, Timeout: route.Timeout}
		}
		return nil, err
	}

	r.countPublished(route.Event)

	if reply.Error != nil {
		return nil, messaging.ErrorFromWire(reply.Error)
	}

	return &Result{Status: StatusReplied, Reply: reply.Data}, nil
}

func (r *Router) countPublished(event string) {
	if r.metrics == nil {
		return
	}
	r.metrics.MessagesPublished.WithLabelValues(messaging.CommandsExchange, event).Inc()
}

// ReplaceRoutes atomically swaps the routing table, so new services can be
// added without restarting the gateway loop.
func (r *Router) ReplaceRoutes(entries map[string]routing.Route) {
	r.table.Replace(entries)
}

func validateRequired(input json.RawMessage, required []string) error {
	if len(required) == 0 {
		return nil
	}

	var fields map[string]any
	if err := json.Unmarshal(input, &fields); err != nil {
		return domain.NewValidationError("body must be a JSON object")
	}

	var missing []string
	for _, name := range required {
		value, ok := fields[name]
		if !ok {
			missing = append(missing, fmt.Sprintf("%s is required", name))
			continue
		}
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			missing = append(missing, fmt.Sprintf("%s must not be empty", name))
		}
	}

	if len(missing) > 0 {
		return domain.NewValidationError(missing...)
	}

	return nil
}
