// Package runtime is the consuming half of a domain service: it binds one
// durable queue, dispatches events to registered handlers and applies the
// per-failure acknowledgement policy.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/emporion-io/emporion/internal/domain"
	"github.com/emporion-io/emporion/internal/infrastructure/contracts"
	"github.com/emporion-io/emporion/internal/infrastructure/logging"
	"github.com/emporion-io/emporion/internal/infrastructure/messaging"
	"github.com/emporion-io/emporion/internal/infrastructure/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one decoded event. The returned Reply is sent back when
// the delivery asked for one; a Reply carrying a wire error (e.g. a negative
// lookup) is still a handled message and is acknowledged. A returned error is
// a handler failure and goes through the retry/dead-letter policy. Handlers
// must tolerate at-least-once delivery: reprocessing an event with the same
// idempotency key must not create a duplicate entity.
type Handler func(ctx context.Context, event contracts.Event) (contracts.Reply, error)

// Replier sends correlated responses. Split from Publisher so tests can
// observe replies separately.
type Replier interface {
	Reply(ctx context.Context, replyTo, correlationID string, reply contracts.Reply) error
}

type Config struct {
	Queue   string
	Workers int
	Retry   RetryPolicy
}

type Runtime struct {
	cfg       Config
	source    messaging.DeliverySource
	publisher messaging.Publisher
	replier   Replier
	handlers  map[string]Handler
	logger    logging.Logger
	metrics   *metrics.Metrics

	wg sync.WaitGroup
}

func New(
	cfg Config,
	source messaging.DeliverySource,
	publisher messaging.Publisher,
	replier Replier,
	logger logging.Logger,
	m *metrics.Metrics,
) *Runtime {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}

	return &Runtime{
		cfg:       cfg,
		source:    source,
		publisher: publisher,
		replier:   replier,
		handlers:  make(map[string]Handler),
		logger:    logger,
		metrics:   m,
	}
}

// Register binds a handler to an event name. Names outside the shared
// vocabulary are rejected so typos surface at startup, not at dispatch.
func (rt *Runtime) Register(name string, handler Handler) error {
	if !contracts.Known(name) {
		return fmt.Errorf("cannot register handler for unknown event %q", name)
	}
	if _, exists := rt.handlers[name]; exists {
		return fmt.Errorf("handler already registered for event %q", name)
	}

	rt.handlers[name] = handler
	return nil
}

func (rt *Runtime) MustRegister(name string, handler Handler) {
	if err := rt.Register(name, handler); err != nil {
		panic(err)
	}
}

// Listen consumes the queue until ctx ends. At most cfg.Workers handler
// invocations run at once; the broker buffers the rest as unacknowledged
// deliveries, which is the backpressure mechanism.
func (rt *Runtime) Listen(ctx context.Context) error {
	deliveries, err := rt.source.Consume(rt.cfg.Queue, rt.cfg.Workers)
	if err != nil {
		return err
	}

	rt.logger.Info(logging.Messaging, logging.Startup, "service runtime listening", map[logging.ExtraKey]any{
		logging.Queue: rt.cfg.Queue,
	})

	slots := make(chan struct{}, rt.cfg.Workers)

	for {
		select {
		case <-ctx.Done():
			rt.wg.Wait()
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				rt.wg.Wait()
				return nil
			}

			slots <- struct{}{}
			rt.wg.Add(1)
			go func(msg amqp.Delivery) {
				defer rt.wg.Done()
				defer func() { <-slots }()
				rt.dispatch(ctx, msg)
			}(msg)
		}
	}
}

func (rt *Runtime) dispatch(ctx context.Context, msg amqp.Delivery) {
	var event contracts.Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		rt.logger.Error(logging.Messaging, logging.Dispatch, "failed to unmarshal message, dead-lettering", map[logging.ExtraKey]any{
			logging.Queue:        rt.cfg.Queue,
			logging.ErrorMessage: err.Error(),
		})
		rt.deadLetter(msg)
		return
	}

	handler, exists := rt.handlers[event.Name]
	if !exists {
		// Not fatal: during rolling deploys the vocabulary on the wire can
		// run ahead of this replica. Acknowledge and drop.
		rt.logger.Warn(logging.Messaging, logging.Dispatch, "no handler registered, dropping event", map[logging.ExtraKey]any{
			logging.Queue:     rt.cfg.Queue,
			logging.EventName: event.Name,
		})
		rt.countConsumed(event.Name, "dropped")
		_ = msg.Ack(false)
		return
	}

	result, err := handler(ctx, event)
	if err == nil {
		rt.reply(ctx, msg, result)
		rt.countConsumed(event.Name, "ok")
		_ = msg.Ack(false)
		return
	}

	attempts := attemptsFrom(msg.Headers)

	if !domain.IsRetryable(err) {
		rt.logger.Warn(logging.Messaging, logging.DeadLetter, "permanent failure, dead-lettering", map[logging.ExtraKey]any{
			logging.Queue:        rt.cfg.Queue,
			logging.EventName:    event.Name,
			logging.Attempt:      attempts,
			logging.ErrorMessage: err.Error(),
		})
		rt.reply(ctx, msg, contracts.Reply{Error: messaging.WireFromError(err)})
		rt.countConsumed(event.Name, "dead_lettered")
		rt.deadLetter(msg)
		return
	}

	if attempts >= int32(rt.cfg.Retry.MaxAttempts) {
		rt.logger.Error(logging.Messaging, logging.DeadLetter, "retries exhausted, dead-lettering", map[logging.ExtraKey]any{
			logging.Queue:        rt.cfg.Queue,
			logging.EventName:    event.Name,
			logging.Attempt:      attempts,
			logging.ErrorMessage: err.Error(),
		})
		rt.reply(ctx, msg, contracts.Reply{Error: messaging.WireFromError(err)})
		rt.countConsumed(event.Name, "dead_lettered")
		rt.deadLetter(msg)
		return
	}

	rt.requeue(ctx, msg, event, attempts)
}

// requeue republishes the delivery to the service's own queue with the
// attempt header bumped, then acknowledges the original. The order matters:
// until the republish has succeeded the message stays unacknowledged, so a
// crash or a publish failure leaves it with the broker instead of losing it.
// Holding the delivery open through the backoff also keeps the retry counted
// against the worker's prefetch window. Correlation properties ride along so
// a retry that eventually succeeds still replies.
func (rt *Runtime) requeue(ctx context.Context, msg amqp.Delivery, event contracts.Event, attempts int32) {
	delay := rt.cfg.Retry.Delay(int(attempts))

	rt.logger.Info(logging.Messaging, logging.Retry, "transient failure, requeueing with backoff", map[logging.ExtraKey]any{
		logging.Queue:     rt.cfg.Queue,
		logging.EventName: event.Name,
		logging.Attempt:   attempts + 1,
		logging.Latency:   delay.String(),
	})

	if rt.metrics != nil {
		rt.metrics.MessagesRetried.WithLabelValues(rt.cfg.Queue).Inc()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		// Shutting down mid-backoff: hand the message back for redelivery.
		_ = msg.Nack(false, true)
		return
	case <-timer.C:
	}

	err := rt.publisher.PublishMessage(ctx, "", rt.cfg.Queue, event, messaging.PublishOptions{
		CorrelationID: msg.CorrelationId,
		ReplyTo:       msg.ReplyTo,
		Attempts:      attempts + 1,
	})
	if err != nil {
		rt.logger.Error(logging.Messaging, logging.Retry, "failed to requeue message, returning it to the queue", map[logging.ExtraKey]any{
			logging.Queue:        rt.cfg.Queue,
			logging.EventName:    event.Name,
			logging.ErrorMessage: err.Error(),
		})
		_ = msg.Nack(false, true)
		return
	}

	_ = msg.Ack(false)
}

func (rt *Runtime) reply(ctx context.Context, msg amqp.Delivery, reply contracts.Reply) {
	if msg.ReplyTo == "" {
		return
	}

	if err := rt.replier.Reply(ctx, msg.ReplyTo, msg.CorrelationId, reply); err != nil {
		rt.logger.Error(logging.Messaging, logging.Publish, "failed to send reply", map[logging.ExtraKey]any{
			logging.Queue:         rt.cfg.Queue,
			logging.CorrelationID: msg.CorrelationId,
			logging.ErrorMessage:  err.Error(),
		})
	}
}

// deadLetter rejects without requeue; the queue's dead-letter exchange parks
// the message for manual inspection.
func (rt *Runtime) deadLetter(msg amqp.Delivery) {
	if rt.metrics != nil {
		rt.metrics.MessagesDeadLettered.WithLabelValues(rt.cfg.Queue).Inc()
	}
	_ = msg.Nack(false, false)
}

func (rt *Runtime) countConsumed(event, outcome string) {
	if rt.metrics != nil {
		rt.metrics.MessagesConsumed.WithLabelValues(rt.cfg.Queue, event, outcome).Inc()
	}
}

// attemptsFrom reads the redelivery count header; a first delivery counts as
// attempt 1.
func attemptsFrom(headers amqp.Table) int32 {
	if headers == nil {
		return 1
	}

	switch v := headers[messaging.AttemptsHeader].(type) {
	case int32:
		return v
	case int64:
		return int32(v)
	case int:
		return int32(v)
	default:
		return 1
	}
}
