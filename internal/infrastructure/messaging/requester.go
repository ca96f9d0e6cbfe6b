package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/emporion-io/emporion/internal/domain"
	"github.com/emporion-io/emporion/internal/infrastructure/contracts"
	"github.com/emporion-io/emporion/internal/infrastructure/logging"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RequestReplier sends an event and waits for its correlated reply. The
// gateway uses it for request-reply operations, and domain services use it to
// verify reference attributes owned by another service.
type RequestReplier interface {
	Request(ctx context.Context, exchange, key string, event contracts.Event, timeout time.Duration) (contracts.Reply, error)
}

// ReplyTransport is what a Requester needs from the broker: somewhere to
// publish and a private queue its replies come back on. The concrete
// implementation is RabbitMQ; tests substitute a fake.
type ReplyTransport interface {
	Publisher
	DeclareReplyQueue() (string, <-chan amqp.Delivery, error)
}

// Requester implements RequestReplier with a private exclusive reply queue. A
// single pump goroutine matches replies to waiters by correlation id; a wait
// that times out releases its registration so a late reply is dropped, never
// delivered to a stale caller.
type Requester struct {
	transport  ReplyTransport
	replyQueue string
	pending    *pendingReplies
	logger     logging.Logger
}

func NewRequester(transport ReplyTransport, logger logging.Logger) (*Requester, error) {
	replyQueue, deliveries, err := transport.DeclareReplyQueue()
	if err != nil {
		return nil, err
	}

	r := &Requester{
		transport:  transport,
		replyQueue: replyQueue,
		pending:    newPendingReplies(),
		logger:     logger,
	}

	go func() {
		for msg := range deliveries {
			var reply contracts.Reply
			if err := json.Unmarshal(msg.Body, &reply); err != nil {
				r.logger.Error(logging.Messaging, logging.Consume, "failed to unmarshal reply", map[logging.ExtraKey]any{
					logging.CorrelationID: msg.CorrelationId,
					logging.ErrorMessage:  err.Error(),
				})
				continue
			}

			if !r.pending.resolve(msg.CorrelationId, reply) {
				r.logger.Warn(logging.Messaging, logging.Consume, "discarding late reply", map[logging.ExtraKey]any{
					logging.CorrelationID: msg.CorrelationId,
				})
			}
		}
	}()

	return r, nil
}

func (r *Requester) Request(ctx context.Context, exchange, key string, event contracts.Event, timeout time.Duration) (contracts.Reply, error) {
	correlationID := uuid.NewString()
	wait := r.pending.register(correlationID)

	err := r.transport.PublishMessage(ctx, exchange, key, event, PublishOptions{
		CorrelationID: correlationID,
		ReplyTo:       r.replyQueue,
	})
	if err != nil {
		r.pending.cancel(correlationID)
		return contracts.Reply{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-wait:
		return reply, nil
	case <-timer.C:
		r.pending.cancel(correlationID)
		return contracts.Reply{}, &domain.GatewayTimeoutError{Operation: event.Name, Timeout: timeout}
	case <-ctx.Done():
		r.pending.cancel(correlationID)
		return contracts.Reply{}, ctx.Err()
	}
}
