package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/emporion-io/emporion/internal/infrastructure/contracts"
	amqp "github.com/rabbitmq/amqp091-go"
)

// PublishOptions carries the optional delivery envelope of an event.
type PublishOptions struct {
	CorrelationID string
	ReplyTo       string
	Attempts      int32
}

// Publisher is the outbound half of the broker contract. The concrete
// implementation is RabbitMQ; tests substitute an in-memory bus.
type Publisher interface {
	PublishMessage(ctx context.Context, exchange, key string, event contracts.Event, opts PublishOptions) error
}

// DeliverySource is the inbound half, yielding raw deliveries so the caller
// owns acknowledgement.
type DeliverySource interface {
	Consume(queue string, prefetch int) (<-chan amqp.Delivery, error)
}

type RabbitMQ struct {
	conn    *amqp.Connection
	Channel *amqp.Channel
}

func NewRabbitMQ(uri string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %v", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %v", err)
	}

	rmq := &RabbitMQ{
		conn:    conn,
		Channel: ch,
	}

	if err := rmq.declareExchanges(); err != nil {
		rmq.Close()
		return nil, err
	}

	return rmq, nil
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		r.Channel.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
}

func (r *RabbitMQ) declareExchanges() error {
	if err := r.Channel.ExchangeDeclare(
		CommandsExchange, // name
		"direct",         // type
		true,             // durable
		false,            // auto-deleted
		false,            // internal
		false,            // no-wait
		nil,              // arguments
	); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %v", CommandsExchange, err)
	}

	if err := r.Channel.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %v", EventsExchange, err)
	}

	// Dead-lettered messages keep their original routing key, so the DLX is a
	// fanout: one parking queue catches everything.
	if err := r.Channel.ExchangeDeclare(
		DeadLetterExchange,
		"fanout",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %v", DeadLetterExchange, err)
	}

	if _, err := r.Channel.QueueDeclare(
		DeadLetterQueue, // name
		true,            // durable
		false,           // delete when unused
		false,           // exclusive
		false,           // no-wait
		nil,             // arguments
	); err != nil {
		return fmt.Errorf("failed to declare queue %s: %v", DeadLetterQueue, err)
	}

	if err := r.Channel.QueueBind(DeadLetterQueue, "", DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %v", DeadLetterQueue, err)
	}

	return nil
}

// DeclareServiceQueue declares the durable queue a domain service owns and
// binds the event names it handles: commands from the commands exchange and,
// when eventKeys is non-empty, lifecycle events from the events exchange. The
// queue persists across restarts and is never deleted by the service.
func (r *RabbitMQ) DeclareServiceQueue(queueName string, commandKeys, eventKeys []string) error {
	// Add dead letter configuration
	args := amqp.Table{
		"x-dead-letter-exchange": DeadLetterExchange,
	}

	q, err := r.Channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		args,      // arguments with DLX config
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %v", queueName, err)
	}

	for _, key := range commandKeys {
		if err := r.Channel.QueueBind(
			q.Name,           // queue name
			key,              // routing key
			CommandsExchange, // exchange
			false,
			nil,
		); err != nil {
			return fmt.Errorf("failed to bind queue %s to %s: %v", queueName, key, err)
		}
	}

	for _, key := range eventKeys {
		if err := r.Channel.QueueBind(q.Name, key, EventsExchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s to %s: %v", queueName, key, err)
		}
	}

	return nil
}

func (r *RabbitMQ) PublishMessage(ctx context.Context, exchange, key string, event contracts.Event, opts PublishOptions) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %v", event.Name, err)
	}

	var headers amqp.Table
	if opts.Attempts > 0 {
		headers = amqp.Table{AttemptsHeader: opts.Attempts}
	}

	return r.Channel.PublishWithContext(ctx,
		exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			Body:          body,
			CorrelationId: opts.CorrelationID,
			ReplyTo:       opts.ReplyTo,
			Headers:       headers,
			Timestamp:     event.OccurredAt,
		},
	)
}

// Reply publishes a correlated response straight to the replyTo queue via the
// default exchange.
func (r *RabbitMQ) Reply(ctx context.Context, replyTo, correlationID string, reply contracts.Reply) error {
	body, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %v", err)
	}

	return r.Channel.PublishWithContext(ctx,
		"",      // default exchange
		replyTo, // routing key = queue name
		false,
		false,
		amqp.Publishing{
			ContentType:   "application/json",
			Body:          body,
			CorrelationId: correlationID,
		},
	)
}

// Consume starts delivering messages from queue with manual acknowledgement.
// prefetch bounds the unacknowledged messages in flight, which is what
// backpressures the broker.
func (r *RabbitMQ) Consume(queue string, prefetch int) (<-chan amqp.Delivery, error) {
	if prefetch > 0 {
		if err := r.Channel.Qos(prefetch, 0, false); err != nil {
			return nil, fmt.Errorf("failed to set QoS on %s: %v", queue, err)
		}
	}

	deliveries, err := r.Channel.Consume(
		queue, // queue
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume from %s: %v", queue, err)
	}

	return deliveries, nil
}

// DeclareWatchQueue binds a private auto-delete queue to every lifecycle
// event, for streaming outcomes to gateway subscribers. Deliveries are
// auto-acked: a watch stream is best-effort, not durable.
func (r *RabbitMQ) DeclareWatchQueue() (<-chan amqp.Delivery, error) {
	q, err := r.Channel.QueueDeclare(
		"",    // server-generated name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare watch queue: %v", err)
	}

	if err := r.Channel.QueueBind(q.Name, "#", EventsExchange, false, nil); err != nil {
		return nil, fmt.Errorf("failed to bind watch queue: %v", err)
	}

	deliveries, err := r.Channel.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume watch queue %s: %v", q.Name, err)
	}

	return deliveries, nil
}

// DeclareReplyQueue declares the exclusive auto-delete queue a requester
// receives correlated replies on.
func (r *RabbitMQ) DeclareReplyQueue() (string, <-chan amqp.Delivery, error) {
	q, err := r.Channel.QueueDeclare(
		"",    // server-generated name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return "", nil, fmt.Errorf("failed to declare reply queue: %v", err)
	}

	deliveries, err := r.Channel.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to consume reply queue %s: %v", q.Name, err)
	}

	return q.Name, deliveries, nil
}
