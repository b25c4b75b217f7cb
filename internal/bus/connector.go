package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler consumes one decoded message payload. A non-nil error rejects the
// delivery; nil acknowledges it.
type Handler func(ctx context.Context, payload json.RawMessage) error

// envelope is the wire format on the broker. Data is kept raw so the
// connector never has to know consumer payload shapes.
type envelope struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// Connector publishes and consumes JSON envelopes over a durable topic
// exchange. Queues are durable and named after the consumer, so an offline
// consumer's messages wait on the broker instead of being dropped.
type Connector struct {
	url          string
	exchange     string
	consumerName string
	deadLetter   bool

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewConnector(url, exchange, consumerName string, deadLetter bool) *Connector {
	return &Connector{
		url:          url,
		exchange:     exchange,
		consumerName: consumerName,
		deadLetter:   deadLetter,
	}
}

// channel returns the shared channel, dialing and declaring the exchange on
// first use.
func (c *Connector) channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ch != nil && !c.ch.IsClosed() {
		return c.ch, nil
	}

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", c.exchange, err)
	}

	c.conn = conn
	c.ch = ch
	return ch, nil
}

// Publish wraps data in an envelope and sends it to the topic with
// persistent delivery.
func (c *Connector) Publish(ctx context.Context, topic string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	body, err := json.Marshal(envelope{
		Event:     topic,
		Data:      raw,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	ch, err := c.channel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, c.exchange, topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %q: %w", topic, err)
	}
	return nil
}

// Subscribe binds a durable consumer queue to the topic pattern and feeds
// each delivery's data payload to handler until ctx is canceled. Handler
// errors reject the delivery: requeued by default, or routed to the
// dead-letter exchange when that is enabled.
func (c *Connector) Subscribe(ctx context.Context, topic string, handler Handler) error {
	ch, err := c.channel()
	if err != nil {
		return err
	}

	queueName := c.consumerName + "." + normalizeTopic(topic)

	var args amqp.Table
	if c.deadLetter {
		dlx := c.exchange + ".dlx"
		if err := ch.ExchangeDeclare(dlx, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare dead-letter exchange %q: %w", dlx, err)
		}
		args = amqp.Table{"x-dead-letter-exchange": dlx}
	}

	queue, err := ch.QueueDeclare(queueName, true, false, false, false, args)
	if err != nil {
		return fmt.Errorf("declare queue %q: %w", queueName, err)
	}
	if err := ch.QueueBind(queue.Name, topic, c.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %q to %q: %w", queue.Name, topic, err)
	}

	deliveries, err := ch.Consume(queue.Name, c.consumerName, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume queue %q: %w", queue.Name, err)
	}

	go func() {
		slog.Info("bus subscription started", "queue", queue.Name, "topic", topic)
		for {
			select {
			case <-ctx.Done():
				slog.Info("bus subscription stopping", "queue", queue.Name)
				return
			case delivery, ok := <-deliveries:
				if !ok {
					slog.Warn("bus delivery channel closed", "queue", queue.Name)
					return
				}
				c.handle(ctx, delivery, handler)
			}
		}
	}()

	return nil
}

func (c *Connector) handle(ctx context.Context, delivery amqp.Delivery, handler Handler) {
	var env envelope
	payload := json.RawMessage(delivery.Body)
	if err := json.Unmarshal(delivery.Body, &env); err == nil && len(env.Data) > 0 {
		payload = env.Data
	}

	if err := handler(ctx, payload); err != nil {
		slog.Error("bus message rejected",
			"routing_key", delivery.RoutingKey,
			"err", err,
		)
		// With a dead-letter exchange configured the broker moves the
		// rejected message there; otherwise it goes back on the queue.
		if nackErr := delivery.Nack(false, !c.deadLetter); nackErr != nil {
			slog.Error("bus nack failed", "err", nackErr)
		}
		return
	}

	if ackErr := delivery.Ack(false); ackErr != nil {
		slog.Error("bus ack failed", "err", ackErr)
	}
}

func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var chErr, connErr error
	if c.ch != nil && !c.ch.IsClosed() {
		chErr = c.ch.Close()
	}
	if c.conn != nil && !c.conn.IsClosed() {
		connErr = c.conn.Close()
	}
	c.ch = nil
	c.conn = nil

	if chErr != nil {
		return chErr
	}
	return connErr
}

// normalizeTopic makes a topic pattern safe for use in a queue name by
// replacing the AMQP wildcard characters.
func normalizeTopic(topic string) string {
	return strings.NewReplacer("*", "_", "#", "_").Replace(topic)
}
