package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPForwarder republishes bus events to a durable RabbitMQ queue. It
// reconnects with exponential backoff and drops events while the broker is
// unreachable.
type AMQPForwarder struct {
	url   string
	queue string
}

func NewAMQPForwarder(url, queue string) *AMQPForwarder {
	if queue == "" {
		queue = "auth.events"
	}
	return &AMQPForwarder{url: url, queue: queue}
}

func (f *AMQPForwarder) Run(ctx context.Context, bus Bus) {
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	backoff := time.Second
	for {
		conn, err := amqp.Dial(f.url)
		if err != nil {
			slog.Warn("amqp forwarder: dial failed", "error", err, "retry_in", backoff.String())
			if !f.drainFor(ctx, events, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = f.forward(ctx, conn, events)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		slog.Warn("amqp forwarder: connection lost; reconnecting", "error", err)
	}
}

func (f *AMQPForwarder) forward(ctx context.Context, conn *amqp.Connection, events <-chan Event) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(f.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	slog.Info("amqp forwarder connected", "queue", f.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr == nil {
				return fmt.Errorf("connection closed")
			}
			return amqpErr
		case e, ok := <-events:
			if !ok {
				return nil
			}
			msg, err := toPublishing(e)
			if err != nil {
				slog.Error("amqp forwarder: encode event failed", "error", err, "type", e.Type)
				continue
			}
			pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = ch.PublishWithContext(pubCtx, "", f.queue, false, false, msg)
			cancel()
			if err != nil {
				return fmt.Errorf("publish: %w", err)
			}
		}
	}
}

// drainFor discards events for d so the bus subscriber does not fill up
// while the broker is down. It reports false when ctx ends first.
func (f *AMQPForwarder) drainFor(ctx context.Context, events <-chan Event, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case <-events:
		}
	}
}

func toPublishing(e Event) (amqp.Publishing, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID,
		Type:         string(e.Type),
		Timestamp:    e.Timestamp,
		Body:         body,
	}, nil
}
