package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrMalformedEvent marks a delivery whose body could not be decoded.
var ErrMalformedEvent = errors.New("malformed booking event")

// BookingUpdateHandler reacts to one booking update.  A returned error means
// the reaction was dropped after its own retries; the delivery is not
// requeued.
type BookingUpdateHandler func(ctx context.Context, ev BookingUpdatedEvent) error

// ConsumerConfig names the broker objects the consumer binds.
type ConsumerConfig struct {
	URL        string
	Exchange   string
	Queue      string
	RoutingKey string
	Prefetch   int
}

// CancellationConsumer is the AMQP-backed cancellation event source.  It
// binds a durable queue to the bookings topic exchange and feeds every
// booking.updated message to a handler.
type CancellationConsumer struct {
	cfg ConsumerConfig
	log *slog.Logger
}

func NewCancellationConsumer(cfg ConsumerConfig, logger *slog.Logger) *CancellationConsumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 16
	}
	return &CancellationConsumer{cfg: cfg, log: logger.With("component", "booking-consumer")}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled.  Lost
// connections are re-dialled with a doubling backoff capped at 30s.
func (c *CancellationConsumer) Run(ctx context.Context, handler BookingUpdateHandler) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		conn, err := amqp.Dial(c.cfg.URL)
		if err != nil {
			c.log.Warn("failed to dial broker", "error", err, "retry_in", backoff.String())
			if !sleepCtx(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn, handler)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn("consume loop ended, reconnecting", "error", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *CancellationConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection, handler BookingUpdateHandler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		c.log.Warn("set QoS failed", "error", err)
	}
	if err := ch.ExchangeDeclare(c.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	q, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, c.cfg.RoutingKey, c.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.Info("consuming booking updates", "queue", q.Name, "routing_key", c.cfg.RoutingKey)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.settle(ctx, d, c.process(ctx, d.Body, handler))
		}
	}
}

// acknowledger is the part of amqp.Delivery used to settle a message.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// settle acks a handled delivery.  A delivery interrupted by shutdown is
// requeued so another replica reacts to it; any other failure already
// exhausted its retries and is rejected without requeue.
func (c *CancellationConsumer) settle(ctx context.Context, d acknowledger, err error) {
	switch {
	case err == nil:
		_ = d.Ack(false)
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		c.log.Warn("booking update interrupted, requeueing", "error", err)
		_ = d.Nack(false, true)
	default:
		c.log.Error("booking update dropped", "error", err)
		_ = d.Nack(false, false)
	}
}

func (c *CancellationConsumer) process(ctx context.Context, body []byte, handler BookingUpdateHandler) error {
	ev, err := DecodeBookingUpdated(body)
	if err != nil {
		return err
	}
	return handler(ctx, ev)
}

// DecodeBookingUpdated parses a booking.updated body.  The booking id falls
// back to after.id when the envelope omits it.
func DecodeBookingUpdated(body []byte) (BookingUpdatedEvent, error) {
	var ev BookingUpdatedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.BookingID == "" {
		ev.BookingID = ev.After.ID
	}
	if ev.BookingID == "" {
		return ev, fmt.Errorf("%w: missing booking id", ErrMalformedEvent)
	}
	return ev, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
