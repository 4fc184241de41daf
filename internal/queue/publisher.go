package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// NotificationPublisher hands user notifications to the push gateway via a
// topic exchange.  The channel is opened lazily and re-opened after a
// failure; publishes are serialized because an amqp.Channel is not meant
// for concurrent use.
type NotificationPublisher struct {
	url        string
	exchange   string
	routingKey string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewNotificationPublisher(url, exchange, routingKey string) *NotificationPublisher {
	return &NotificationPublisher{url: url, exchange: exchange, routingKey: routingKey}
}

// SendToUser publishes one persistent UserNotification.  The gateway fans it
// out to the user's device tokens.
func (p *NotificationPublisher) SendToUser(ctx context.Context, userID, title, body string, data map[string]string) error {
	msg := UserNotification{
		UserID: userID,
		Title:  title,
		Body:   body,
		Data:   data,
		SentAt: time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureChannel(); err != nil {
		return err
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
	if err != nil {
		p.resetLocked()
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func (p *NotificationPublisher) ensureChannel() error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.resetLocked()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *NotificationPublisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

// Close releases the broker connection.
func (p *NotificationPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}
