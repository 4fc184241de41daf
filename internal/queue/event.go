// Package queue defines message payloads exchanged over the message broker
// and the AMQP plumbing that carries them.
package queue

import "github.com/iliyamo/waitlist-rebooking/internal/model"

// BookingUpdatedEvent is emitted by the booking service every time a
// booking document changes.  Delivery is at-least-once and may repeat, so
// consumers must act on the before/after edge, not on the after state alone.
type BookingUpdatedEvent struct {
	BookingID  string        `json:"booking_id"`
	Before     model.Booking `json:"before"`
	After      model.Booking `json:"after"`
	OccurredAt string        `json:"occurred_at,omitempty"`
}

// IsCancellation reports whether the event moved the booking into cancelled.
func (e BookingUpdatedEvent) IsCancellation() bool {
	return model.IsCancellationTransition(e.Before, e.After)
}

// UserNotification asks the push gateway to deliver a message to all of a
// user's devices.  Token resolution and delivery belong to the gateway.
type UserNotification struct {
	UserID string            `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
	SentAt string            `json:"sent_at"`
}
