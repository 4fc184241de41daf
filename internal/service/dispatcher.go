package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/waitlist-rebooking/internal/metrics"
	"github.com/iliyamo/waitlist-rebooking/internal/model"
)

// Message kinds carried in the data payload.
const (
	KindWinner    = "waitlist_booked"
	KindAvailable = "waitlist_spot_available"
)

// Dispatcher sends the winner and availability messages for an outcome.
// It never reports failure: the allocation is already committed and a
// missed notification only costs the user a nudge.
type Dispatcher struct {
	notifier    Notifier
	sendTimeout time.Duration
	log         *slog.Logger
}

func NewDispatcher(n Notifier, sendTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	if sendTimeout <= 0 {
		sendTimeout = 5 * time.Second
	}
	return &Dispatcher{notifier: n, sendTimeout: sendTimeout, log: logger.With("component", "dispatcher")}
}

// Dispatch notifies the winner, if any, and then every remainder entry
// regardless of tier.
func (d *Dispatcher) Dispatch(ctx context.Context, out Outcome) {
	if out.Winner != nil && out.NewBookingID != nil {
		title, body, data := winnerMessage(out, *out.Winner, *out.NewBookingID)
		d.send(ctx, "winner", *out.Winner, title, body, data)
	}
	for _, e := range out.Remainder {
		title, body, data := availableMessage(out, e)
		d.send(ctx, "available", e, title, body, data)
	}
}

func (d *Dispatcher) send(ctx context.Context, kind string, e model.WaitlistEntry, title, body string, data map[string]string) {
	sctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	err := d.notifier.SendToUser(sctx, e.UserID, title, body, data)
	metrics.TrackNotification(kind, err)
	if err != nil {
		d.log.Warn("notification not delivered", "kind", kind, "user_id", e.UserID, "entry_id", e.ID, "error", err)
	}
}

func winnerMessage(out Outcome, winner model.WaitlistEntry, bookingID string) (string, string, map[string]string) {
	body := fmt.Sprintf("A spot opened on %s from %s to %s and it is now booked for you. Your card on file will be charged.",
		out.Slot.Date, out.Slot.StartTime, out.Slot.EndTime)
	return "You got the spot!", body, map[string]string{
		"type":       KindWinner,
		"bookingId":  bookingID,
		"entryId":    winner.ID,
		"resourceId": out.Slot.ResourceID,
		"date":       out.Slot.Date,
		"startTime":  out.Slot.StartTime,
		"endTime":    out.Slot.EndTime,
	}
}

func availableMessage(out Outcome, e model.WaitlistEntry) (string, string, map[string]string) {
	body := fmt.Sprintf("A spot opened on %s from %s to %s. Book now before it is gone.",
		out.Slot.Date, out.Slot.StartTime, out.Slot.EndTime)
	return "A spot just opened up", body, map[string]string{
		"type":       KindAvailable,
		"entryId":    e.ID,
		"resourceId": out.Slot.ResourceID,
		"date":       out.Slot.Date,
		"startTime":  out.Slot.StartTime,
		"endTime":    out.Slot.EndTime,
	}
}

// LogNotifier writes notifications to the log instead of a push gateway.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{log: logger.With("component", "notify")}
}

func (n *LogNotifier) SendToUser(ctx context.Context, userID, title, body string, data map[string]string) error {
	n.log.InfoContext(ctx, title, "user_id", userID, "body", body, "type", data["type"])
	return nil
}
