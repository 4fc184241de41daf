package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/waitlist-rebooking/internal/metrics"
	"github.com/iliyamo/waitlist-rebooking/internal/model"
	"github.com/iliyamo/waitlist-rebooking/internal/queue"
	"github.com/iliyamo/waitlist-rebooking/internal/repository"
)

// ErrDropped wraps the cause of a reaction abandoned after its retries.
var ErrDropped = errors.New("cancellation reaction dropped")

// Outcome is the result of one reaction to a freed slot.  Remainder is
// every candidate considered minus the winner, across both tiers.
// Conflict is set when the priority winner lost the slot to another
// writer; no booking was created in that case.
type Outcome struct {
	Slot          model.Slot            `json:"slot"`
	SubResourceID string                `json:"sub_resource_id,omitempty"`
	Winner        *model.WaitlistEntry  `json:"winner"`
	NewBookingID  *string               `json:"new_booking_id"`
	Remainder     []model.WaitlistEntry `json:"remainder"`
	Conflict      bool                  `json:"conflict"`
}

// AllocatorConfig bounds the work of a single reaction.
type AllocatorConfig struct {
	CandidateLimit int
	Retry          RetryPolicy
}

// Allocator reacts to booking cancellations by auto-booking the earliest
// priority-tier waiter into the freed slot and handing the outcome to the
// dispatcher.  It holds no mutable state of its own; exclusion on the slot
// comes entirely from the Resource Store transaction.
type Allocator struct {
	waitlist   WaitlistLister
	tiers      *TierClassifier
	slots      SlotTransactor
	dispatcher OutcomeDispatcher
	guard      *EventGuard
	cfg        AllocatorConfig
	log        *slog.Logger
	tracer     trace.Tracer

	// Now and NewID are swapped in tests.
	Now   func() time.Time
	NewID func() string
}

// NewAllocator wires an allocator.  guard may be nil, in which case
// duplicate deliveries are absorbed by the transaction alone.
func NewAllocator(waitlist WaitlistLister, tiers *TierClassifier, slots SlotTransactor, dispatcher OutcomeDispatcher, guard *EventGuard, cfg AllocatorConfig, logger *slog.Logger) *Allocator {
	if cfg.CandidateLimit < 1 {
		cfg.CandidateLimit = 20
	}
	return &Allocator{
		waitlist:   waitlist,
		tiers:      tiers,
		slots:      slots,
		dispatcher: dispatcher,
		guard:      guard,
		cfg:        cfg,
		log:        logger.With("component", "allocator"),
		tracer:     otel.Tracer("github.com/iliyamo/waitlist-rebooking/allocator"),
		Now:        time.Now,
		NewID:      uuid.NewString,
	}
}

// HandleBookingUpdate adapts React to the queue consumer's handler shape.
func (a *Allocator) HandleBookingUpdate(ctx context.Context, ev queue.BookingUpdatedEvent) error {
	_, err := a.React(ctx, ev)
	return err
}

// React processes one booking update.  Updates that are not a transition
// into cancelled, and repeats of a cancellation that already produced an
// outcome, return a nil outcome and no error.
func (a *Allocator) React(ctx context.Context, ev queue.BookingUpdatedEvent) (*Outcome, error) {
	if !ev.IsCancellation() {
		metrics.TrackBookingEvent("ignored")
		return nil, nil
	}
	if a.guard.Seen(ctx, ev.BookingID) {
		metrics.TrackBookingEvent("duplicate")
		a.log.Info("duplicate cancellation ignored", "booking_id", ev.BookingID)
		return nil, nil
	}
	metrics.TrackBookingEvent("reacted")

	out, err := a.Allocate(ctx, ev.After)
	if err != nil {
		a.log.Error("cancellation reaction dropped",
			"booking_id", ev.BookingID, "resource_id", ev.After.ResourceID, "date", ev.After.Date, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrDropped, err)
	}

	// The outcome is committed; finish reporting it even if the caller is
	// shutting down.
	ctx = context.WithoutCancel(ctx)
	if !a.guard.Mark(ctx, ev.BookingID) && out.Winner == nil {
		// A concurrent delivery of the same event already reported this slot.
		metrics.TrackBookingEvent("duplicate")
		a.log.Info("concurrent duplicate cancellation, skipping notifications", "booking_id", ev.BookingID)
		return &out, nil
	}
	a.dispatcher.Dispatch(ctx, out)
	return &out, nil
}

// Reallocate runs Allocate and Dispatch for an already cancelled booking
// without consulting the guard.  It backs the admin replay path.
func (a *Allocator) Reallocate(ctx context.Context, freed model.Booking) (Outcome, error) {
	out, err := a.Allocate(ctx, freed)
	if err != nil {
		return Outcome{}, err
	}
	a.dispatcher.Dispatch(ctx, out)
	return out, nil
}

// Allocate picks at most one winner for the slot freed by the given
// booking and books it atomically.  Only the first priority-tier candidate
// is tried; if it loses the race the reaction ends with Conflict set and
// remaining candidates wait for the next cancellation.  Store failures
// that outlast the retry policy are returned as errors.
func (a *Allocator) Allocate(ctx context.Context, freed model.Booking) (out Outcome, err error) {
	slot := freed.Slot()
	start := time.Now()
	result := metrics.ResultDropped
	ctx, span := a.tracer.Start(ctx, "waitlist.allocate", trace.WithAttributes(
		attribute.String("slot.resource_id", slot.ResourceID),
		attribute.String("slot.date", slot.Date),
		attribute.String("slot.start_time", slot.StartTime),
	))
	defer func() {
		metrics.TrackAllocation(result, time.Since(start).Seconds())
		span.SetAttributes(attribute.String("waitlist.result", result))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var entries []model.WaitlistEntry
	err = a.cfg.Retry.Do(ctx, func() error {
		var lerr error
		entries, lerr = a.waitlist.ListWaiting(ctx, slot.ResourceID, slot.Date, a.cfg.CandidateLimit)
		return lerr
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("list waiting: %w", err)
	}

	out = Outcome{Slot: slot, SubResourceID: freed.SubResourceID, Remainder: []model.WaitlistEntry{}}
	candidates := uniqueByUser(entries)
	if len(candidates) == 0 {
		result = metrics.ResultEmpty
		return out, nil
	}

	classes := a.tiers.Classify(ctx, candidates)
	if len(classes.Priority) == 0 {
		result = metrics.ResultNoPriority
		out.Remainder = classes.All
		a.log.Info("no priority candidate, notifying only",
			"resource_id", slot.ResourceID, "date", slot.Date, "candidates", len(classes.All))
		return out, nil
	}

	winner := classes.Priority[0]
	bookingID, err := a.book(ctx, freed, winner)
	switch {
	case err == nil:
		result = metrics.ResultBooked
		winner.Status = model.WaitlistBooked
		winner.BookingID = &bookingID
		out.Winner = &winner
		out.NewBookingID = &bookingID
		out.Remainder = without(classes.All, winner.ID)
		a.log.Info("waitlist auto-booking created",
			"resource_id", slot.ResourceID, "date", slot.Date, "start_time", slot.StartTime,
			"entry_id", winner.ID, "user_id", winner.UserID, "booking_id", bookingID)
	case isContention(err):
		err = nil
		result = metrics.ResultConflict
		out.Conflict = true
		out.Remainder = classes.All
		a.log.Info("slot taken before auto-booking committed",
			"resource_id", slot.ResourceID, "date", slot.Date, "start_time", slot.StartTime, "entry_id", winner.ID)
	default:
		return Outcome{}, fmt.Errorf("allocate slot: %w", err)
	}
	return out, nil
}

// book creates the auto-booking and flips the winning entry in one
// transaction.  The slot is re-read inside the transaction; an occupied
// slot aborts with ErrSlotTaken before anything is written, unless the
// occupant is this booking, committed by an attempt whose reply was lost.
func (a *Allocator) book(ctx context.Context, freed model.Booking, winner model.WaitlistEntry) (string, error) {
	slot := freed.Slot()
	id := a.NewID()
	now := a.Now().UTC()
	entryID := winner.ID
	booking := &model.Booking{
		ID:                    id,
		ResourceID:            slot.ResourceID,
		SubResourceID:         freed.SubResourceID,
		Date:                  slot.Date,
		StartTime:             slot.StartTime,
		EndTime:               slot.EndTime,
		UserID:                winner.UserID,
		UserDisplayName:       winner.UserDisplayName,
		Status:                model.BookingPending,
		PaymentStatus:         model.PaymentPending,
		Origin:                model.OriginWaitlistAuto,
		OriginWaitlistEntryID: &entryID,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	err := a.cfg.Retry.Do(ctx, func() error {
		return a.slots.RunTransaction(ctx, func(tx repository.SlotTx) error {
			active, err := tx.ActiveBooking(ctx, slot)
			if err != nil {
				return err
			}
			if active != nil {
				if active.ID == id {
					// An earlier attempt committed but its result was lost.
					return nil
				}
				return repository.ErrSlotTaken
			}
			if err := tx.InsertBooking(ctx, booking); err != nil {
				return err
			}
			return tx.MarkEntryBooked(ctx, winner.ID, id, now)
		})
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// uniqueByUser keeps the earliest entry of each user.  A user should hold
// one waiting entry per resource and date, but that is enforced upstream.
func uniqueByUser(entries []model.WaitlistEntry) []model.WaitlistEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]model.WaitlistEntry, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.UserID]; ok {
			continue
		}
		seen[e.UserID] = struct{}{}
		out = append(out, e)
	}
	return out
}

func without(entries []model.WaitlistEntry, id string) []model.WaitlistEntry {
	out := make([]model.WaitlistEntry, 0, len(entries))
	for _, e := range entries {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}
