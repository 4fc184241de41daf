package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Occupies reports whether a booking in this status holds its slot.
func (s BookingStatus) Occupies() bool {
	return s == BookingPending || s == BookingConfirmed
}

// PaymentStatus is decided outside this engine; auto-bookings start as pending.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// BookingOrigin records how a booking came to exist.
type BookingOrigin string

const (
	OriginDirect       BookingOrigin = "direct"
	OriginWaitlistAuto BookingOrigin = "waitlist_auto"
)

// Slot addresses a bookable unit of time at a resource.  Slots are never
// stored as rows; a slot is free when no pending or confirmed booking
// carries its key.
//
// Fields:
//  ResourceID – venue resource (court, field, lane).
//  Date       – calendar day in YYYY-MM-DD form.
//  StartTime  – local start time in HH:MM form.
//  EndTime    – local end time in HH:MM form.
type Slot struct {
	ResourceID string `json:"resource_id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

// Key returns the composite slot key used by the active_slot_key column.
func (s Slot) Key() string {
	return s.ResourceID + "|" + s.Date + "|" + s.StartTime + "|" + s.EndTime
}

// Booking is one user's claim on a slot, as stored in the `bookings`
// table.  At most one booking per slot key may be pending or confirmed.
//
// Fields:
//  ID                    – primary key (uuid).
//  ResourceID            – resource the slot belongs to.
//  SubResourceID         – optional sub-resource (e.g. court number).
//  Date, StartTime, EndTime – the rest of the slot key.
//  UserID                – owner of the booking.
//  UserDisplayName       – denormalized name for notifications.
//  Status                – pending, confirmed or cancelled.
//  PaymentStatus         – pending, paid or failed.
//  Origin                – direct or waitlist_auto.
//  OriginWaitlistEntryID – waitlist entry that produced an auto-booking.
//  CreatedAt, UpdatedAt  – timestamps in UTC.
type Booking struct {
	ID                    string        `json:"id"`
	ResourceID            string        `json:"resource_id"`
	SubResourceID         string        `json:"sub_resource_id,omitempty"`
	Date                  string        `json:"date"`
	StartTime             string        `json:"start_time"`
	EndTime               string        `json:"end_time"`
	UserID                string        `json:"user_id"`
	UserDisplayName       string        `json:"user_display_name,omitempty"`
	Status                BookingStatus `json:"status"`
	PaymentStatus         PaymentStatus `json:"payment_status"`
	Origin                BookingOrigin `json:"origin"`
	OriginWaitlistEntryID *string       `json:"origin_waitlist_entry_id,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// Slot returns the slot key of the booking.
func (b Booking) Slot() Slot {
	return Slot{ResourceID: b.ResourceID, Date: b.Date, StartTime: b.StartTime, EndTime: b.EndTime}
}

// IsCancellationTransition reports whether an update moved a booking into
// the cancelled state.  Only this edge frees a slot; level-triggered
// re-deliveries of an already cancelled booking are ignored.
func IsCancellationTransition(before, after Booking) bool {
	return before.Status != BookingCancelled && after.Status == BookingCancelled
}
