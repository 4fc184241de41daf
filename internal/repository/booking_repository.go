package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/waitlist-rebooking/internal/model"
)

const dateLayout = "2006-01-02"

// SlotTx is the set of reads and writes the allocator may perform inside a
// single Resource Store transaction.  Every method runs against the same
// *sql.Tx, so either all writes commit or none do.
type SlotTx interface {
	// ActiveBooking re-reads the slot and returns its pending or confirmed
	// booking, or nil when the slot is free.  The row is locked until the
	// transaction ends.
	ActiveBooking(ctx context.Context, slot model.Slot) (*model.Booking, error)
	// InsertBooking creates b.  A duplicate active slot key yields ErrSlotTaken.
	InsertBooking(ctx context.Context, b *model.Booking) error
	// MarkEntryBooked moves a waiting entry to booked.  An entry that is no
	// longer waiting yields ErrEntryNotWaiting.
	MarkEntryBooked(ctx context.Context, entryID, bookingID string, at time.Time) error
}

// BookingRepo is the Resource Store: it reads bookings and runs the
// allocation transaction.  All timestamps are stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying handle for health checks.
func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingColumns = `id, resource_id, sub_resource_id, slot_date, start_time, end_time,
    user_id, user_display_name, status, payment_status, origin, origin_waitlist_entry_id,
    created_at, updated_at`

// RunTransaction executes fn inside a READ COMMITTED transaction and
// commits only if fn returns nil.  Any error from fn or from COMMIT rolls
// the whole unit back, so a booking is never left without its waitlist
// update or the other way round.
func (r *BookingRepo) RunTransaction(ctx context.Context, fn func(tx SlotTx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&slotTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		if isDuplicateEntry(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// GetByID loads a booking by id.  ErrBookingNotFound is returned when no
// row matches.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

type slotTx struct {
	tx *sql.Tx
}

func (s *slotTx) ActiveBooking(ctx context.Context, slot model.Slot) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings
               WHERE resource_id = ? AND slot_date = ? AND start_time = ? AND end_time = ?
                 AND status IN ('pending','confirmed')
               LIMIT 1 FOR UPDATE`
	row := s.tx.QueryRowContext(ctx, q, slot.ResourceID, slot.Date, slot.StartTime, slot.EndTime)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *slotTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (id, resource_id, sub_resource_id, slot_date, start_time, end_time,
                   user_id, user_display_name, status, payment_status, origin, origin_waitlist_entry_id,
                   created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.tx.ExecContext(ctx, q,
		b.ID, b.ResourceID, nullString(b.SubResourceID), b.Date, b.StartTime, b.EndTime,
		b.UserID, b.UserDisplayName, string(b.Status), string(b.PaymentStatus), string(b.Origin),
		b.OriginWaitlistEntryID, b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	)
	if isDuplicateEntry(err) {
		return ErrSlotTaken
	}
	return err
}

func (s *slotTx) MarkEntryBooked(ctx context.Context, entryID, bookingID string, at time.Time) error {
	const q = `UPDATE waitlist_entries SET status = 'booked', booking_id = ?, updated_at = ?
               WHERE id = ? AND status = 'waiting'`
	res, err := s.tx.ExecContext(ctx, q, bookingID, at.UTC(), entryID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEntryNotWaiting
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var b model.Booking
	var subResource, originEntry sql.NullString
	var slotDate time.Time
	var status, payment, origin string
	if err := row.Scan(
		&b.ID, &b.ResourceID, &subResource, &slotDate, &b.StartTime, &b.EndTime,
		&b.UserID, &b.UserDisplayName, &status, &payment, &origin, &originEntry,
		&b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.SubResourceID = subResource.String
	b.Date = slotDate.Format(dateLayout)
	b.Status = model.BookingStatus(status)
	b.PaymentStatus = model.PaymentStatus(payment)
	b.Origin = model.BookingOrigin(origin)
	if originEntry.Valid {
		id := originEntry.String
		b.OriginWaitlistEntryID = &id
	}
	return &b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
