package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/waitlist-rebooking/internal/model"
)

// WaitlistRepo is the Waitlist Store.  Entries are queued per resource and
// date; ordering is by created_at with id as a stable tie-breaker.
type WaitlistRepo struct {
	db *sql.DB
}

// NewWaitlistRepo returns a new WaitlistRepo bound to the given database.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

// ListWaiting returns at most limit waiting entries for the resource and
// date, oldest first.  Entries beyond the limit are left for a later
// reaction.
func (r *WaitlistRepo) ListWaiting(ctx context.Context, resourceID, date string, limit int) ([]model.WaitlistEntry, error) {
	const q = `SELECT id, user_id, user_display_name, resource_id, slot_date, preferred_time,
                      status, booking_id, created_at, updated_at
               FROM waitlist_entries
               WHERE resource_id = ? AND slot_date = ? AND status = 'waiting'
               ORDER BY created_at ASC, id ASC
               LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, resourceID, date, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]model.WaitlistEntry, 0, limit)
	for rows.Next() {
		var e model.WaitlistEntry
		var slotDate time.Time
		var preferred, bookingID sql.NullString
		var status string
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserDisplayName, &e.ResourceID, &slotDate, &preferred,
			&status, &bookingID, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Date = slotDate.Format(dateLayout)
		e.Status = model.WaitlistStatus(status)
		if preferred.Valid {
			p := preferred.String
			e.PreferredTime = &p
		}
		if bookingID.Valid {
			b := bookingID.String
			e.BookingID = &b
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListExpiredWaitingIDs returns up to limit ids of waiting entries whose
// date is strictly before today (YYYY-MM-DD), ordered by id and starting
// after afterID.  Callers page by passing the last id of the previous page.
func (r *WaitlistRepo) ListExpiredWaitingIDs(ctx context.Context, today, afterID string, limit int) ([]string, error) {
	const q = `SELECT id FROM waitlist_entries
               WHERE status = 'waiting' AND slot_date < ? AND id > ?
               ORDER BY id ASC
               LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, today, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// ExpireWaiting marks the given entries expired if they are still waiting
// and returns how many rows changed.  Entries that were booked or
// cancelled in the meantime are left untouched.  An empty slice is a no-op.
func (r *WaitlistRepo) ExpireWaiting(ctx context.Context, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `UPDATE waitlist_entries SET status = 'expired', updated_at = ?
              WHERE status = 'waiting' AND id IN (` + placeholders + `)`
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, at.UTC())
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
