package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/waitlist-rebooking/internal/model"
	"github.com/iliyamo/waitlist-rebooking/internal/repository"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var fastRetry = RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

// memStore is an in-memory Resource Store and Waitlist Store.  Transactions
// are serialized and staged so a failing fn leaves no trace.
type memStore struct {
	mu       sync.Mutex
	bookings map[string]model.Booking
	entries  map[string]model.WaitlistEntry

	listErrs []error // consumed one per ListWaiting call
	txErr    error   // returned by every RunTransaction when set
	txCalls  int
	// lostCommits commits the next n transactions and then reports a
	// transport error, as when the COMMIT reply never arrives.
	lostCommits int
}

func newMemStore() *memStore {
	return &memStore{bookings: map[string]model.Booking{}, entries: map[string]model.WaitlistEntry{}}
}

func (s *memStore) addEntry(e model.WaitlistEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Status == "" {
		e.Status = model.WaitlistWaiting
	}
	s.entries[e.ID] = e
}

func (s *memStore) addBooking(b model.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = b
}

func (s *memStore) activeCount(slot model.Slot) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.bookings {
		if b.Status.Occupies() && b.Slot() == slot {
			n++
		}
	}
	return n
}

func (s *memStore) entry(id string) model.WaitlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[id]
}

func (s *memStore) ListWaiting(ctx context.Context, resourceID, date string, limit int) ([]model.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.listErrs) > 0 {
		err := s.listErrs[0]
		s.listErrs = s.listErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	var out []model.WaitlistEntry
	for _, e := range s.entries {
		if e.ResourceID == resourceID && e.Date == date && e.Status == model.WaitlistWaiting {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) RunTransaction(ctx context.Context, fn func(tx repository.SlotTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCalls++
	if s.txErr != nil {
		return s.txErr
	}
	tx := &memTx{s: s, bookings: map[string]model.Booking{}, entries: map[string]model.WaitlistEntry{}}
	if err := fn(tx); err != nil {
		return err
	}
	for id, b := range tx.bookings {
		s.bookings[id] = b
	}
	for id, e := range tx.entries {
		s.entries[id] = e
	}
	if s.lostCommits > 0 {
		s.lostCommits--
		return errors.New("commit: connection reset")
	}
	return nil
}

type memTx struct {
	s        *memStore
	bookings map[string]model.Booking
	entries  map[string]model.WaitlistEntry
}

func (t *memTx) ActiveBooking(ctx context.Context, slot model.Slot) (*model.Booking, error) {
	for _, src := range []map[string]model.Booking{t.s.bookings, t.bookings} {
		for _, b := range src {
			if b.Status.Occupies() && b.Slot() == slot {
				b := b
				return &b, nil
			}
		}
	}
	return nil, nil
}

func (t *memTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	if active, _ := t.ActiveBooking(ctx, b.Slot()); active != nil {
		return repository.ErrSlotTaken
	}
	t.bookings[b.ID] = *b
	return nil
}

func (t *memTx) MarkEntryBooked(ctx context.Context, entryID, bookingID string, at time.Time) error {
	e, ok := t.s.entries[entryID]
	if !ok || e.Status != model.WaitlistWaiting {
		return repository.ErrEntryNotWaiting
	}
	e.Status = model.WaitlistBooked
	e.BookingID = &bookingID
	e.UpdatedAt = at
	t.entries[entryID] = e
	return nil
}

// mapTiers resolves tiers from a map; users listed in errs fail.
type mapTiers struct {
	tiers map[string]model.Tier
	errs  map[string]error
}

func (m mapTiers) GetTier(ctx context.Context, userID string) (model.Tier, error) {
	if err, ok := m.errs[userID]; ok {
		return model.TierStandard, err
	}
	if t, ok := m.tiers[userID]; ok {
		return t, nil
	}
	return model.TierStandard, nil
}

type sentMessage struct {
	UserID string
	Title  string
	Data   map[string]string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	fail map[string]bool
}

func (n *recordingNotifier) SendToUser(ctx context.Context, userID, title, body string, data map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail[userID] {
		return errors.New("gateway unavailable")
	}
	n.sent = append(n.sent, sentMessage{UserID: userID, Title: title, Data: data})
	return nil
}

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

func (n *recordingNotifier) usersWithType(kind string) []string {
	var users []string
	for _, m := range n.messages() {
		if m.Data["type"] == kind {
			users = append(users, m.UserID)
		}
	}
	sort.Strings(users)
	return users
}
