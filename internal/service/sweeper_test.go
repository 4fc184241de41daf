package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/waitlist-rebooking/internal/model"
)

// memExpiry mimics WaitlistRepo paging and the conditional expire write.
type memExpiry struct {
	entries map[string]model.WaitlistEntry
	// beforeExpire runs ahead of each ExpireWaiting call, letting a test
	// book an entry between the list and the write.
	beforeExpire func()
	listErr      error
	listCalls    int
}

func (m *memExpiry) ListExpiredWaitingIDs(ctx context.Context, today, afterID string, limit int) ([]string, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var ids []string
	for id, e := range m.entries {
		if e.Status == model.WaitlistWaiting && e.Date < today && id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *memExpiry) ExpireWaiting(ctx context.Context, ids []string, at time.Time) (int64, error) {
	if m.beforeExpire != nil {
		m.beforeExpire()
	}
	var n int64
	for _, id := range ids {
		e := m.entries[id]
		if e.Status != model.WaitlistWaiting {
			continue
		}
		e.Status = model.WaitlistExpired
		e.UpdatedAt = at
		m.entries[id] = e
		n++
	}
	return n, nil
}

func dated(id, date string, status model.WaitlistStatus) model.WaitlistEntry {
	return model.WaitlistEntry{ID: id, UserID: "u-" + id, ResourceID: "court-1", Date: date, Status: status}
}

func TestSweep_ExpiresOnlyPastWaitingEntries(t *testing.T) {
	store := &memExpiry{entries: map[string]model.WaitlistEntry{
		"a": dated("a", "2024-02-13", model.WaitlistWaiting),
		"b": dated("b", "2024-02-14", model.WaitlistWaiting),
		"c": dated("c", "2024-02-15", model.WaitlistWaiting), // today
		"d": dated("d", "2024-02-16", model.WaitlistWaiting),
		"e": dated("e", "2024-02-10", model.WaitlistBooked),
		"f": dated("f", "2024-02-10", model.WaitlistCancelled),
	}}
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	s := NewSweeper(store, ny, 2, fastRetry, discardLogger())
	// 03:00 UTC on the 16th is still the 15th in New York.
	s.Now = func() time.Time { return time.Date(2024, 2, 16, 3, 0, 0, 0, time.UTC) }

	res, err := s.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SweepResult{Today: "2024-02-15", Scanned: 2, Expired: 2}, res)
	assert.Equal(t, model.WaitlistExpired, store.entries["a"].Status)
	assert.Equal(t, model.WaitlistExpired, store.entries["b"].Status)
	assert.Equal(t, model.WaitlistWaiting, store.entries["c"].Status)
	assert.Equal(t, model.WaitlistWaiting, store.entries["d"].Status)
	assert.Equal(t, model.WaitlistBooked, store.entries["e"].Status)
	assert.Equal(t, model.WaitlistCancelled, store.entries["f"].Status)
}

func TestSweep_PagesThroughLargeBacklog(t *testing.T) {
	entries := map[string]model.WaitlistEntry{}
	for i := 0; i < 7; i++ {
		id := string(rune('a' + i))
		entries[id] = dated(id, "2024-01-01", model.WaitlistWaiting)
	}
	store := &memExpiry{entries: entries}
	s := NewSweeper(store, time.UTC, 3, fastRetry, discardLogger())
	s.Now = func() time.Time { return time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC) }

	res, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, res.Scanned)
	assert.EqualValues(t, 7, res.Expired)
	assert.Equal(t, 3, store.listCalls)
}

func TestSweep_LeavesConcurrentlyBookedEntryAlone(t *testing.T) {
	store := &memExpiry{entries: map[string]model.WaitlistEntry{
		"a": dated("a", "2024-02-01", model.WaitlistWaiting),
		"b": dated("b", "2024-02-01", model.WaitlistWaiting),
	}}
	store.beforeExpire = func() {
		e := store.entries["b"]
		e.Status = model.WaitlistBooked
		store.entries["b"] = e
	}
	s := NewSweeper(store, time.UTC, 10, fastRetry, discardLogger())
	s.Now = func() time.Time { return time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC) }

	res, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Scanned)
	assert.EqualValues(t, 1, res.Expired)
	assert.EqualValues(t, 1, res.Skipped)
	assert.Equal(t, model.WaitlistBooked, store.entries["b"].Status)
}

func TestSweep_ReturnsStoreFailure(t *testing.T) {
	store := &memExpiry{listErr: errors.New("connection reset")}
	s := NewSweeper(store, nil, 0, fastRetry, discardLogger())

	_, err := s.Sweep(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.listErr)
	assert.Equal(t, 3, store.listCalls)
}
