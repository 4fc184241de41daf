package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/waitlist-rebooking/internal/metrics"
)

// SweepResult summarizes one sweep.  Skipped counts entries that were
// listed but had already left waiting (typically booked) by the time the
// expire write ran.
type SweepResult struct {
	Today   string `json:"today"`
	Scanned int    `json:"scanned"`
	Expired int64  `json:"expired"`
	Skipped int64  `json:"skipped"`
}

// Sweeper expires waiting entries whose date has passed.  It only touches
// the Waitlist Store.
type Sweeper struct {
	store    ExpiryStore
	loc      *time.Location
	pageSize int
	retry    RetryPolicy
	log      *slog.Logger

	Now func() time.Time
}

func NewSweeper(store ExpiryStore, loc *time.Location, pageSize int, retry RetryPolicy, logger *slog.Logger) *Sweeper {
	if loc == nil {
		loc = time.UTC
	}
	if pageSize < 1 {
		pageSize = 200
	}
	return &Sweeper{store: store, loc: loc, pageSize: pageSize, retry: retry, log: logger.With("component", "sweeper"), Now: time.Now}
}

// Sweep pages through waiting entries dated before today (in the sweeper's
// time zone) and marks them expired.  The write is conditional on the
// entry still waiting, so an entry booked concurrently stays booked.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.Now()
	res := SweepResult{Today: now.In(s.loc).Format("2006-01-02")}
	after := ""
	for {
		var ids []string
		err := s.retry.Do(ctx, func() error {
			var lerr error
			ids, lerr = s.store.ListExpiredWaitingIDs(ctx, res.Today, after, s.pageSize)
			return lerr
		})
		if err != nil {
			metrics.TrackSweep("error", res.Expired)
			return res, fmt.Errorf("list expired entries: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		var n int64
		err = s.retry.Do(ctx, func() error {
			var eerr error
			n, eerr = s.store.ExpireWaiting(ctx, ids, now)
			return eerr
		})
		if err != nil {
			metrics.TrackSweep("error", res.Expired)
			return res, fmt.Errorf("expire entries: %w", err)
		}
		res.Scanned += len(ids)
		res.Expired += n
		res.Skipped += int64(len(ids)) - n
		after = ids[len(ids)-1]
		if len(ids) < s.pageSize {
			break
		}
	}
	metrics.TrackSweep("ok", res.Expired)
	s.log.Info("waitlist sweep finished",
		"today", res.Today, "scanned", res.Scanned, "expired", res.Expired, "skipped", res.Skipped)
	return res, nil
}
