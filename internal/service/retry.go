package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/iliyamo/waitlist-rebooking/internal/repository"
)

// RetryPolicy bounds how hard a reaction retries a failing store call.
type RetryPolicy struct {
	MaxAttempts    uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Do calls op until it succeeds, returns a contention error, or the
// attempt ceiling is reached.  Contention errors are returned on the first
// occurrence since retrying cannot change who won the slot.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	eb := backoff.NewExponentialBackOff()
	if p.InitialBackoff > 0 {
		eb.InitialInterval = p.InitialBackoff
	}
	if p.MaxBackoff > 0 {
		eb.MaxInterval = p.MaxBackoff
	}
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, attempts-1), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if isContention(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

// isContention reports whether err means another writer won the slot or
// the entry, which is an outcome rather than a failure.
func isContention(err error) bool {
	return errors.Is(err, repository.ErrSlotTaken) || errors.Is(err, repository.ErrEntryNotWaiting)
}
