package service

import (
	"context"
	"time"

	"github.com/iliyamo/waitlist-rebooking/internal/model"
	"github.com/iliyamo/waitlist-rebooking/internal/queue"
	"github.com/iliyamo/waitlist-rebooking/internal/repository"
)

// WaitlistLister reads the waiting queue of one resource/date, oldest first.
type WaitlistLister interface {
	ListWaiting(ctx context.Context, resourceID, date string, limit int) ([]model.WaitlistEntry, error)
}

// TierLookup resolves a user's tier.  Implementations return an error for
// lookups that could not be answered; callers decide the fallback.
type TierLookup interface {
	GetTier(ctx context.Context, userID string) (model.Tier, error)
}

// SlotTransactor runs fn as one atomic read-modify-write against the
// Resource Store.
type SlotTransactor interface {
	RunTransaction(ctx context.Context, fn func(tx repository.SlotTx) error) error
}

// Notifier delivers a message to every device of a user.  Delivery is best
// effort; callers log failures and move on.
type Notifier interface {
	SendToUser(ctx context.Context, userID, title, body string, data map[string]string) error
}

// ExpiryStore is the part of the Waitlist Store used by the sweeper.
type ExpiryStore interface {
	ListExpiredWaitingIDs(ctx context.Context, today, afterID string, limit int) ([]string, error)
	ExpireWaiting(ctx context.Context, ids []string, at time.Time) (int64, error)
}

// OutcomeDispatcher turns an allocation outcome into notifications.
type OutcomeDispatcher interface {
	Dispatch(ctx context.Context, out Outcome)
}

// EventSource delivers booking updates to handler until ctx is done.
type EventSource interface {
	Run(ctx context.Context, handler queue.BookingUpdateHandler) error
}
