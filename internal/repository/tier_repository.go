package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/waitlist-rebooking/internal/model"
)

// TierRepo answers tier questions from the subscriptions table.  It is
// read-only; subscription state is owned by the billing side.
type TierRepo struct {
	db *sql.DB
}

func NewTierRepo(db *sql.DB) *TierRepo { return &TierRepo{db: db} }

// GetTier returns TierPriority for users with an active or pro
// subscription and TierStandard for everyone else, including users with
// no subscription row.
func (r *TierRepo) GetTier(ctx context.Context, userID string) (model.Tier, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM subscriptions WHERE user_id = ? LIMIT 1`, userID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TierStandard, nil
	}
	if err != nil {
		return model.TierStandard, err
	}
	return TierFromSubscription(status), nil
}

// TierFromSubscription maps a raw subscription status to a tier.
func TierFromSubscription(status string) model.Tier {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "pro":
		return model.TierPriority
	default:
		return model.TierStandard
	}
}
