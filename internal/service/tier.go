package service

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/waitlist-rebooking/internal/metrics"
	"github.com/iliyamo/waitlist-rebooking/internal/model"
)

// Classification is a candidate set split by tier.  All keeps the original
// FIFO order; Priority and Standard preserve it within each tier.  Every
// entry carries its resolved PriorityTier.
type Classification struct {
	All      []model.WaitlistEntry
	Priority []model.WaitlistEntry
	Standard []model.WaitlistEntry
}

// TierClassifier resolves tiers for a candidate set at reaction time.
// Subscription status can change while a user waits, so tiers are looked
// up fresh on every reaction instead of being read from the entry.
type TierClassifier struct {
	lookup      TierLookup
	concurrency int
	log         *slog.Logger
}

func NewTierClassifier(lookup TierLookup, concurrency int, logger *slog.Logger) *TierClassifier {
	if concurrency < 1 {
		concurrency = 1
	}
	return &TierClassifier{lookup: lookup, concurrency: concurrency, log: logger.With("component", "tier-classifier")}
}

// Classify looks up every candidate's tier concurrently.  A failed lookup
// or an unknown tier value puts that candidate in the standard tier and
// the rest of the set is still classified.
func (c *TierClassifier) Classify(ctx context.Context, entries []model.WaitlistEntry) Classification {
	tiers := make([]model.Tier, len(entries))
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i := range entries {
		i := i
		g.Go(func() error {
			tier, err := c.lookup.GetTier(ctx, entries[i].UserID)
			if err != nil {
				metrics.TrackTierLookupFailure()
				c.log.Warn("tier lookup failed, treating as standard",
					"user_id", entries[i].UserID, "entry_id", entries[i].ID, "error", err)
				tier = model.TierStandard
			}
			if tier != model.TierPriority {
				tier = model.TierStandard
			}
			tiers[i] = tier
			return nil
		})
	}
	_ = g.Wait()

	out := Classification{All: make([]model.WaitlistEntry, 0, len(entries))}
	for i, e := range entries {
		e.PriorityTier = tiers[i]
		out.All = append(out.All, e)
		if e.PriorityTier == model.TierPriority {
			out.Priority = append(out.Priority, e)
		} else {
			out.Standard = append(out.Standard, e)
		}
	}
	return out
}
