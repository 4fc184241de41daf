// Package metrics holds the Prometheus collectors of the rebooking engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Allocation results.
const (
	ResultBooked     = "booked"
	ResultConflict   = "conflict"
	ResultNoPriority = "no_priority"
	ResultEmpty      = "empty"
	ResultDropped    = "dropped"
)

var (
	bookingEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitlist_booking_events_total",
			Help: "Booking update events seen by the allocator",
		},
		[]string{"action"}, // reacted, ignored, duplicate
	)

	allocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitlist_allocations_total",
			Help: "Allocation reactions by result",
		},
		[]string{"result"},
	)

	allocationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "waitlist_allocation_duration_seconds",
			Help:    "Time spent reacting to one freed slot",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitlist_notifications_total",
			Help: "Notification sends by message kind and result",
		},
		[]string{"kind", "result"},
	)

	tierLookupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waitlist_tier_lookup_failures_total",
			Help: "Tier lookups that failed and fell back to the standard tier",
		},
	)

	expired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waitlist_entries_expired_total",
			Help: "Waitlist entries moved to expired by the sweeper",
		},
	)

	sweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitlist_sweeps_total",
			Help: "Sweeper runs by result",
		},
		[]string{"result"}, // ok, error, skipped
	)
)

func TrackBookingEvent(action string) { bookingEvents.WithLabelValues(action).Inc() }

func TrackAllocation(result string, seconds float64) {
	allocations.WithLabelValues(result).Inc()
	allocationDuration.Observe(seconds)
}

func TrackNotification(kind string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	notifications.WithLabelValues(kind, result).Inc()
}

func TrackTierLookupFailure() { tierLookupFailures.Inc() }

func TrackSweep(result string, expiredCount int64) {
	sweeps.WithLabelValues(result).Inc()
	if expiredCount > 0 {
		expired.Add(float64(expiredCount))
	}
}
