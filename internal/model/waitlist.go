package model

import "time"

// WaitlistStatus is the state of a waitlist entry.  An entry only ever
// leaves waiting; booked, expired and cancelled are terminal.
type WaitlistStatus string

const (
	WaitlistWaiting   WaitlistStatus = "waiting"
	WaitlistBooked    WaitlistStatus = "booked"
	WaitlistExpired   WaitlistStatus = "expired"
	WaitlistCancelled WaitlistStatus = "cancelled"
)

func (s WaitlistStatus) IsTerminal() bool { return s != WaitlistWaiting }

// Tier classifies a user for reallocation.  Priority users are auto-booked;
// standard users are only told that a spot opened.
type Tier string

const (
	TierStandard Tier = "standard"
	TierPriority Tier = "priority"
)

// WaitlistEntry mirrors a row of `waitlist_entries`.  Entries are keyed on
// resource and date only; PreferredTime is advisory.  PriorityTier is not
// persisted, it is resolved per reaction.
type WaitlistEntry struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	UserDisplayName string         `json:"user_display_name,omitempty"`
	ResourceID      string         `json:"resource_id"`
	Date            string         `json:"date"`
	PreferredTime   *string        `json:"preferred_time,omitempty"`
	Status          WaitlistStatus `json:"status"`
	PriorityTier    Tier           `json:"priority_tier,omitempty"`
	BookingID       *string        `json:"booking_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
