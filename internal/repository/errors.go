// Package repository holds the MySQL-backed stores used by the rebooking
// engine and the sentinel errors that let the service layer tell expected
// contention apart from transient failures.  ErrSlotTaken and
// ErrEntryNotWaiting describe lost races and are outcomes, not faults;
// anything else coming out of a repository is treated as a store failure.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrSlotTaken is returned when a slot already has a pending or confirmed
// booking, either observed inside the transaction or enforced by the
// unique active_slot_key index.
var ErrSlotTaken = errors.New("slot already taken")

// ErrEntryNotWaiting is returned when a waitlist entry left the waiting
// state (booked, expired or cancelled) before it could be allocated.
var ErrEntryNotWaiting = errors.New("waitlist entry is no longer waiting")

// ErrBookingNotFound is returned by lookups for an unknown booking id.
var ErrBookingNotFound = errors.New("booking not found")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
