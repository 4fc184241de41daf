package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/waitlist-rebooking/internal/app"
	"github.com/iliyamo/waitlist-rebooking/internal/model"
	"github.com/iliyamo/waitlist-rebooking/internal/service"
)

func reallocateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reallocate <bookingID>",
		Short: "Re-run allocation for the slot freed by a cancelled booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				b, err := a.Bookings.GetByID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if b.Status != model.BookingCancelled {
					return fmt.Errorf("booking %s is %s, not cancelled", b.ID, b.Status)
				}
				out, err := a.Allocator.Reallocate(cmd.Context(), *b)
				if err != nil {
					return err
				}
				if outputJSON {
					return printJSON(cmd.OutOrStdout(), out)
				}
				fmt.Fprintln(cmd.OutOrStdout(), describeOutcome(out))
				return nil
			})
		},
	}
}

func describeOutcome(out service.Outcome) string {
	slot := fmt.Sprintf("%s %s %s-%s", out.Slot.ResourceID, out.Slot.Date, out.Slot.StartTime, out.Slot.EndTime)
	switch {
	case out.Winner != nil && out.NewBookingID != nil:
		return fmt.Sprintf("%s: booked %s for user %s (entry %s), notified %d others",
			slot, *out.NewBookingID, out.Winner.UserID, out.Winner.ID, len(out.Remainder))
	case out.Conflict:
		return fmt.Sprintf("%s: slot already taken, notified %d waiting", slot, len(out.Remainder))
	case len(out.Remainder) > 0:
		return fmt.Sprintf("%s: no priority waiter, notified %d waiting", slot, len(out.Remainder))
	default:
		return fmt.Sprintf("%s: nobody waiting", slot)
	}
}
