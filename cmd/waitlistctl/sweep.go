package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/waitlist-rebooking/internal/app"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire waiting entries whose date has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				res, err := a.Sweeper.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				if outputJSON {
					return printJSON(cmd.OutOrStdout(), res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "today=%s scanned=%d expired=%d skipped=%d\n",
					res.Today, res.Scanned, res.Expired, res.Skipped)
				return nil
			})
		},
	}
}
