package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/waitlist-rebooking/internal/router"
	"github.com/iliyamo/waitlist-rebooking/internal/utils"
)

func tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	var secret string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an ADMIN access token for the ops API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}
			tok, err := utils.NewAccessToken(secret, subject, router.AdminRole, ttl)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{"token": tok.Token, "expires": tok.Exp})
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "waitlistctl", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	cmd.Flags().StringVar(&secret, "secret", "", "Signing secret (defaults to JWT_SECRET)")
	return cmd
}
