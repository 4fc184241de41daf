package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/waitlist-rebooking/internal/app"
	"github.com/iliyamo/waitlist-rebooking/internal/config"
	"github.com/iliyamo/waitlist-rebooking/internal/obs"
)

var outputJSON bool

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "waitlistctl",
		Short:        "Operator tool for the waitlist rebooking engine",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output JSON")
	root.AddCommand(sweepCmd())
	root.AddCommand(reallocateCmd())
	root.AddCommand(tokenCmd())
	return root
}

// withApp builds the engine from the environment, runs fn and closes it.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg := config.Load()
	wcfg, err := config.LoadWaitlistConfig()
	if err != nil {
		return fmt.Errorf("waitlist config: %w", err)
	}
	a, err := app.Build(ctx, cfg, wcfg, obs.NewLogger(os.Stderr, cfg.LogLevel))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
