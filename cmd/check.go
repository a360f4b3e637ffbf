package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [url...]",
		Short: "Run a single pass over the given URLs (or the configured ones) and exit",
		Long: `Checks each URL once and prints the reports. The command exits non-zero
when any page could not be fetched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			cfg := e.cfg
			if len(args) > 0 {
				cfg.Monitor.URLs = args
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid arguments: %w", err)
			}

			a, err := newApp(cmd.Context(), cfg, e.stdout, e.logger)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			defer a.Close()

			s, err := a.NewScheduler(cfg.Monitor.URLs, cfg.Interval())
			if err != nil {
				return err
			}
			cycle := s.RunOnce(cmd.Context())
			if cycle.Failed > 0 {
				return fmt.Errorf("%d of %d pages could not be fetched", cycle.Failed, cycle.Checked)
			}
			return nil
		},
	}
}
