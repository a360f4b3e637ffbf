package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/webmonitor/internal/monitor"
)

func newRunCmd() *cobra.Command {
	var (
		urls     []string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Check every configured URL now and then on every interval",
		Long: `Starts the monitoring loop. All URLs are checked immediately, then again
every interval until the process receives SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			cfg := e.cfg
			if len(urls) > 0 {
				cfg.Monitor.URLs = urls
			}
			if cmd.Flags().Changed("interval") {
				if interval < time.Second || interval%time.Second != 0 {
					return fmt.Errorf("--interval must be a whole number of seconds, got %s", interval)
				}
				cfg.Monitor.IntervalSeconds = int(interval / time.Second)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
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
			if err := a.Console.Banner(cfg.Interval(), cfg.Monitor.URLs, monitor.AlertKeywords); err != nil {
				e.logger.Warn("print banner", zap.Error(err))
			}
			a.ServeStatus(cmd.Context(), s)

			if err := s.Run(cmd.Context()); err != nil {
				return fmt.Errorf("run monitor: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&urls, "url", nil, "URL to monitor (repeatable, replaces monitor.urls)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "time between checks, e.g. 30s or 5m (replaces monitor.interval_seconds)")
	return cmd
}
