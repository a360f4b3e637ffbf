// Package cmd defines the CLI commands for the webmonitor executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/webmonitor/internal/app"
	"github.com/JakeFAU/webmonitor/internal/config"
	"github.com/JakeFAU/webmonitor/internal/logging"
)

type envKey struct{}

// env is what PersistentPreRunE hands to every subcommand.
type env struct {
	cfg    config.Config
	logger *zap.Logger
	stdout io.Writer
}

// newApp is the application factory. It's a variable so tests can swap it.
var newApp = app.NewApp

// newRootCmd creates and configures the root command.
func newRootCmd(stdout io.Writer) *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "webmonitor",
		Short: "Watches web pages and asks a model whether they show alerts.",
		Long: `webmonitor polls a list of web pages on a fixed interval. Simple pages are
analyzed from their text; script-heavy pages are rendered in headless Chrome and
the screenshot is analyzed by a vision model. Reports are printed to stdout.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), envKey{}, &env{
				cfg:    cfg,
				logger: logger,
				stdout: stdout,
			}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if e, err := resolveEnv(cmd.Context()); err == nil {
				_ = e.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is secret.toml in ., $HOME/.webmonitor or /etc/webmonitor)")
	cmd.SetOut(stdout)

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newScreenshotCmd())
	return cmd
}

func resolveEnv(ctx context.Context) (*env, error) {
	if ctx == nil {
		return nil, errors.New("command context is not set")
	}
	e, ok := ctx.Value(envKey{}).(*env)
	if !ok || e == nil {
		return nil, errors.New("configuration was not loaded")
	}
	return e, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the root context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
