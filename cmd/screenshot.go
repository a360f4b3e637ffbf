package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/webmonitor/internal/app"
	"github.com/JakeFAU/webmonitor/internal/config"
)

func newScreenshotCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "screenshot <url>",
		Short: "Capture a full-page screenshot of one URL to a PNG file",
		Long: `Renders the URL in headless Chrome with the configured window size and
settle delay and writes the PNG to disk. Useful to verify the browser setup.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			cfg := e.cfg
			cfg.Headless.Enabled = true
			cfg.Monitor.URLs = args
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid arguments: %w", err)
			}
			return captureToFile(cmd, cfg, args[0], out, e.logger)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "screenshot.png", "file to write the PNG to")
	return cmd
}

func captureToFile(cmd *cobra.Command, cfg config.Config, url, out string, logger *zap.Logger) error {
	capturer := app.NewCapturer(cfg, logger)
	logger.Info("capturing screenshot", zap.String("url", url))
	png, err := capturer.Capture(cmd.Context(), url)
	if err != nil {
		return fmt.Errorf("capture %s: %w", url, err)
	}
	if err := os.WriteFile(out, png, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	cmd.Printf("Screenshot saved to %s (%.2f KB)\n", out, float64(len(png))/1024)
	return nil
}
