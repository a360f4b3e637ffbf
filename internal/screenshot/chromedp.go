// Package screenshot captures full-page renderings of URLs with a headless browser.
package screenshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Defaults applied by NewChromedp when a Config field is left zero.
const (
	DefaultWindowWidth       = 1920
	DefaultWindowHeight      = 1080
	DefaultNavigationTimeout = 30 * time.Second
	DefaultSettleDelay       = 3 * time.Second

	// time allowed for the screenshot itself once the page has settled.
	captureBudget = 20 * time.Second
)

// pngQuality makes chromedp encode the full-page capture as PNG.
const pngQuality = 100

// ErrEmptyCapture is returned when the browser produced no image bytes.
var ErrEmptyCapture = errors.New("screenshot is empty")

// Config controls the behavior of the chromedp capturer.
type Config struct {
	// ExecPath points at a Chrome/Chromium binary; empty means auto-detect.
	ExecPath          string
	UserAgent         string
	WindowWidth       int
	WindowHeight      int
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
}

// Chromedp implements monitor.Capturer. Every Capture launches its own browser
// process and tears it down before returning.
type Chromedp struct {
	cfg    Config
	logger *zap.Logger
}

// NewChromedp creates a capturer backed by chromedp.
func NewChromedp(cfg Config, logger *zap.Logger) *Chromedp {
	if cfg.WindowWidth <= 0 {
		cfg.WindowWidth = DefaultWindowWidth
	}
	if cfg.WindowHeight <= 0 {
		cfg.WindowHeight = DefaultWindowHeight
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = DefaultNavigationTimeout
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chromedp{cfg: cfg, logger: logger}
}

// Capture navigates to url, waits for the page to settle and returns a
// full-page PNG.
func (c *Chromedp) Capture(ctx context.Context, url string) ([]byte, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	taskCtx, cancel := context.WithTimeout(browserCtx, c.budget())
	defer cancel()

	start := time.Now()
	var png []byte
	if err := chromedp.Run(taskCtx, c.tasks(url, &png)); err != nil {
		return nil, fmt.Errorf("capture %s: %w", url, err)
	}
	if len(png) == 0 {
		return nil, fmt.Errorf("capture %s: %w", url, ErrEmptyCapture)
	}

	c.logger.Debug("screenshot captured",
		zap.String("url", url),
		zap.Int("bytes", len(png)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return png, nil
}

func (c *Chromedp) tasks(url string, png *[]byte) chromedp.Tasks {
	return chromedp.Tasks{
		c.viewportAction(),
		c.navigateAction(url),
		chromedp.Sleep(c.cfg.SettleDelay),
		chromedp.FullScreenshot(png, pngQuality),
	}
}

func (c *Chromedp) viewportAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		err := emulation.SetDeviceMetricsOverride(int64(c.cfg.WindowWidth), int64(c.cfg.WindowHeight), 1, false).Do(ctx)
		if err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
		if c.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(c.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// navigateAction bounds navigation separately from the settle delay and the
// capture itself.
func (c *Chromedp) navigateAction(url string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		navCtx, cancel := context.WithTimeout(ctx, c.cfg.NavigationTimeout)
		defer cancel()
		if err := chromedp.Navigate(url).Do(navCtx); err != nil {
			return fmt.Errorf("navigate: %w", err)
		}
		if err := chromedp.WaitReady("body", chromedp.ByQuery).Do(navCtx); err != nil {
			return fmt.Errorf("wait for body: %w", err)
		}
		return nil
	})
}

func (c *Chromedp) budget() time.Duration {
	return c.cfg.NavigationTimeout + c.cfg.SettleDelay + captureBudget
}

func (c *Chromedp) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.WindowSize(c.cfg.WindowWidth, c.cfg.WindowHeight),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("allow-running-insecure-content", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.DisableGPU,
		chromedp.Flag("hide-scrollbars", true),
	)
	if c.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
	}
	return opts
}
