// Package app initializes and holds long-lived application services, acting as
// a dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/webmonitor/internal/analyzer"
	"github.com/JakeFAU/webmonitor/internal/api"
	"github.com/JakeFAU/webmonitor/internal/classify"
	"github.com/JakeFAU/webmonitor/internal/clock/system"
	"github.com/JakeFAU/webmonitor/internal/config"
	collyfetcher "github.com/JakeFAU/webmonitor/internal/fetcher/colly"
	"github.com/JakeFAU/webmonitor/internal/hash/sha256"
	"github.com/JakeFAU/webmonitor/internal/id/uuid"
	"github.com/JakeFAU/webmonitor/internal/monitor"
	"github.com/JakeFAU/webmonitor/internal/ratelimit"
	"github.com/JakeFAU/webmonitor/internal/report/console"
	"github.com/JakeFAU/webmonitor/internal/report/postgres"
	"github.com/JakeFAU/webmonitor/internal/report/pubsub"
	"github.com/JakeFAU/webmonitor/internal/scheduler"
	"github.com/JakeFAU/webmonitor/internal/screenshot"
	"github.com/JakeFAU/webmonitor/internal/storage/gcs"
	"github.com/JakeFAU/webmonitor/internal/storage/local"
	"github.com/JakeFAU/webmonitor/internal/storage/memory"
)

// Closer is a service that must be released on shutdown.
type Closer interface {
	Close() error
}

// App holds the shared, long-lived services. It is built once at startup and
// closed when the command finishes.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Console  *console.Reporter
	Analyzer *analyzer.Analyzer
	Capturer monitor.Capturer
	Checker  *monitor.Checker
	IDs      monitor.IDGenerator
	Clock    monitor.Clock

	// Closers are released in reverse order by Close.
	Closers map[string]Closer
	order   []string
}

// NewApp builds every service named by cfg. It fails fast when an optional
// backend is configured but unusable; a missing model key only degrades the
// analyzer to its placeholder.
func NewApp(ctx context.Context, cfg config.Config, stdout io.Writer, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("initializing application services", zap.String("config_file", cfg.File))

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Console: console.New(stdout),
		IDs:     uuid.New(),
		Clock:   system.New(),
		Closers: map[string]Closer{},
	}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	a.Analyzer = newAnalyzer(cfg, logger)
	a.Capturer = NewCapturer(cfg, logger)

	deps := monitor.Deps{
		Fetcher: collyfetcher.New(collyfetcher.Config{
			UserAgent:          cfg.HTTP.UserAgent,
			Timeout:            cfg.HTTPTimeout(),
			InsecureSkipVerify: cfg.HTTP.InsecureSkipVerify,
		}),
		Classifier: classify.New(),
		Capturer:   a.Capturer,
		Analyzer:   a.Analyzer,
		Reporters:  []monitor.Reporter{a.Console},
		IDs:        a.IDs,
		Clock:      a.Clock,
	}

	blobs, err := a.openBlobStore(ctx)
	if err != nil {
		return nil, err
	}
	if blobs != nil {
		deps.Blobs = blobs
		deps.Hasher = sha256.New()
	}

	sinks, err := a.openSinks(ctx)
	if err != nil {
		return nil, err
	}
	deps.Reporters = append(deps.Reporters, sinks...)

	a.Checker, err = monitor.NewChecker(deps, monitor.CheckerConfig{ArtifactPrefix: cfg.Storage.Prefix}, logger)
	if err != nil {
		return nil, fmt.Errorf("build checker: %w", err)
	}

	logger.Info("application services initialized",
		zap.Bool("model_available", a.Analyzer.Available()),
		zap.Bool("headless", cfg.Headless.Enabled),
		zap.String("storage", cfg.Storage.Backend),
		zap.Int("report_sinks", len(deps.Reporters)))
	ok = true
	return a, nil
}

func newAnalyzer(cfg config.Config, logger *zap.Logger) *analyzer.Analyzer {
	sf := cfg.SiliconFlow
	logger.Info("setting up model client",
		zap.String("api_key", analyzer.MaskKey(sf.APIKey)),
		zap.String("base_url", sf.BaseURL),
		zap.String("reasoning_model", sf.ReasoningModel),
		zap.String("visual_model", sf.VisualModel))

	var model analyzer.Generator
	llm, err := analyzer.NewClient(analyzer.ClientConfig{
		APIKey:             sf.APIKey,
		BaseURL:            sf.BaseURL,
		Timeout:            cfg.ModelTimeout(),
		InsecureSkipVerify: sf.InsecureSkipVerify,
	})
	if err != nil {
		logger.Warn("model client unavailable, analysis will return a placeholder", zap.Error(err))
	} else {
		model = llm
	}
	an := analyzer.New(model, analyzer.Config{
		ReasoningModel: sf.ReasoningModel,
		VisualModel:    sf.VisualModel,
		Temperature:    sf.Temperature,
	}, logger)
	if sf.RequestsPerMinute > 0 {
		an.WithLimiter(ratelimit.New(ratelimit.Config{PerMinute: sf.RequestsPerMinute}))
	}
	return an
}

// NewCapturer returns the headless capturer, or the noop capturer when
// headless rendering is disabled.
func NewCapturer(cfg config.Config, logger *zap.Logger) monitor.Capturer {
	if !cfg.Headless.Enabled {
		logger.Info("headless rendering disabled, script-heavy pages fall back to text")
		return screenshot.NewNoop()
	}
	return screenshot.NewChromedp(screenshot.Config{
		ExecPath:          cfg.Headless.ExecPath,
		UserAgent:         cfg.HTTP.UserAgent,
		WindowWidth:       cfg.Headless.WindowWidth,
		WindowHeight:      cfg.Headless.WindowHeight,
		NavigationTimeout: cfg.NavTimeout(),
		SettleDelay:       cfg.SettleDelay(),
	}, logger)
}

func (a *App) openBlobStore(ctx context.Context) (monitor.BlobStore, error) {
	switch a.Config.Storage.Backend {
	case config.BackendMemory:
		a.Logger.Info("keeping screenshots in memory")
		return memory.NewBlobStore(), nil
	case config.BackendLocal:
		store, err := local.New(local.Config{Dir: a.Config.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		a.Logger.Info("writing screenshots to disk", zap.String("dir", a.Config.Storage.LocalDir))
		return store, nil
	case config.BackendGCS:
		store, err := gcs.Open(ctx, gcs.Config{Bucket: a.Config.Storage.GCSBucket}, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("init gcs storage: %w", err)
		}
		a.track("gcs", store)
		a.Logger.Info("uploading screenshots to gcs", zap.String("bucket", a.Config.Storage.GCSBucket))
		return store, nil
	default:
		return nil, nil
	}
}

func (a *App) openSinks(ctx context.Context) ([]monitor.Reporter, error) {
	var sinks []monitor.Reporter
	if a.Config.DB.DSN != "" {
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:      a.Config.DB.DSN,
			Table:    a.Config.DB.Table,
			MaxConns: int32(a.Config.DB.MaxConns), //nolint:gosec // bounded by operator config
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres reporter: %w", err)
		}
		a.track("postgres", closerFunc(func() error { pg.Close(); return nil }))
		sinks = append(sinks, pg)
		a.Logger.Info("recording reports in postgres", zap.String("table", a.Config.DB.Table))
	}
	if a.Config.PubSub.TopicName != "" {
		ps, err := pubsub.New(ctx, pubsub.Config{
			ProjectID: a.Config.PubSub.ProjectID,
			TopicName: a.Config.PubSub.TopicName,
		}, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("init pubsub reporter: %w", err)
		}
		a.track("pubsub", ps)
		sinks = append(sinks, ps)
		a.Logger.Info("publishing reports to pubsub", zap.String("topic", a.Config.PubSub.TopicName))
	}
	return sinks, nil
}

// NewScheduler builds the polling loop over urls.
func (a *App) NewScheduler(urls []string, interval time.Duration) (*scheduler.Scheduler, error) {
	s, err := scheduler.New(a.Checker, urls, interval, a.IDs, a.Clock, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("build scheduler: %w", err)
	}
	return s, nil
}

// ServeStatus runs the status server in the background when server.port is
// set. The server stops when ctx is done.
func (a *App) ServeStatus(ctx context.Context, status api.StatusProvider) {
	if a.Config.Server.Port == 0 {
		return
	}
	addr := ":" + strconv.Itoa(a.Config.Server.Port)
	server := api.NewServer(status, a.Logger)
	go func() {
		if err := server.ListenAndServe(ctx, addr); err != nil {
			a.Logger.Error("status server failed", zap.Error(err))
		}
	}()
}

func (a *App) track(name string, c Closer) {
	if a.Closers == nil {
		a.Closers = map[string]Closer{}
	}
	a.Closers[name] = c
	a.order = append(a.order, name)
}

// Close releases every tracked service, newest first. Errors are logged.
func (a *App) Close() {
	a.Logger.Info("shutting down application services")
	names := a.order
	if len(names) == 0 {
		for name := range a.Closers {
			names = append(names, name)
		}
	}
	for i := len(names) - 1; i >= 0; i-- {
		c, ok := a.Closers[names[i]]
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			a.Logger.Warn("error closing service", zap.String("service", names[i]), zap.Error(err))
		}
		delete(a.Closers, names[i])
	}
	a.order = nil
	_ = a.Logger.Sync()
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
