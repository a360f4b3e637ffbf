package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/webmonitor/internal/classify"
	"github.com/JakeFAU/webmonitor/internal/metrics"
)

// Deps bundles the collaborators a Checker drives. Blobs and Hasher are
// optional; without them screenshots are analyzed but not kept.
type Deps struct {
	Fetcher    Fetcher
	Classifier Classifier
	Capturer   Capturer
	Analyzer   Analyzer
	Blobs      BlobStore
	Hasher     Hasher
	Reporters  []Reporter
	IDs        IDGenerator
	Clock      Clock
}

// CheckerConfig holds tunables for artifact storage.
type CheckerConfig struct {
	// ArtifactPrefix is prepended to screenshot object paths.
	ArtifactPrefix string
}

// Checker runs one URL through fetch, classify, capture, analyze and report.
type Checker struct {
	deps   Deps
	prefix string
	logger *zap.Logger
}

// NewChecker validates deps and returns a Checker.
func NewChecker(deps Deps, cfg CheckerConfig, logger *zap.Logger) (*Checker, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("fetcher is required")
	case deps.Classifier == nil:
		return nil, errors.New("classifier is required")
	case deps.Capturer == nil:
		return nil, errors.New("capturer is required")
	case deps.Analyzer == nil:
		return nil, errors.New("analyzer is required")
	case deps.IDs == nil:
		return nil, errors.New("id generator is required")
	case deps.Clock == nil:
		return nil, errors.New("clock is required")
	case deps.Blobs != nil && deps.Hasher == nil:
		return nil, errors.New("hasher is required when a blob store is configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		deps:   deps,
		prefix: strings.Trim(cfg.ArtifactPrefix, "/"),
		logger: logger.Named("checker"),
	}, nil
}

// Check inspects url once and returns the resulting report after every
// reporter has seen it. It never fails; problems are recorded in the report.
func (c *Checker) Check(ctx context.Context, cycleID, rawURL string) Report {
	start := c.deps.Clock.Now()
	logger := c.logger.With(zap.String("cycle_id", cycleID), zap.String("url", rawURL))

	report := Report{
		ID:        c.newID(cycleID, start, logger),
		CycleID:   cycleID,
		URL:       rawURL,
		CheckedAt: start,
	}

	page, err := c.deps.Fetcher.Fetch(ctx, rawURL)
	if err != nil {
		logger.Warn("fetch failed", zap.Error(err))
		c.apply(&report, ErrorResult(err), "")
	} else {
		cls := c.deps.Classifier.Classify(page.Body)
		report.TextChars = cls.TextChars
		report.ScriptCount = cls.ScriptCount
		logger.Debug("page classified",
			zap.Int("text_chars", cls.TextChars),
			zap.Int("scripts", cls.ScriptCount),
			zap.String("path", string(cls.Path)))

		result, fellBack := c.inspect(ctx, rawURL, cls, logger)
		report.CaptureFellBack = fellBack
		c.apply(&report, result, c.analyze(ctx, &report, result, logger))
	}

	report.Duration = c.deps.Clock.Now().Sub(start)
	metrics.ObserveCheck(rawURL, string(report.Kind), report.Duration)
	c.publish(ctx, report, logger)
	return report
}

// inspect picks the content to analyze. A failed capture falls back to the
// text already extracted from the fetched markup.
func (c *Checker) inspect(ctx context.Context, rawURL string, cls classify.Classification, logger *zap.Logger) (Result, bool) {
	if !cls.NeedsScreenshot() {
		return TextResult(cls.Text), false
	}
	png, err := c.deps.Capturer.Capture(ctx, rawURL)
	if err != nil {
		logger.Warn("screenshot failed, falling back to text analysis", zap.Error(err))
		metrics.ObserveCaptureFailure(rawURL)
		return TextResult(cls.Text), true
	}
	return ImageResult(png), false
}

func (c *Checker) analyze(ctx context.Context, report *Report, result Result, logger *zap.Logger) string {
	switch result.Kind {
	case KindImage:
		report.ArtifactURI = c.storeArtifact(ctx, report.URL, result.Image, logger)
		return c.deps.Analyzer.AnalyzeImage(ctx, result.Image)
	case KindText:
		return c.deps.Analyzer.AnalyzeText(ctx, result.Text)
	default:
		return ""
	}
}

func (c *Checker) apply(report *Report, result Result, analysis string) {
	report.Kind = result.Kind
	report.Analysis = analysis
	report.ErrorText = result.Err
}

// storeArtifact keeps the screenshot at <prefix>/<host>/<sha256>.png. Failures
// are logged and leave the URI empty.
func (c *Checker) storeArtifact(ctx context.Context, rawURL string, png []byte, logger *zap.Logger) string {
	if c.deps.Blobs == nil {
		return ""
	}
	objectPath := ArtifactPath(c.prefix, rawURL, c.deps.Hasher.Hash(png))
	uri, err := c.deps.Blobs.PutObject(ctx, objectPath, "image/png", bytes.NewReader(png))
	if err != nil {
		logger.Warn("store screenshot", zap.String("path", objectPath), zap.Error(err))
		return ""
	}
	logger.Debug("screenshot stored", zap.String("uri", uri))
	return uri
}

func (c *Checker) publish(ctx context.Context, report Report, logger *zap.Logger) {
	for _, r := range c.deps.Reporters {
		if err := r.Report(ctx, report); err != nil {
			name := reporterName(r)
			metrics.ObserveReporterError(name)
			logger.Error("report sink failed", zap.String("sink", name), zap.Error(err))
		}
	}
}

func (c *Checker) newID(cycleID string, now time.Time, logger *zap.Logger) string {
	id, err := c.deps.IDs.NewID()
	if err != nil {
		logger.Warn("generate report id", zap.Error(err))
		return fmt.Sprintf("%s-%d", cycleID, now.UnixNano())
	}
	return id
}

// ArtifactPath builds the object path for a screenshot of rawURL.
func ArtifactPath(prefix, rawURL, digest string) string {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = strings.ToLower(u.Hostname())
	}
	return path.Join(prefix, host, digest+".png")
}

func reporterName(r Reporter) string {
	if named, ok := r.(interface{ Name() string }); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", r)
}
