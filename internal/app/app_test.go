package app_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/webmonitor/internal/analyzer"
	"github.com/JakeFAU/webmonitor/internal/app"
	"github.com/JakeFAU/webmonitor/internal/config"
	"github.com/JakeFAU/webmonitor/internal/screenshot"
)

// MockCloser is a mock implementation of app.Closer.
type MockCloser struct {
	mock.Mock
}

func (m *MockCloser) Close() error {
	args := m.Called()
	return args.Error(0) //nolint:wrapcheck
}

func baseConfig() config.Config {
	return config.Config{
		SiliconFlow: config.SiliconFlowConfig{Temperature: 0.7, TimeoutSeconds: 30},
		Monitor:     config.MonitorConfig{URLs: []string{"http://example.com"}, IntervalSeconds: 60},
		HTTP:        config.HTTPConfig{TimeoutSeconds: 10, UserAgent: "webmonitor-test"},
		Storage:     config.StorageConfig{Backend: config.BackendMemory, Prefix: "screenshots"},
	}
}

func TestNewAppPlaceholderMode(t *testing.T) {
	var out bytes.Buffer
	a, err := app.NewApp(context.Background(), baseConfig(), &out, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.False(t, a.Analyzer.Available())
	assert.Equal(t, analyzer.Placeholder, a.Analyzer.AnalyzeText(context.Background(), "anything"))
	assert.IsType(t, &screenshot.Noop{}, a.Capturer)
	assert.NotNil(t, a.Checker)
	assert.Empty(t, a.Closers)
}

func TestNewAppWithLocalStorage(t *testing.T) {
	cfg := baseConfig()
	cfg.Storage.Backend = config.BackendLocal
	cfg.Storage.LocalDir = filepath.Join(t.TempDir(), "shots")

	a, err := app.NewApp(context.Background(), cfg, &bytes.Buffer{}, nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = os.Stat(cfg.Storage.LocalDir)
	assert.NoError(t, err)
}

func TestNewAppFailsOnUnusableStorage(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	cfg := baseConfig()
	cfg.Storage.Backend = config.BackendLocal
	cfg.Storage.LocalDir = file

	_, err := app.NewApp(context.Background(), cfg, &bytes.Buffer{}, nil)
	assert.ErrorContains(t, err, "init local storage")
}

func TestNewAppFailsOnBadDSN(t *testing.T) {
	cfg := baseConfig()
	cfg.DB.DSN = "postgres://%zz"

	_, err := app.NewApp(context.Background(), cfg, &bytes.Buffer{}, nil)
	assert.ErrorContains(t, err, "postgres")
}

func TestNewCapturerHeadless(t *testing.T) {
	cfg := baseConfig()
	cfg.Headless = config.HeadlessConfig{Enabled: true, WindowWidth: 800, WindowHeight: 600}
	assert.IsType(t, &screenshot.Chromedp{}, app.NewCapturer(cfg, zap.NewNop()))
}

func TestNewSchedulerAndStatus(t *testing.T) {
	cfg := baseConfig()
	a, err := app.NewApp(context.Background(), cfg, &bytes.Buffer{}, nil)
	require.NoError(t, err)
	defer a.Close()

	s, err := a.NewScheduler(cfg.Monitor.URLs, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, cfg.Monitor.URLs, s.URLs())

	_, err = a.NewScheduler(nil, time.Minute)
	assert.Error(t, err)

	a.ServeStatus(context.Background(), s)
}

func TestApp_Close(t *testing.T) {
	first := new(MockCloser)
	second := new(MockCloser)
	first.On("Close").Return(nil).Once()
	second.On("Close").Return(errors.New("flush failed")).Once()

	a := &app.App{
		Logger:  zap.NewNop(),
		Closers: map[string]app.Closer{"postgres": first, "pubsub": second},
	}
	a.Close()

	first.AssertExpectations(t)
	second.AssertExpectations(t)
	assert.Empty(t, a.Closers)

	a.Close()
}

func TestNewAppPrintsNothingUntilChecked(t *testing.T) {
	var out bytes.Buffer
	a, err := app.NewApp(context.Background(), baseConfig(), &out, nil)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Console.Banner(time.Minute, []string{"http://example.com"}, nil))
	assert.True(t, strings.HasPrefix(out.String(), "Monitoring websites every 1m0s"))
}
