package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/webmonitor/internal/analyzer"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[headless]
enabled = false

[logging]
development = false
level = "error"
`), 0o600))
	return path
}

func statusSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body><h1>All systems operational</h1></body></html>")
	})
	mux.HandleFunc("/down", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckCommandPrintsReport(t *testing.T) {
	srv := statusSite(t)
	out := &syncBuffer{}

	root := newRootCmd(out)
	root.SetArgs([]string{"--config", writeTestConfig(t), "check", srv.URL + "/ok"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	got := out.String()
	assert.Contains(t, got, "Checking website: "+srv.URL+"/ok")
	assert.Contains(t, got, "Analysis result:\n"+analyzer.Placeholder)
	assert.Contains(t, got, strings.Repeat("-", 80))
}

func TestCheckCommandFailsOnUnreachablePage(t *testing.T) {
	srv := statusSite(t)
	out := &syncBuffer{}

	root := newRootCmd(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", writeTestConfig(t), "check", srv.URL + "/ok", srv.URL + "/down"})
	err := root.ExecuteContext(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 pages")
	assert.Contains(t, out.String(), "Failed to fetch page:")
	assert.Contains(t, out.String(), "Checking website: "+srv.URL+"/ok")
}

func TestCheckCommandRejectsBadURL(t *testing.T) {
	root := newRootCmd(&syncBuffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", writeTestConfig(t), "check", "not-a-url"})
	assert.ErrorContains(t, root.ExecuteContext(context.Background()), "absolute http(s)")
}

func TestRunCommandLoopsUntilCancelled(t *testing.T) {
	srv := statusSite(t)
	out := &syncBuffer{}

	root := newRootCmd(out)
	root.SetArgs([]string{"--config", writeTestConfig(t), "run", "--url", srv.URL + "/ok", "--interval", "1s"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Analysis result:")
	}, 5*time.Second, 20*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}

	got := out.String()
	assert.True(t, strings.HasPrefix(got, "Monitoring websites every 1s"))
	assert.Contains(t, got, "Alert keywords:")
}

func TestRunCommandRejectsFractionalInterval(t *testing.T) {
	for _, interval := range []string{"0s", "500ms", "1500ms"} {
		t.Run(interval, func(t *testing.T) {
			root := newRootCmd(&syncBuffer{})
			root.SetErr(&bytes.Buffer{})
			root.SetArgs([]string{"--config", writeTestConfig(t), "run", "--interval", interval})
			assert.ErrorContains(t, root.ExecuteContext(context.Background()), "--interval must be a whole number of seconds")
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	root := newRootCmd(&syncBuffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.toml"), "check"})
	assert.ErrorContains(t, root.ExecuteContext(context.Background()), "load config")
}

func TestScreenshotCommandNeedsURL(t *testing.T) {
	root := newRootCmd(&syncBuffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", writeTestConfig(t), "screenshot"})
	assert.Error(t, root.ExecuteContext(context.Background()))
}
