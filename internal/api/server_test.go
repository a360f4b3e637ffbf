package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/webmonitor/internal/scheduler"
)

type fakeStatus struct {
	state   scheduler.State
	current string
	last    *scheduler.Cycle
}

func (f *fakeStatus) State() (scheduler.State, string) { return f.state, f.current }

func (f *fakeStatus) LastCycle() (scheduler.Cycle, bool) {
	if f.last == nil {
		return scheduler.Cycle{}, false
	}
	return *f.last, true
}

func (f *fakeStatus) URLs() []string { return []string{"https://example.com"} }

func (f *fakeStatus) Interval() time.Duration { return time.Minute }

func serve(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(&fakeStatus{state: scheduler.StateIdle}, nil), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestReadyzWaitsForFirstCycle(t *testing.T) {
	t.Parallel()

	status := &fakeStatus{state: scheduler.StateChecking, current: "c-1"}
	server := NewServer(status, nil)

	assert.Equal(t, http.StatusServiceUnavailable, serve(t, server, "/readyz").Code)

	status.last = &scheduler.Cycle{ID: "c-1", Checked: 1}
	assert.Equal(t, http.StatusOK, serve(t, server, "/readyz").Code)
}

func TestStatusPayload(t *testing.T) {
	t.Parallel()

	finished := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	status := &fakeStatus{
		state:   scheduler.StateChecking,
		current: "c-2",
		last:    &scheduler.Cycle{ID: "c-1", Checked: 3, Failed: 1, FinishedAt: finished},
	}

	rec := serve(t, NewServer(status, nil), "/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var got Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, scheduler.StateChecking, got.State)
	assert.Equal(t, "c-2", got.CurrentCycle)
	require.NotNil(t, got.LastCycle)
	assert.Equal(t, "c-1", got.LastCycle.ID)
	assert.Equal(t, 1, got.LastCycle.Failed)
	assert.True(t, finished.Equal(got.LastCycle.FinishedAt))
	assert.Equal(t, []string{"https://example.com"}, got.URLs)
	assert.InDelta(t, 60, got.IntervalSeconds, 1e-9)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeStatus{}, nil)
	serve(t, server, "/healthz")

	rec := serve(t, server, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "webmonitor_http_requests_total"))
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusNotFound, serve(t, NewServer(&fakeStatus{}, nil), "/v1/jobs").Code)
}

func TestListenAndServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(&fakeStatus{}, nil).ListenAndServe(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
