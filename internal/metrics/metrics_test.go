package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestObserveCheck(t *testing.T) {
	Init()
	before := testutil.ToFloat64(checksTotal.WithLabelValues("status.example.org", "image"))

	ObserveCheck("https://status.example.org/board", "image", 2*time.Second)

	after := testutil.ToFloat64(checksTotal.WithLabelValues("status.example.org", "image"))
	assert.InDelta(t, before+1, after, 1e-9)
}

func TestObserveCaptureFailureAndAnalysisError(t *testing.T) {
	Init()
	captureBefore := testutil.ToFloat64(captureFailuresTotal.WithLabelValues("fallback.example.org"))
	analysisBefore := testutil.ToFloat64(analysisErrorsTotal.WithLabelValues("text"))

	ObserveCaptureFailure("http://fallback.example.org")
	ObserveAnalysisError("text")

	assert.InDelta(t, captureBefore+1, testutil.ToFloat64(captureFailuresTotal.WithLabelValues("fallback.example.org")), 1e-9)
	assert.InDelta(t, analysisBefore+1, testutil.ToFloat64(analysisErrorsTotal.WithLabelValues("text")), 1e-9)
}

func TestCycleGauge(t *testing.T) {
	CycleStarted()
	assert.InDelta(t, 1, testutil.ToFloat64(cycleInProgress), 1e-9)

	cycles := testutil.ToFloat64(cyclesTotal)
	CycleFinished()
	assert.InDelta(t, 0, testutil.ToFloat64(cycleInProgress), 1e-9)
	assert.InDelta(t, cycles+1, testutil.ToFloat64(cyclesTotal), 1e-9)
}

func TestHandlerExposesSeries(t *testing.T) {
	ObserveReporterError("console")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "webmonitor_reporter_errors_total"))
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	for _, tc := range []string{"http://example.com", "https://google.com", "ftp://example.com"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		got := SanitizeSite(orig)
		if got == "" {
			t.Errorf("SanitizeSite(%q) returned empty string", orig)
		}
	})
}
