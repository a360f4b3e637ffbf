package monitor

import (
	"errors"
	"net/http"
	"time"
)

// Kind tags which variant a Result carries.
type Kind string

// Result kinds. They double as the "path" label on metrics.
const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindError Kind = "error"
)

// AlertKeywords are the words the monitor calls out in its startup banner.
var AlertKeywords = []string{"告警", "错误", "严重", "警告", "error", "warning", "critical", "alert"}

// Result is the per-URL, per-cycle outcome of inspecting a page. Exactly one of
// Text, Image or Err is meaningful, selected by Kind.
type Result struct {
	Kind  Kind
	Text  string
	Image []byte
	Err   string
}

// TextResult wraps extracted page text.
func TextResult(text string) Result {
	return Result{Kind: KindText, Text: text}
}

// ImageResult wraps a PNG screenshot.
func ImageResult(png []byte) Result {
	return Result{Kind: KindImage, Image: png}
}

// ErrorResult wraps a failure description.
func ErrorResult(err error) Result {
	if err == nil {
		err = errors.New("unknown error")
	}
	return Result{Kind: KindError, Err: err.Error()}
}

// Page is the raw response returned by a Fetcher.
type Page struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Report is everything known about one finished check.
type Report struct {
	ID              string        `json:"id"`
	CycleID         string        `json:"cycle_id"`
	URL             string        `json:"url"`
	Kind            Kind          `json:"kind"`
	Analysis        string        `json:"analysis,omitempty"`
	ErrorText       string        `json:"error_text,omitempty"`
	ArtifactURI     string        `json:"artifact_uri,omitempty"`
	TextChars       int           `json:"text_chars"`
	ScriptCount     int           `json:"script_count"`
	CaptureFellBack bool          `json:"capture_fell_back"`
	CheckedAt       time.Time     `json:"checked_at"`
	Duration        time.Duration `json:"duration"`
}

// Failed reports whether the page could not be fetched.
func (r Report) Failed() bool {
	return r.Kind == KindError
}
