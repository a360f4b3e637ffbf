package monitor

import (
	"context"
	"io"
	"time"

	"github.com/JakeFAU/webmonitor/internal/classify"
)

// Fetcher retrieves the raw markup of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Classifier decides between the text path and the screenshot path.
type Classifier interface {
	Classify(markup []byte) classify.Classification
}

// Capturer renders a URL in a headless browser and returns a full-page PNG.
type Capturer interface {
	Capture(ctx context.Context, url string) ([]byte, error)
}

// Analyzer turns page content into a natural-language alert report. It never
// fails: problems are folded into the returned text.
type Analyzer interface {
	AnalyzeText(ctx context.Context, text string) string
	AnalyzeImage(ctx context.Context, png []byte) string
}

// Reporter receives every finished Report.
type Reporter interface {
	Report(ctx context.Context, report Report) error
}

// BlobStore persists screenshot artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces report and cycle IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher produces a content digest used to name artifacts.
type Hasher interface {
	Hash(data []byte) string
}
