package screenshot

import (
	"context"
	"errors"
)

// ErrDisabled is returned by Noop; callers treat it like any capture failure.
var ErrDisabled = errors.New("screenshot capture disabled")

// Noop implements monitor.Capturer for runs without a browser. Every capture
// fails, so script-heavy pages fall back to text analysis.
type Noop struct{}

// NewNoop creates a new Noop capturer.
func NewNoop() *Noop {
	return &Noop{}
}

// Capture always returns ErrDisabled.
func (Noop) Capture(_ context.Context, _ string) ([]byte, error) {
	return nil, ErrDisabled
}
