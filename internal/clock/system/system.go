// Package system provides the wall clock used to stamp reports.
package system

import "time"

// Clock implements monitor.Clock. Times are UTC with millisecond precision,
// the resolution reports are stored at.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time truncated to the millisecond.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
