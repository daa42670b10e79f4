// Package clock abstracts the wall clock so record timestamps can be pinned
// in tests.
package clock

import "time"

// Precision is the finest timestamp resolution every storage backend keeps.
// Redis scores and SQL columns hold unix milliseconds.
const Precision = time.Millisecond

// Clock provides time operations that can be mocked for testing
type Clock interface {
	Now() time.Time
}

// Normalize converts t to UTC at Precision, the form records are stored in
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(Precision)
}

// RealClock implements Clock using the system clock
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current time, normalized for storage
func (c *RealClock) Now() time.Time {
	return Normalize(time.Now())
}
