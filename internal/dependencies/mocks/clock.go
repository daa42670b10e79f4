package mocks

import (
	"sync"
	"time"

	"github.com/mcoot/shrubbery/internal/dependencies/clock"
)

// MockClock is a mock implementation of Clock for testing
type MockClock struct {
	mu          sync.Mutex
	CurrentTime time.Time

	// Step, when non-zero, advances the clock after every Now call so that
	// successive records get distinct timestamps.
	Step time.Duration
}

// Ensure MockClock implements Clock
var _ clock.Clock = (*MockClock)(nil)

// NewMockClock creates a MockClock set to the given time
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{CurrentTime: t}
}

// NewSteppingClock creates a MockClock that advances by step on every call
func NewSteppingClock(t time.Time, step time.Duration) *MockClock {
	return &MockClock{CurrentTime: t, Step: step}
}

// Now returns the mocked current time, normalized like the real clock
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.CurrentTime
	c.CurrentTime = c.CurrentTime.Add(c.Step)
	return clock.Normalize(now)
}

// Advance moves the clock forward by the given duration
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CurrentTime = c.CurrentTime.Add(d)
}

// Set sets the clock to the given time
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CurrentTime = t
}
