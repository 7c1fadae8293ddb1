// Package system provides the wall clock used in production and a frozen
// clock for tests.
package system

import "time"

// Clock reads the wall clock in UTC. It implements site.Clock.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Frozen always reports At.
type Frozen struct {
	At time.Time
}

// Now returns the frozen instant unchanged.
func (f Frozen) Now() time.Time {
	return f.At
}
