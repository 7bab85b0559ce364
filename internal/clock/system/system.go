// Package system backs stock.Clock with the wall clock.
package system

import "time"

// Clock reads the system wall clock. All timestamps the watcher persists
// flow through here, so everything is normalized to UTC.
type Clock struct{}

// New returns a wall-clock Clock.
func New() *Clock {
	return &Clock{}
}

// Now reports the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
