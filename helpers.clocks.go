package main

import (
	"time"
)

var _ Clocker = (*Clock)(nil)

// Clocker stamps request durations, uptime and backup snapshots.
type Clocker interface {
	Now() time.Time
}

type Clock struct {
	tz *time.Location
}

// NewClock returns a UTC clock in production and a local one otherwise.
func NewClock(isProd bool) *Clock {
	if isProd {
		return &Clock{time.UTC}
	}
	return &Clock{time.Local}
}

// Now provides current clock time.
func (ck *Clock) Now() time.Time {
	return time.Now().In(ck.tz)
}
