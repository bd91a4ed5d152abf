// Package system provides a real clock implementation.
package system

import (
	"fmt"
	"time"
)

// Clock reports wall time in a fixed location.
type Clock struct {
	loc *time.Location
}

// New creates a Clock in loc. A nil loc means UTC.
func New(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// NewInZone creates a Clock for an IANA zone name such as "Asia/Seoul".
func NewInZone(name string) (*Clock, error) {
	if name == "" {
		return New(nil), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return New(loc), nil
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.Location())
}

// Location returns the clock's zone.
func (c *Clock) Location() *time.Location {
	if c == nil || c.loc == nil {
		return time.UTC
	}
	return c.loc
}
