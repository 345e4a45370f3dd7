package application

import "time"

// Clock supplies the current time; inject a fixed one in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock, always in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns T.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }
