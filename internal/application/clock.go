package application

import "time"

// Clock interface supaya gampang ditest
type Clock interface {
	Now() time.Time
}

// SystemClock returns the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns T. Handy in tests and the local trigger harness.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }
