package auth

import "time"

// Clock abstracts "now" so tests can simulate expiry without sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock. Timestamps are naive UTC, matching
// what the store columns hold.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
