package domain

import "time"

// Clock supplies "now" to every operation that needs a timestamp or a
// calendar date, so order creation, status stamps, and due-date checks
// are deterministic under test.
type Clock interface {
	Now() time.Time
}

// Today truncates the clock's current time to a calendar date (midnight UTC).
// Recurring-order due checks compare dates, not instants.
func Today(c Clock) time.Time {
	return DateOf(c.Now())
}

// DateOf truncates t to midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// FixedClock returns a Clock that always reports t. Intended for tests
// and for pinning a batch run to a single "today".
func FixedClock(t time.Time) Clock { return fixedClock{t} }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }
