package timex

import "time"

// Clock returns the current time. Components take one so tests can drive time.
type Clock func() time.Time

// Or returns c, or time.Now when c is nil.
func (c Clock) Or() Clock {
	if c == nil {
		return time.Now
	}
	return c
}

// HMS splits the wall-clock part of t.
func HMS(t time.Time) (h, m, s uint8) {
	hh, mm, ss := t.Clock()
	return uint8(hh), uint8(mm), uint8(ss)
}

// Seconds converts whole seconds to a duration.
func Seconds(n uint32) time.Duration { return time.Duration(n) * time.Second }
