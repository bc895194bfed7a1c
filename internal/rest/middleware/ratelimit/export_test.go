package ratelimit

import "time"

// SetClock replaces the time source used by the limiter.
func (m *Middleware) SetClock(now func() time.Time) {
	m.now = now
}
