package clock

import "time"

// Clock supplies the reference time for windowed retrieval. Injecting it
// keeps time-window behavior deterministic in tests and lets the engine
// follow simulated time instead of the wall clock.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Manual is a hand-advanced clock for tests.
type Manual struct {
	t time.Time
}

// NewManual creates a Manual clock frozen at t.
func NewManual(t time.Time) *Manual {
	return &Manual{t: t}
}

func (m *Manual) Now() time.Time { return m.t }

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) { m.t = t }

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) { m.t = m.t.Add(d) }
