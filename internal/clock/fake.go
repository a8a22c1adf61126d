package clock

import "time"

// FakeClock serves a fixed instant, keeping load timestamps and
// period arithmetic deterministic in tests.
type FakeClock struct {
	now time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward, e.g. to the next business day
// between scheduled runs.
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
