// Package dayclock maps wall-clock time onto integer day indexes.
package dayclock

import (
	"sync"
	"time"
)

// DayLength is the width of one scoring day
const DayLength = 24 * time.Hour

const daySeconds = int64(DayLength / time.Second)

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock
type SystemClock struct{}

// Now returns time.Now
func (SystemClock) Now() time.Time { return time.Now() }

// Partitioner stamps times with day indexes. It holds no state besides the
// clock and reads it on every call.
type Partitioner struct {
	clock Clock
}

// New creates a partitioner; a nil clock means the system clock
func New(clock Clock) *Partitioner {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Partitioner{clock: clock}
}

// Now returns the clock's current time
func (p *Partitioner) Now() time.Time {
	return p.clock.Now()
}

// CurrentDay returns the day index for the current instant
func (p *Partitioner) CurrentDay() uint64 {
	return DayOf(p.clock.Now())
}

// DayOf floor-divides t's unix seconds by the day length. Instants before
// the epoch map to day 0.
func DayOf(t time.Time) uint64 {
	sec := t.Unix()
	if sec < 0 {
		return 0
	}
	return uint64(sec / daySeconds)
}

// DayStart returns the first instant of day d in UTC
func DayStart(d uint64) time.Time {
	return time.Unix(int64(d)*daySeconds, 0).UTC()
}

// ManualClock is a settable clock for tests and replays
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock frozen at t
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

// Now returns the frozen time
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
