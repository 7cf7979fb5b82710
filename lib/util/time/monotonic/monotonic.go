package monotonic

import (
	"sync"
	"time"
)

// Source is anything that can report the current wall clock time.
// Tunnel processors consume a Source for hop expiration checks.
type Source interface {
	Now() time.Time
}

// Clock provides the router's notion of "now". It uses time.Now() internally,
// which carries a monotonic reading, and adds the offset learned from SNTP.
type Clock struct {
	// offset is added to time.Now() to account for NTP synchronization.
	// Protected by mu.
	offset time.Duration
	mu     sync.RWMutex
}

// NewClock creates a new Clock with zero offset.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the current time adjusted by any NTP offset.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	offset := c.offset
	c.mu.RUnlock()
	return time.Now().Add(offset)
}

// SetOffset updates the NTP time offset. This is called when the SNTP
// subsystem determines a new clock correction.
func (c *Clock) SetOffset(offset time.Duration) {
	c.mu.Lock()
	c.offset = offset
	c.mu.Unlock()
}

// Offset returns the current NTP time offset.
func (c *Clock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// FrozenClock is a Source that only moves when told to. It is used by the
// simulator for reproducible runs and by tests that exercise expiration.
type FrozenClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewFrozenClock returns a FrozenClock stopped at t.
func NewFrozenClock(t time.Time) *FrozenClock {
	return &FrozenClock{now: t}
}

// Now returns the frozen time.
func (f *FrozenClock) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.now
}

// Advance moves the clock forward by d. Negative values move it backward.
func (f *FrozenClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Set moves the clock to t.
func (f *FrozenClock) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// IsExpiredAt reports whether expiration lies strictly before the time
// reported by src. A zero expiration is always expired.
//
// Expirations in tunnel configs arrive from the build protocol, so they carry
// no monotonic reading and the comparison is a plain wall clock comparison.
func IsExpiredAt(src Source, expiration time.Time) bool {
	if expiration.IsZero() {
		return true
	}
	return src.Now().After(expiration)
}

var (
	_ Source = (*Clock)(nil)
	_ Source = (*FrozenClock)(nil)
)
