// Package monotonic provides the clocks used by the tunnel pipeline.
//
// Go's time.Now() includes a monotonic clock reading that is immune to wall
// clock adjustments. Clock wraps time.Now() and applies an offset learned from
// SNTP (see package sntp), so the router's idea of "now" can be corrected
// without stepping the system clock.
//
// Hop expirations are absolute timestamps handed out by the tunnel build
// protocol. They have no monotonic reading, so IsExpiredAt compares wall clock
// values:
//
//	clock := monotonic.NewClock()
//	if monotonic.IsExpiredAt(clock, hop.Expiration()) {
//	    // drop the message, the tunnel must be rebuilt
//	}
//
// FrozenClock is a Source that only moves when Advance or Set is called.
package monotonic
