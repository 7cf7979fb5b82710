// Package skew checks timestamps against a clock with a tolerance.
//
// A relay uses it to refuse tunnel build requests whose request time is too
// far from its own clock, which would otherwise let a stale or replayed
// request install hop keys.
//
// Usage:
//
//	if err := skew.Validate(clock, record.RequestTime, skew.MaxBuildRequestSkew); err != nil {
//	    // Reject the build request
//	}
package skew
