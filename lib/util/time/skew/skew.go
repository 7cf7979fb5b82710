package skew

import (
	"errors"
	"time"

	"github.com/go-i2p/logger"
	"github.com/go-i2p/tunnelpipe/lib/util/time/monotonic"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

// MaxBuildRequestSkew is how far a build request's hour-truncated request
// time may be from the relay's clock. One hour of truncation plus five
// minutes of drift.
const MaxBuildRequestSkew = 65 * time.Minute

var (
	// ErrClockSkew is returned when a timestamp is outside the window.
	ErrClockSkew = errors.New("clock skew: timestamp outside acceptable window")
	// ErrZeroTimestamp is returned for an unset timestamp.
	ErrZeroTimestamp = errors.New("clock skew: timestamp is zero")
)

// Validate checks that ts is within maxSkew of clock.Now(), in either
// direction. A zero ts and a non-positive maxSkew are rejected.
func Validate(clock monotonic.Source, ts time.Time, maxSkew time.Duration) error {
	if maxSkew <= 0 {
		return oops.Errorf("clock skew: maxSkew must be positive, got %s", maxSkew)
	}
	if ts.IsZero() {
		return ErrZeroTimestamp
	}

	now := clock.Now()
	skew := now.Sub(ts)
	if skew <= maxSkew && skew >= -maxSkew {
		return nil
	}

	direction := "past"
	if skew < 0 {
		direction = "future"
		skew = -skew
	}
	log.WithFields(logger.Fields{
		"at":        "skew.Validate",
		"timestamp": ts.UTC().Format(time.RFC3339),
		"now":       now.UTC().Format(time.RFC3339),
		"skew":      skew.String(),
		"max":       maxSkew.String(),
	}).Warnf("Rejecting timestamp too far in the %s", direction)
	return oops.Wrapf(ErrClockSkew, "timestamp is %s in the %s (max %s)", skew, direction, maxSkew)
}

// IsValid is Validate as a boolean.
func IsValid(clock monotonic.Source, ts time.Time, maxSkew time.Duration) bool {
	return Validate(clock, ts, maxSkew) == nil
}
