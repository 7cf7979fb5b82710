package sntp

import (
	"errors"
	"time"

	"github.com/beevik/ntp"
	"github.com/samber/oops"
)

// ErrInvalidResponse is returned when an NTP response fails validation.
var ErrInvalidResponse = errors.New("invalid NTP response")

const (
	maxRTT            = 2 * time.Second  // Max acceptable round-trip time
	maxClockOffset    = 10 * time.Second // Max acceptable clock offset
	maxRootDispersion = 1 * time.Second  // Max acceptable root dispersion
	maxRootDelay      = 1 * time.Second  // Max acceptable root delay
)

// validateResponse validates the SNTP response against multiple criteria including
// leap indicator, stratum level, timing metrics, time value, and root metrics.
func validateResponse(response *ntp.Response) error {
	if response == nil {
		return oops.Wrapf(ErrInvalidResponse, "nil response")
	}
	for _, check := range []func(*ntp.Response) error{
		validateLeapAndStratum,
		validateTimingMetrics,
		validateTimeValue,
		validateRootMetrics,
	} {
		if err := check(response); err != nil {
			return err
		}
	}
	return nil
}

// validateLeapAndStratum checks the leap indicator and stratum level of the response.
func validateLeapAndStratum(response *ntp.Response) error {
	if response.Leap == ntp.LeapNotInSync {
		return oops.Wrapf(ErrInvalidResponse, "server clock not synchronized")
	}
	if response.Stratum == 0 || response.Stratum > 15 {
		return oops.Wrapf(ErrInvalidResponse, "stratum %d out of range", response.Stratum)
	}
	return nil
}

// validateTimingMetrics checks round-trip delay and clock offset against acceptable bounds.
func validateTimingMetrics(response *ntp.Response) error {
	if response.RTT < 0 || response.RTT > maxRTT {
		return oops.Wrapf(ErrInvalidResponse, "round-trip delay %v out of bounds", response.RTT)
	}
	if absDuration(response.ClockOffset) > maxClockOffset {
		return oops.Wrapf(ErrInvalidResponse, "clock offset %v out of bounds", response.ClockOffset)
	}
	return nil
}

func validateTimeValue(response *ntp.Response) error {
	if response.Time.IsZero() {
		return oops.Wrapf(ErrInvalidResponse, "zero time")
	}
	return nil
}

// validateRootMetrics checks root dispersion and root delay against maximum thresholds.
func validateRootMetrics(response *ntp.Response) error {
	if response.RootDispersion > maxRootDispersion {
		return oops.Wrapf(ErrInvalidResponse, "root dispersion %v too high", response.RootDispersion)
	}
	if response.RootDelay > maxRootDelay {
		return oops.Wrapf(ErrInvalidResponse, "root delay %v too high", response.RootDelay)
	}
	return nil
}
