package sntp

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/beevik/ntp"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

// ErrNoValidSamples is returned when no server produced a usable response.
var ErrNoValidSamples = errors.New("no valid NTP samples")

type NTPClient interface {
	QueryWithOptions(host string, options ntp.QueryOptions) (*ntp.Response, error)
}

type DefaultNTPClient struct{}

func (c *DefaultNTPClient) QueryWithOptions(host string, options ntp.QueryOptions) (*ntp.Response, error) {
	return ntp.QueryWithOptions(host, options)
}

// OffsetSetter receives the measured offset. *monotonic.Clock implements it.
type OffsetSetter interface {
	SetOffset(offset time.Duration)
}

const (
	defaultTimeout    = 5 * time.Second
	defaultConcurring = 3
	maxVariance       = 10 * time.Second
)

// ClockSync runs one-shot SNTP measurements against a server list and feeds
// the median offset to a clock. Tunnel expirations are compared against that
// clock, so a router with a skewed system clock still expires hops on time.
type ClockSync struct {
	client     NTPClient
	servers    []string
	timeout    time.Duration
	concurring int
	target     OffsetSetter
}

// NewClockSync returns a ClockSync that sets target's offset on every
// successful Sync. A nil client selects DefaultNTPClient; a non-positive
// timeout selects five seconds.
func NewClockSync(client NTPClient, target OffsetSetter, servers []string, timeout time.Duration) *ClockSync {
	if client == nil {
		client = &DefaultNTPClient{}
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	concurring := defaultConcurring
	if len(servers) < concurring {
		concurring = len(servers)
	}
	return &ClockSync{
		client:     client,
		servers:    slices.Clone(servers),
		timeout:    timeout,
		concurring: concurring,
		target:     target,
	}
}

func (cs *ClockSync) Servers() []string {
	return slices.Clone(cs.servers)
}

// Sync queries servers in order until it has enough concurring samples, or
// runs out of servers, and applies the median offset. Samples more than
// maxVariance away from the first accepted one are discarded.
func (cs *ClockSync) Sync(ctx context.Context) (time.Duration, error) {
	var samples []time.Duration

	for _, server := range cs.servers {
		if len(samples) >= cs.concurring {
			break
		}
		if err := ctx.Err(); err != nil {
			return 0, oops.Wrapf(err, "clock sync cancelled")
		}

		offset, err := cs.querySingle(server)
		if err != nil {
			log.WithFields(logger.Fields{
				"at":     "(ClockSync) Sync",
				"server": server,
			}).WithError(err).Debug("NTP query failed")
			continue
		}
		if len(samples) > 0 && absDuration(offset-samples[0]) > maxVariance {
			log.WithFields(logger.Fields{
				"at":       "(ClockSync) Sync",
				"server":   server,
				"offset":   offset,
				"expected": samples[0],
			}).Warn("NTP sample disagrees with first sample")
			continue
		}
		samples = append(samples, offset)
	}

	if len(samples) == 0 {
		return 0, oops.Wrapf(ErrNoValidSamples, "queried %d servers", len(cs.servers))
	}

	offset := calculateMedian(samples)
	if cs.target != nil {
		cs.target.SetOffset(offset)
	}
	log.WithFields(logger.Fields{
		"at":      "(ClockSync) Sync",
		"offset":  offset,
		"samples": len(samples),
	}).Info("clock synchronized")
	return offset, nil
}

// querySingle runs one query and returns the validated clock offset.
func (cs *ClockSync) querySingle(server string) (time.Duration, error) {
	response, err := cs.client.QueryWithOptions(server, ntp.QueryOptions{Timeout: cs.timeout})
	if err != nil {
		return 0, err
	}
	if err := validateResponse(response); err != nil {
		return 0, oops.Wrapf(err, "server %s", server)
	}
	return response.ClockOffset, nil
}

// calculateMedian computes the median of a slice of time.Duration values.
func calculateMedian(deltas []time.Duration) time.Duration {
	if len(deltas) == 0 {
		return 0
	}
	sorted := slices.Clone(deltas)
	slices.Sort(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
