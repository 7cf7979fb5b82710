package config

import (
	"github.com/samber/oops"
)

// Bounds mirrored from the tunnel package. config cannot import tunnel
// without pulling crypto into every config consumer.
const (
	minHopCount = 2
	maxHopCount = 8
	blockSize   = 16
)

// Validate rejects configurations the simulator cannot run.
func Validate(cfg ConfigDefaults) error {
	t, r, c := cfg.Tunnel, cfg.Relay, cfg.Clock

	if t.HopCount < minHopCount || t.HopCount > maxHopCount {
		return oops.Wrapf(ErrInvalidConfig, "%s must be between %d and %d, got %d", KeyTunnelHopCount, minHopCount, maxHopCount, t.HopCount)
	}
	if t.PayloadSize <= 0 || t.PayloadSize%blockSize != 0 {
		return oops.Wrapf(ErrInvalidConfig, "%s must be a positive multiple of %d, got %d", KeyTunnelPayloadSize, blockSize, t.PayloadSize)
	}
	if t.Lifetime <= 0 {
		return oops.Wrapf(ErrInvalidConfig, "%s must be positive, got %s", KeyTunnelLifetime, t.Lifetime)
	}
	switch t.Direction {
	case "inbound", "in", "outbound", "out":
	default:
		return oops.Wrapf(ErrInvalidConfig, "%s must be inbound or outbound, got %q", KeyTunnelDirection, t.Direction)
	}

	if r.WorkersPerStage <= 0 {
		return oops.Wrapf(ErrInvalidConfig, "%s must be positive, got %d", KeyRelayWorkers, r.WorkersPerStage)
	}
	if r.QueueDepth <= 0 {
		return oops.Wrapf(ErrInvalidConfig, "%s must be positive, got %d", KeyRelayQueue, r.QueueDepth)
	}
	if r.MessagesPerSecond <= 0 {
		return oops.Wrapf(ErrInvalidConfig, "%s must be positive, got %v", KeyRelayRate, r.MessagesPerSecond)
	}
	if r.Burst <= 0 {
		return oops.Wrapf(ErrInvalidConfig, "%s must be positive, got %d", KeyRelayBurst, r.Burst)
	}
	if r.ReplayWindow <= 0 {
		return oops.Wrapf(ErrInvalidConfig, "%s must be positive, got %s", KeyRelayReplay, r.ReplayWindow)
	}

	if c.SyncEnabled && len(c.Servers) == 0 {
		return oops.Wrapf(ErrInvalidConfig, "%s is empty but clock sync is enabled", KeyClockServers)
	}
	return nil
}
