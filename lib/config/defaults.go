package config

import (
	"time"
)

// ConfigDefaults contains all default configuration values for tunnelpipe.
// Defaults() is the single source of truth; setDefaults() feeds it to viper.
type ConfigDefaults struct {
	Tunnel TunnelDefaults
	Relay  RelayDefaults
	Clock  ClockDefaults
}

// TunnelDefaults describes the tunnel the simulator builds.
type TunnelDefaults struct {
	// HopCount is hops per tunnel, gateway and endpoint included.
	// Default: 8 (the most a build message carries)
	HopCount int

	// Lifetime is how long hop configurations stay valid
	// Default: 10 minutes (I2P protocol standard)
	Lifetime time.Duration

	// PayloadSize is the payload of each simulated message in bytes.
	// Must be a multiple of the AES block size.
	// Default: 112
	PayloadSize int

	// Direction is "inbound" or "outbound"
	// Default: inbound
	Direction string
}

// RelayDefaults tunes the staged forwarding loop.
type RelayDefaults struct {
	// WorkersPerStage is the number of goroutines peeling for each hop
	// Default: 4
	WorkersPerStage int

	// QueueDepth is the buffered channel size between stages
	// Default: 64
	QueueDepth int

	// MessagesPerSecond caps ingress at the gateway
	// Default: 500
	MessagesPerSecond float64

	// Burst is the ingress token bucket size
	// Default: 50
	Burst int

	// ReplayWindow is how long each stage remembers chaining IVs
	// Default: 10 minutes (one tunnel lifetime)
	ReplayWindow time.Duration
}

// ClockDefaults configures the optional SNTP correction of the clock used
// for hop expiration.
type ClockDefaults struct {
	// SyncEnabled runs one SNTP measurement at startup
	// Default: false
	SyncEnabled bool

	// Servers are queried in order
	// Default: pool.ntp.org, time.cloudflare.com
	Servers []string

	// Timeout bounds each query
	// Default: 5 seconds
	Timeout time.Duration
}

// Defaults returns a ConfigDefaults instance with all default values set.
func Defaults() ConfigDefaults {
	return ConfigDefaults{
		Tunnel: buildTunnelDefaults(),
		Relay:  buildRelayDefaults(),
		Clock:  buildClockDefaults(),
	}
}

func buildTunnelDefaults() TunnelDefaults {
	return TunnelDefaults{
		HopCount:    8,
		Lifetime:    10 * time.Minute,
		PayloadSize: 112,
		Direction:   "inbound",
	}
}

func buildRelayDefaults() RelayDefaults {
	return RelayDefaults{
		WorkersPerStage:   4,
		QueueDepth:        64,
		MessagesPerSecond: 500,
		Burst:             50,
		ReplayWindow:      10 * time.Minute,
	}
}

func buildClockDefaults() ClockDefaults {
	return ClockDefaults{
		SyncEnabled: false,
		Servers:     []string{"pool.ntp.org", "time.cloudflare.com"},
		Timeout:     5 * time.Second,
	}
}
