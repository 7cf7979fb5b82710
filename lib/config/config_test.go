package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	d := Defaults()

	assert.Equal(t, 8, d.Tunnel.HopCount)
	assert.Equal(t, 10*time.Minute, d.Tunnel.Lifetime)
	assert.Equal(t, 112, d.Tunnel.PayloadSize)
	assert.Equal(t, "inbound", d.Tunnel.Direction)

	assert.Equal(t, 4, d.Relay.WorkersPerStage)
	assert.Equal(t, 64, d.Relay.QueueDepth)
	assert.Equal(t, 500.0, d.Relay.MessagesPerSecond)
	assert.Equal(t, 50, d.Relay.Burst)
	assert.Equal(t, 10*time.Minute, d.Relay.ReplayWindow)

	assert.False(t, d.Clock.SyncEnabled)
	assert.Equal(t, []string{"pool.ntp.org", "time.cloudflare.com"}, d.Clock.Servers)
	assert.Equal(t, 5*time.Second, d.Clock.Timeout)

	assert.NoError(t, Validate(d))
}

// TestCurrentConfigDefaultsRoundTrip catches key mismatches between
// setDefaults and CurrentConfig.
func TestCurrentConfigDefaultsRoundTrip(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaults()

	assert.Equal(t, Defaults(), CurrentConfig())
}

func TestCurrentConfigOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaults()

	viper.Set(KeyTunnelHopCount, 3)
	viper.Set(KeyTunnelLifetime, "90s")
	viper.Set(KeyRelayRate, 12.5)
	viper.Set(KeyClockServers, []string{"ntp.example"})

	cfg := CurrentConfig()
	assert.Equal(t, 3, cfg.Tunnel.HopCount)
	assert.Equal(t, 90*time.Second, cfg.Tunnel.Lifetime)
	assert.Equal(t, 12.5, cfg.Relay.MessagesPerSecond)
	assert.Equal(t, []string{"ntp.example"}, cfg.Clock.Servers)
}

func TestInitConfigReadsFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "tunnel:\n  hop_count: 4\n  payload_size: 64\nrelay:\n  workers_per_stage: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	saved := CfgFile
	CfgFile = path
	t.Cleanup(func() { CfgFile = saved })

	require.NoError(t, InitConfig())
	cfg := CurrentConfig()
	assert.Equal(t, 4, cfg.Tunnel.HopCount)
	assert.Equal(t, 64, cfg.Tunnel.PayloadSize)
	assert.Equal(t, 2, cfg.Relay.WorkersPerStage)
	assert.Equal(t, 64, cfg.Relay.QueueDepth, "unset keys keep their defaults")
}

func TestInitConfigMissingExplicitFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	saved := CfgFile
	CfgFile = filepath.Join(t.TempDir(), "missing.yaml")
	t.Cleanup(func() { CfgFile = saved })

	assert.Error(t, InitConfig())
}

func TestInitConfigCreatesDefaultFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	saved := CfgFile
	CfgFile = ""
	t.Cleanup(func() { CfgFile = saved })

	require.NoError(t, InitConfig())
	_, err := os.Stat(filepath.Join(BuildI2PDirPath(), "config.yaml"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *ConfigDefaults)
		valid  bool
	}{
		{"defaults", func(c *ConfigDefaults) {}, true},
		{"two hops", func(c *ConfigDefaults) { c.Tunnel.HopCount = 2 }, true},
		{"one hop", func(c *ConfigDefaults) { c.Tunnel.HopCount = 1 }, false},
		{"nine hops", func(c *ConfigDefaults) { c.Tunnel.HopCount = 9 }, false},
		{"zero payload", func(c *ConfigDefaults) { c.Tunnel.PayloadSize = 0 }, false},
		{"unaligned payload", func(c *ConfigDefaults) { c.Tunnel.PayloadSize = 100 }, false},
		{"zero lifetime", func(c *ConfigDefaults) { c.Tunnel.Lifetime = 0 }, false},
		{"outbound", func(c *ConfigDefaults) { c.Tunnel.Direction = "out" }, true},
		{"bad direction", func(c *ConfigDefaults) { c.Tunnel.Direction = "up" }, false},
		{"no workers", func(c *ConfigDefaults) { c.Relay.WorkersPerStage = 0 }, false},
		{"no queue", func(c *ConfigDefaults) { c.Relay.QueueDepth = 0 }, false},
		{"no rate", func(c *ConfigDefaults) { c.Relay.MessagesPerSecond = 0 }, false},
		{"no burst", func(c *ConfigDefaults) { c.Relay.Burst = 0 }, false},
		{"no replay window", func(c *ConfigDefaults) { c.Relay.ReplayWindow = 0 }, false},
		{"sync without servers", func(c *ConfigDefaults) {
			c.Clock.SyncEnabled = true
			c.Clock.Servers = nil
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}
