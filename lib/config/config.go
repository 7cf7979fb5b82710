package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/go-i2p/logger"
	"github.com/go-i2p/tunnelpipe/lib/util"
	"github.com/samber/oops"
	"github.com/spf13/viper"
)

var (
	CfgFile string
	log     = logger.GetGoI2PLogger()
)

const GOI2P_BASE_DIR = ".go-i2p-tunnelpipe"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Viper keys. setDefaults and CurrentConfig must agree on these.
const (
	KeyTunnelHopCount    = "tunnel.hop_count"
	KeyTunnelLifetime    = "tunnel.lifetime"
	KeyTunnelPayloadSize = "tunnel.payload_size"
	KeyTunnelDirection   = "tunnel.direction"

	KeyRelayWorkers = "relay.workers_per_stage"
	KeyRelayQueue   = "relay.queue_depth"
	KeyRelayRate    = "relay.messages_per_second"
	KeyRelayBurst   = "relay.burst"
	KeyRelayReplay  = "relay.replay_window"
	KeyClockSync    = "clock.sync_enabled"
	KeyClockServers = "clock.servers"
	KeyClockTimeout = "clock.timeout"
)

// InitConfig points viper at the config file, loads defaults and reads the
// file, creating it with defaults when it does not exist yet.
func InitConfig() error {
	if CfgFile != "" {
		viper.SetConfigFile(CfgFile)
	} else {
		viper.AddConfigPath(BuildI2PDirPath())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	return handleConfigFile()
}

func setDefaults() {
	d := Defaults()

	viper.SetDefault(KeyTunnelHopCount, d.Tunnel.HopCount)
	viper.SetDefault(KeyTunnelLifetime, d.Tunnel.Lifetime)
	viper.SetDefault(KeyTunnelPayloadSize, d.Tunnel.PayloadSize)
	viper.SetDefault(KeyTunnelDirection, d.Tunnel.Direction)

	viper.SetDefault(KeyRelayWorkers, d.Relay.WorkersPerStage)
	viper.SetDefault(KeyRelayQueue, d.Relay.QueueDepth)
	viper.SetDefault(KeyRelayRate, d.Relay.MessagesPerSecond)
	viper.SetDefault(KeyRelayBurst, d.Relay.Burst)
	viper.SetDefault(KeyRelayReplay, d.Relay.ReplayWindow)

	viper.SetDefault(KeyClockSync, d.Clock.SyncEnabled)
	viper.SetDefault(KeyClockServers, d.Clock.Servers)
	viper.SetDefault(KeyClockTimeout, d.Clock.Timeout)
}

// CurrentConfig reads the effective configuration from viper.
func CurrentConfig() ConfigDefaults {
	return ConfigDefaults{
		Tunnel: TunnelDefaults{
			HopCount:    viper.GetInt(KeyTunnelHopCount),
			Lifetime:    viper.GetDuration(KeyTunnelLifetime),
			PayloadSize: viper.GetInt(KeyTunnelPayloadSize),
			Direction:   viper.GetString(KeyTunnelDirection),
		},
		Relay: RelayDefaults{
			WorkersPerStage:   viper.GetInt(KeyRelayWorkers),
			QueueDepth:        viper.GetInt(KeyRelayQueue),
			MessagesPerSecond: viper.GetFloat64(KeyRelayRate),
			Burst:             viper.GetInt(KeyRelayBurst),
			ReplayWindow:      viper.GetDuration(KeyRelayReplay),
		},
		Clock: ClockDefaults{
			SyncEnabled: viper.GetBool(KeyClockSync),
			Servers:     viper.GetStringSlice(KeyClockServers),
			Timeout:     viper.GetDuration(KeyClockTimeout),
		},
	}
}

func createDefaultConfig(defaultConfigDir string) error {
	defaultConfigFile := filepath.Join(defaultConfigDir, "config.yaml")
	if err := os.MkdirAll(defaultConfigDir, 0o755); err != nil {
		return oops.Wrapf(err, "could not create config directory")
	}
	if err := viper.SafeWriteConfigAs(defaultConfigFile); err != nil {
		return oops.Wrapf(err, "could not write default config file")
	}

	log.Debugf("Created default configuration at: %s", defaultConfigFile)
	return nil
}

func handleConfigFile() error {
	err := viper.ReadInConfig()
	if err == nil {
		log.Debugf("Using config file: %s", viper.ConfigFileUsed())
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	switch {
	case CfgFile != "" && !util.CheckFileExists(CfgFile):
		return oops.Wrapf(err, "config file %s not found", CfgFile)
	case errors.As(err, &notFound):
		return createDefaultConfig(BuildI2PDirPath())
	default:
		return oops.Wrapf(err, "error reading config file")
	}
}

func BuildI2PDirPath() string {
	return filepath.Join(util.UserHome(), GOI2P_BASE_DIR)
}
