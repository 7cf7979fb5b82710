package main

import (
	"fmt"
	"os"
	"time"

	"github.com/go-i2p/logger"
	"github.com/go-i2p/tunnelpipe/lib/config"
	"github.com/go-i2p/tunnelpipe/lib/util"
	"github.com/go-i2p/tunnelpipe/lib/util/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var log = logger.GetGoI2PLogger()

var rootCmd = &cobra.Command{
	Use:   "tunnelpipe",
	Short: "I2P tunnel cipher pipeline simulator",
	Long: `tunnelpipe builds an I2P tunnel, hands every hop its build request record,
and pushes layered messages through the gateway, participant and endpoint
processors, checking that every payload comes out exactly as it went in.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.InitConfig()
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run messages through a freshly built tunnel",
	Long: `Build a tunnel with random peers and keys, distribute the build request
records, and relay messages hop by hop. Exits non-zero if any payload is
dropped or altered.

Example:
  tunnelpipe simulate --hops 5 --payload 1024 --messages 1000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.CurrentConfig()
		if err := config.Validate(cfg); err != nil {
			return err
		}
		messages, _ := cmd.Flags().GetInt("messages")

		ctx, stop := signals.WithInterrupt(cmd.Context())
		defer stop()
		go signals.Handle()
		defer signals.StopHandle()
		defer util.CloseAll()

		summary, err := runSimulation(ctx, cfg, messages)
		if summary != nil {
			summary.Print(cmd.OutOrStdout())
		}
		return err
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(newConfigView(config.CurrentConfig()))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

// configView is the YAML shape of the configuration, durations as strings.
type configView struct {
	Tunnel struct {
		HopCount    int    `yaml:"hop_count"`
		Lifetime    string `yaml:"lifetime"`
		PayloadSize int    `yaml:"payload_size"`
		Direction   string `yaml:"direction"`
	} `yaml:"tunnel"`
	Relay struct {
		WorkersPerStage   int     `yaml:"workers_per_stage"`
		QueueDepth        int     `yaml:"queue_depth"`
		MessagesPerSecond float64 `yaml:"messages_per_second"`
		Burst             int     `yaml:"burst"`
		ReplayWindow      string  `yaml:"replay_window"`
	} `yaml:"relay"`
	Clock struct {
		SyncEnabled bool     `yaml:"sync_enabled"`
		Servers     []string `yaml:"servers"`
		Timeout     string   `yaml:"timeout"`
	} `yaml:"clock"`
}

func newConfigView(cfg config.ConfigDefaults) configView {
	var v configView
	v.Tunnel.HopCount = cfg.Tunnel.HopCount
	v.Tunnel.Lifetime = cfg.Tunnel.Lifetime.String()
	v.Tunnel.PayloadSize = cfg.Tunnel.PayloadSize
	v.Tunnel.Direction = cfg.Tunnel.Direction
	v.Relay.WorkersPerStage = cfg.Relay.WorkersPerStage
	v.Relay.QueueDepth = cfg.Relay.QueueDepth
	v.Relay.MessagesPerSecond = cfg.Relay.MessagesPerSecond
	v.Relay.Burst = cfg.Relay.Burst
	v.Relay.ReplayWindow = cfg.Relay.ReplayWindow.String()
	v.Clock.SyncEnabled = cfg.Clock.SyncEnabled
	v.Clock.Servers = cfg.Clock.Servers
	v.Clock.Timeout = cfg.Clock.Timeout.String()
	return v
}

func init() {
	rootCmd.PersistentFlags().StringVar(&config.CfgFile, "config", "", "config file (default $HOME/"+config.GOI2P_BASE_DIR+"/config.yaml)")

	f := simulateCmd.Flags()
	f.Int("hops", 0, "hops per tunnel, 2 to 8")
	f.Int("payload", 0, "payload bytes per message, a multiple of 16")
	f.String("direction", "", "inbound or outbound")
	f.Duration("lifetime", 0, "hop lifetime")
	f.Int("workers", 0, "workers per stage")
	f.Float64("rate", 0, "messages per second at the gateway")
	f.Bool("ntp", false, "correct the clock with SNTP before building")
	f.Int("messages", 100, "messages to send")

	bindFlag(simulateCmd, "hops", config.KeyTunnelHopCount)
	bindFlag(simulateCmd, "payload", config.KeyTunnelPayloadSize)
	bindFlag(simulateCmd, "direction", config.KeyTunnelDirection)
	bindFlag(simulateCmd, "lifetime", config.KeyTunnelLifetime)
	bindFlag(simulateCmd, "workers", config.KeyRelayWorkers)
	bindFlag(simulateCmd, "rate", config.KeyRelayRate)
	bindFlag(simulateCmd, "ntp", config.KeyClockSync)

	rootCmd.AddCommand(simulateCmd, configCmd)
}

// bindFlag ties a flag to a viper key. Viper only prefers the flag when it
// was set on the command line, so zero flag defaults do not mask the file.
func bindFlag(cmd *cobra.Command, flag, key string) {
	if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		log.Fatalf("cannot bind flag %s: %s", flag, err)
	}
}

func main() {
	start := time.Now()
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).WithField("elapsed", time.Since(start).String()).Error("tunnelpipe failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
