// Package config provides configuration management for the tunnelpipe tool.
//
// Values come from three layers, later ones winning: the built in Defaults(),
// the YAML file at $HOME/.go-i2p-tunnelpipe/config.yaml (or --config), and
// command line flags bound to the same viper keys. The file is written with
// the defaults on first run.
//
// CurrentConfig() reads the merged result and Validate() checks it before the
// simulator builds anything from it.
package config
