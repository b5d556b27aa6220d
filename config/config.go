// Package config holds the connection settings for cmd/bridgecli, loaded
// from the environment. The bridge core itself takes no configuration
// beyond the two method-toggled booleans described in spec.md §6 — this
// package only configures the demo client: its connection and the initial
// values it gives those two toggles.
package config

import "github.com/caarlos0/env/v6"

type SettingsStruct struct {
	Endpoint       string `env:"BRIDGE_ENDPOINT" envDefault:"ws://127.0.0.1:9944/bridge"`
	DialTimeoutSec int    `env:"BRIDGE_DIAL_TIMEOUT_SEC" envDefault:"10"`
	AutoIdle       bool   `env:"BRIDGE_AUTO_IDLE" envDefault:"true"`
	PropertyCache  bool   `env:"BRIDGE_PROPERTY_CACHE" envDefault:"true"`
}

var Settings SettingsStruct

var _ = env.Parse(&Settings)
