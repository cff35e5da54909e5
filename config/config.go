// Package config loads node configuration from an optional YAML file with
// built-in defaults.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"presence-go/radio"
	"presence-go/sensing"
)

// DefaultConfigDir is searched for presence.yaml when no directory is given.
const DefaultConfigDir = "/etc/presence"

// Config is the static per-node configuration. Thresholds and sensitivities
// are not configured here; they live in the settings store.
type Config struct {
	NodeID       int    `mapstructure:"node-id"`
	RadioPort    int    `mapstructure:"radio-port"`
	FeedPort     int    `mapstructure:"feed-port"`
	HTTPPort     int    `mapstructure:"http-port"`
	StorePath    string `mapstructure:"store-path"`
	CalibrationS int    `mapstructure:"calibration-seconds"`
}

// CalibrationDuration returns the configured training duration.
func (c *Config) CalibrationDuration() time.Duration {
	return time.Duration(c.CalibrationS) * time.Second
}

// Load reads presence.yaml from dir, if present. A missing file keeps all
// defaults; a malformed one is an error.
func Load(dir string) (*Config, error) {
	if dir == "" {
		dir = DefaultConfigDir
	}
	v := viper.New()
	v.SetConfigName("presence")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetDefault("node-id", 0)
	v.SetDefault("radio-port", radio.DefaultPort)
	v.SetDefault("feed-port", sensing.DefaultFeedPort)
	v.SetDefault("http-port", 8080)
	v.SetDefault("store-path", "presence.db")
	v.SetDefault("calibration-seconds", 30)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if c.NodeID < 0 || c.NodeID > 2 {
		return nil, fmt.Errorf("node-id %d outside 0-2", c.NodeID)
	}
	return &c, nil
}
