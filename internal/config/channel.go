package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Channel holds the configuration of a channel process: its own client
// listener, its registration against the world, and its channel id
// (spec §3 "Channel id is 1..N").
type Channel struct {
	Network `yaml:",inline"`

	ID int8 `yaml:"channel_id"`

	WorldAddress string `yaml:"world_address"`
	WorldPort    uint16 `yaml:"world_port"`

	LogLevel string `yaml:"log_level"`
}

// DefaultChannel returns a Channel config with sensible defaults.
func DefaultChannel() Channel {
	return Channel{
		Network:      defaultNetwork(7777),
		ID:           1,
		WorldAddress: "127.0.0.1",
		WorldPort:    9014,
		LogLevel:     "info",
	}
}

// LoadChannel loads a channel process's config from a YAML file, falling
// back to defaults for any key the file doesn't set.
func LoadChannel(path string) (Channel, error) {
	cfg := DefaultChannel()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if cfg.ID < 1 {
		return cfg, fmt.Errorf("channel_id must be >= 1, got %d", cfg.ID)
	}
	return cfg, nil
}
