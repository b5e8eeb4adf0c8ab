package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// World holds the configuration of the world process: the internal
// listener channels register against, the lobby connection, the
// Characters database, and the match-queue tuning (spec §4.10).
type World struct {
	Network `yaml:",inline"`

	LobbyAddress string `yaml:"lobby_address"`
	LobbyPort    uint16 `yaml:"lobby_port"`

	// ChannelConnectionTimeout is the channel-switch hard timeout
	// (spec §6 "channel_connection_timeout: seconds").
	ChannelConnectionTimeout time.Duration `yaml:"channel_connection_timeout"`

	// DataSyncInterval is how often SyncOutgoing batches and flushes queued
	// cross-server record updates (spec §4.7 "DataSyncManager").
	DataSyncInterval time.Duration `yaml:"data_sync_interval"`

	Database Database `yaml:"database"`

	Match MatchSettings `yaml:"match"`

	LogLevel string `yaml:"log_level"`
}

// SyncInterval returns the configured data-sync tick period.
func (w World) SyncInterval() time.Duration { return w.DataSyncInterval }

// DefaultWorld returns a World config with sensible defaults.
func DefaultWorld() World {
	return World{
		Network:                  defaultNetwork(9014),
		LobbyAddress:             "127.0.0.1",
		LobbyPort:                9013,
		ChannelConnectionTimeout: 30 * time.Second,
		DataSyncInterval:         time.Second,
		Database:                 defaultDatabase("nexus_world"),
		Match:                    DefaultMatchSettings(),
		LogLevel:                 "info",
	}
}

// LoadWorld loads the world config from a YAML file, falling back to
// defaults for any key the file doesn't set.
func LoadWorld(path string) (World, error) {
	cfg := DefaultWorld()

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
	if err := cfg.Database.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
