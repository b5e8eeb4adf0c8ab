package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Lobby holds the configuration of the lobby process: the client-facing
// login listener, the world-up listener (§4.4 point 3's extension
// framing), and the Accounts database.
type Lobby struct {
	Network `yaml:",inline"`

	// WorldListenAddress is where the lobby listens for the world
	// process's registration connection (separate from the client-facing
	// Port, matching la2go's GSListenHost/GSListenPort split).
	WorldListenAddress string `yaml:"world_listen_address"`
	WorldListenPort    uint16 `yaml:"world_listen_port"`

	LoginTryBeforeBan  int `yaml:"login_try_before_ban"`
	LoginBlockAfterBan int `yaml:"login_block_after_ban"` // seconds

	// ChannelSwitchTimeout is read from channel_switch_timeout but nothing
	// in the lobby process uses it; the handoff timeout that World's
	// AccountRegistry applies comes from config.World's
	// ChannelConnectionTimeout (spec §4.8).
	ChannelSwitchTimeout time.Duration `yaml:"channel_switch_timeout"`

	Database Database `yaml:"database"`

	LogLevel string `yaml:"log_level"`
}

// DefaultLobby returns a Lobby config with sensible defaults.
func DefaultLobby() Lobby {
	return Lobby{
		Network:              defaultNetwork(2106),
		WorldListenAddress:   "127.0.0.1",
		WorldListenPort:      9013,
		LoginTryBeforeBan:    5,
		LoginBlockAfterBan:   900,
		ChannelSwitchTimeout: 30 * time.Second,
		Database:             defaultDatabase("nexus_lobby"),
		LogLevel:             "info",
	}
}

// LoadLobby loads the lobby config from a YAML file, falling back to
// defaults for any key the file doesn't set. A missing file is not an
// error; it returns plain defaults.
func LoadLobby(path string) (Lobby, error) {
	cfg := DefaultLobby()

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
