package config

import (
	"time"

	"github.com/nexusmmo/core/internal/group"
)

// MatchSettings is the yaml-facing shape of the per-pvp-type match queue
// tuning (spec §6 "pvp_queue_wait", "pvp_ghosts[type]"). MinPlayers is the
// supplemented piece: the original keys this off server_constants_path's
// content definitions, which are out of this core's scope, so the
// threshold travels alongside the ghost count here instead of requiring a
// separate content file format.
type MatchSettings struct {
	QueueWaitSeconds int                `yaml:"pvp_queue_wait"`
	Ghosts           map[int32]int      `yaml:"pvp_ghosts"`
	MinPlayers       map[int32]int      `yaml:"pvp_min_players"`
}

// DefaultMatchSettings returns defaults matching the spec §8 S4 scenario
// (type 0 requiring 6 players, no ghosts, 10s queue wait).
func DefaultMatchSettings() MatchSettings {
	return MatchSettings{
		QueueWaitSeconds: 10,
		Ghosts:           map[int32]int{},
		MinPlayers:       map[int32]int{0: 6},
	}
}

// ToMatchConfig converts the loaded settings into the group package's
// runtime configuration.
func (s MatchSettings) ToMatchConfig() group.MatchConfig {
	return group.MatchConfig{
		MinPlayers: s.MinPlayers,
		Ghosts:     s.Ghosts,
		QueueWait:  time.Duration(s.QueueWaitSeconds) * time.Second,
	}
}
