package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerCountDisabledIsOne(t *testing.T) {
	n := Network{MultithreadMode: false}
	assert.Equal(t, 1, n.WorkerCount())
}

func TestBindAddressAnyUsesBareColon(t *testing.T) {
	n := Network{Port: 7777, ListenAddress: "any"}
	assert.Equal(t, ":7777", n.BindAddress())

	n.ListenAddress = "10.0.0.5"
	assert.Equal(t, "10.0.0.5:7777", n.BindAddress())
}

func TestDatabaseValidateRejectsUnsupportedType(t *testing.T) {
	db := Database{Type: "mariadb"}
	assert.Error(t, db.Validate())

	db.Type = "postgres"
	assert.NoError(t, db.Validate())
}

func TestLoadLobbyMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadLobby("/nonexistent/path/to/lobby.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultLobby(), cfg)
}

func TestMatchSettingsConvertsToMatchConfig(t *testing.T) {
	settings := DefaultMatchSettings()
	mc := settings.ToMatchConfig()
	assert.Equal(t, 10, int(mc.QueueWait.Seconds()))
	assert.Equal(t, 6, mc.MinPlayers[0])
}
