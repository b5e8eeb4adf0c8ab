// Package migrations embeds the goose SQL migrations for the lobby and
// world databases (spec §6 "Persisted state").
package migrations

import "embed"

//go:embed lobby/*.sql
var LobbyFS embed.FS

//go:embed world/*.sql
var WorldFS embed.FS
