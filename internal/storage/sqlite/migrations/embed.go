package migrations

import "embed"

// FS contains embedded SQLite migrations for the state and receipt stores.
//
//go:embed *.sql
var FS embed.FS
