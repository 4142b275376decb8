package migrations

import "embed"

// FS contains embedded SQLite migrations for the palco store.
//
//go:embed *.sql
var FS embed.FS
