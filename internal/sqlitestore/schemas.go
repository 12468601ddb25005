package sqlitestore

import "embed"

// sqlSchemas embeds the kv table's migration files (spec §4.4 "KV tables"),
// adapted from the teacher's internal/db/schemas.go embedding convention.
//
//go:embed migrations/*.sql
var sqlSchemas embed.FS
