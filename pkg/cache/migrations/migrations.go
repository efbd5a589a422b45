// Package migrations embeds the cache's SQLite schema for golang-migrate,
// mirroring how the teacher embeds its PostgreSQL schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
