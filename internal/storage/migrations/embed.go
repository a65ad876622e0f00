// Package migrations applies the embedded schema for the PostgreSQL
// position store and the ClickHouse fill store.
package migrations

import "embed"

// Dialect directories inside FS.
const (
	PostgresDir   = "postgres"
	ClickhouseDir = "clickhouse"
)

// FS holds every migration, one directory per dialect. Files are applied in
// name order (001_, 002_, ...).
//
//go:embed postgres/*.sql clickhouse/*.sql
var FS embed.FS
