package migrations

import "embed"

// PostgresFS embeds the PostgreSQL schema: blueprints, positions and
// per-run summary/aggregate tables.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the ClickHouse schema: the analytical event and
// fill ledger tables.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
