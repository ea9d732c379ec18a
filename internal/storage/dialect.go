package storage

import (
	"strconv"
	"strings"
	"time"
)

const sqliteTimeFormat = "2006-01-02 15:04:05"

// dialect captures the few places SQLite and PostgreSQL differ
type dialect struct {
	name        string
	driver      string
	numbered    bool
	dayExpr     string
	sizeQuery   string
	schema      []string
	connections int
}

var sqliteDialect = dialect{
	name:        "sqlite",
	driver:      "sqlite3",
	dayExpr:     "date(collected_at)",
	sizeQuery:   "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()",
	connections: 1,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sensor_id TEXT NOT NULL,
			temperature REAL NOT NULL,
			humidity INTEGER NOT NULL,
			brightness INTEGER NOT NULL DEFAULT 0,
			collected_at DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_sensor_time ON readings(sensor_id, collected_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_time ON readings(collected_at DESC)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS spaces (
			id TEXT PRIMARY KEY,
			tag TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL,
			sensor_id TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_spaces_user ON spaces(user_id)`,
		`CREATE TABLE IF NOT EXISTS plants (
			id TEXT PRIMARY KEY,
			api_id TEXT NOT NULL,
			space_id TEXT NOT NULL REFERENCES spaces(id) ON DELETE CASCADE,
			name TEXT NOT NULL DEFAULT '',
			temperature REAL,
			brightness REAL,
			image_url TEXT NOT NULL DEFAULT '',
			watered BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_plants_space ON plants(space_id)`,
	},
}

var postgresDialect = dialect{
	name:        "postgres",
	driver:      "postgres",
	numbered:    true,
	dayExpr:     "to_char(collected_at AT TIME ZONE 'UTC', 'YYYY-MM-DD')",
	sizeQuery:   "SELECT pg_database_size(current_database())",
	connections: 10,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS readings (
			id BIGSERIAL PRIMARY KEY,
			sensor_id TEXT NOT NULL,
			temperature DOUBLE PRECISION NOT NULL,
			humidity INTEGER NOT NULL,
			brightness INTEGER NOT NULL DEFAULT 0,
			collected_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_sensor_time ON readings(sensor_id, collected_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_time ON readings(collected_at DESC)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS spaces (
			id TEXT PRIMARY KEY,
			tag TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL,
			sensor_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_spaces_user ON spaces(user_id)`,
		`CREATE TABLE IF NOT EXISTS plants (
			id TEXT PRIMARY KEY,
			api_id TEXT NOT NULL,
			space_id TEXT NOT NULL REFERENCES spaces(id) ON DELETE CASCADE,
			name TEXT NOT NULL DEFAULT '',
			temperature DOUBLE PRECISION,
			brightness DOUBLE PRECISION,
			image_url TEXT NOT NULL DEFAULT '',
			watered BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_plants_space ON plants(space_id)`,
	},
}

// rebind rewrites ? placeholders as $1, $2... for PostgreSQL
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// timeArg formats a timestamp the way the dialect stores it
func (d dialect) timeArg(t time.Time) interface{} {
	if d.numbered {
		return t.UTC()
	}
	return t.UTC().Format(sqliteTimeFormat)
}
