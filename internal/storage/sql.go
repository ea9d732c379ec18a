package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// SQLStore implements Store over database/sql for SQLite and PostgreSQL
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  zerolog.Logger
}

// Open connects to the database for driver ("sqlite" or "postgres") and
// migrates the schema. For sqlite dsn is a file path.
func Open(ctx context.Context, driver, dsn string, logger zerolog.Logger) (*SQLStore, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return openSQL(ctx, sqliteDialect, dsn, logger)
	case "postgres", "postgresql":
		return openSQL(ctx, postgresDialect, dsn, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(dbPath string, logger zerolog.Logger) (*SQLStore, error) {
	return openSQL(context.Background(), sqliteDialect, dbPath, logger)
}

func openSQL(ctx context.Context, d dialect, dsn string, logger zerolog.Logger) (*SQLStore, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if d.name == sqliteDialect.name {
		// Apply performance pragmas for SQLite
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA cache_size=10000",
			"PRAGMA temp_store=MEMORY",
			"PRAGMA foreign_keys=ON",
		}
		for _, pragma := range pragmas {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
			}
		}
	}

	db.SetMaxOpenConns(d.connections)
	db.SetMaxIdleConns(d.connections)
	if d.connections == 1 {
		db.SetConnMaxLifetime(0)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	store := &SQLStore{
		db:      db,
		dialect: d,
		logger:  logger.With().Str("component", "storage").Str("driver", d.name).Logger(),
	}

	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	store.logger.Info().Msg("Database store initialized")

	return store, nil
}

// Driver returns the dialect name
func (s *SQLStore) Driver() string {
	return s.dialect.name
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate creates the database schema if it doesn't exist
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	s.logger.Debug().Msg("Database schema migrated")
	return nil
}

func (s *SQLStore) rebind(query string) string {
	return s.dialect.rebind(query)
}

func (s *SQLStore) timeArg(t time.Time) interface{} {
	return s.dialect.timeArg(t)
}

// parseTimestamp accepts whatever form the driver hands back. Drivers that
// decode DATETIME columns produce RFC3339 text when scanned into a string.
func parseTimestamp(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	t, err := dateparse.ParseIn(ts, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse timestamp %q: %w", ts, err)
	}
	if t.IsZero() {
		return time.Time{}, fmt.Errorf("zero timestamp %q", ts)
	}

	return t.UTC(), nil
}
