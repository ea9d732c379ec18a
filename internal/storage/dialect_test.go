package storage

import (
	"testing"
	"time"
)

func TestDialect_Rebind(t *testing.T) {
	tests := []struct {
		d     dialect
		query string
		want  string
	}{
		{sqliteDialect, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{postgresDialect, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{postgresDialect, "DELETE FROM readings", "DELETE FROM readings"},
		{postgresDialect, "VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", "VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)"},
	}

	for _, tt := range tests {
		if got := tt.d.rebind(tt.query); got != tt.want {
			t.Errorf("%s rebind(%q) = %q, want %q", tt.d.name, tt.query, got, tt.want)
		}
	}
}

func TestDialect_TimeArg(t *testing.T) {
	ts := time.Date(2024, 6, 1, 9, 30, 0, 0, time.FixedZone("CEST", 2*60*60))

	if got := sqliteDialect.timeArg(ts); got != "2024-06-01 07:30:00" {
		t.Errorf("sqlite timeArg = %v", got)
	}

	got, ok := postgresDialect.timeArg(ts).(time.Time)
	if !ok || !got.Equal(ts) || got.Location() != time.UTC {
		t.Errorf("postgres timeArg = %v", got)
	}
}
