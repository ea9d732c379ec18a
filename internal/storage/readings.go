package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/afroash/flaura/internal/models"
)

const readingColumns = "id, sensor_id, temperature, humidity, brightness, collected_at"

const insertReadingSQL = `
	INSERT INTO readings (sensor_id, temperature, humidity, brightness, collected_at)
	VALUES (?, ?, ?, ?, ?)
`

// InsertReading inserts a single reading and sets its ID
func (s *SQLStore) InsertReading(ctx context.Context, reading *models.Reading) error {
	row := s.db.QueryRowContext(ctx, s.rebind(insertReadingSQL+" RETURNING id"),
		reading.SensorID,
		reading.Temperature,
		reading.Humidity,
		reading.Brightness,
		s.timeArg(reading.CollectedAt),
	)
	if err := row.Scan(&reading.ID); err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}

	return nil
}

// InsertBatch inserts multiple readings in a single transaction
func (s *SQLStore) InsertBatch(ctx context.Context, readings []*models.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(insertReadingSQL))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, reading := range readings {
		_, err := stmt.ExecContext(ctx,
			reading.SensorID,
			reading.Temperature,
			reading.Humidity,
			reading.Brightness,
			s.timeArg(reading.CollectedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert reading in batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug().Int("count", len(readings)).Msg("Batch insert completed")
	return nil
}

// GetRecentReadings returns up to limit readings collected at or after since,
// newest first. An empty sensorID matches every sensor.
func (s *SQLStore) GetRecentReadings(ctx context.Context, sensorID string, since time.Time, limit int) ([]*models.Reading, error) {
	return s.queryReadings(ctx, sensorID, "collected_at >= ?", "DESC", limit, s.timeArg(since))
}

// GetReadingsInRange returns readings within a time range
func (s *SQLStore) GetReadingsInRange(ctx context.Context, sensorID string, start, end time.Time, limit int) ([]*models.Reading, error) {
	return s.queryReadings(ctx, sensorID, "collected_at BETWEEN ? AND ?", "DESC", limit, s.timeArg(start), s.timeArg(end))
}

// GetReadingsBefore returns readings before a specific time (for scrolling back)
func (s *SQLStore) GetReadingsBefore(ctx context.Context, sensorID string, before time.Time, limit int) ([]*models.Reading, error) {
	return s.queryReadings(ctx, sensorID, "collected_at < ?", "DESC", limit, s.timeArg(before))
}

// GetReadingsAfter returns readings after a specific time (for scrolling forward)
func (s *SQLStore) GetReadingsAfter(ctx context.Context, sensorID string, after time.Time, limit int) ([]*models.Reading, error) {
	readings, err := s.queryReadings(ctx, sensorID, "collected_at > ?", "ASC", limit, s.timeArg(after))
	if err != nil {
		return nil, err
	}

	// Reverse to return newest first (for consistency with other methods)
	for i, j := 0, len(readings)-1; i < j; i, j = i+1, j-1 {
		readings[i], readings[j] = readings[j], readings[i]
	}

	return readings, nil
}

// GetLatestReading returns the most recent reading for a sensor, or for any
// sensor when sensorID is empty. It returns nil when there are none.
func (s *SQLStore) GetLatestReading(ctx context.Context, sensorID string) (*models.Reading, error) {
	readings, err := s.queryReadings(ctx, sensorID, "", "DESC", 1)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reading: %w", err)
	}
	if len(readings) == 0 {
		return nil, nil
	}

	return readings[0], nil
}

func (s *SQLStore) queryReadings(ctx context.Context, sensorID, cond, order string, limit int, condArgs ...interface{}) ([]*models.Reading, error) {
	var where []string
	var args []interface{}

	if sensorID != "" {
		where = append(where, "sensor_id = ?")
		args = append(args, sensorID)
	}
	if cond != "" {
		where = append(where, cond)
		args = append(args, condArgs...)
	}

	query := "SELECT " + readingColumns + " FROM readings"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY collected_at " + order + ", id " + order
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	return s.scanReadings(rows)
}

// scanReadings skips rows whose timestamp cannot be parsed
func (s *SQLStore) scanReadings(rows *sql.Rows) ([]*models.Reading, error) {
	var readings []*models.Reading
	skipped := 0

	for rows.Next() {
		var r models.Reading
		var collectedAt string

		err := rows.Scan(&r.ID, &r.SensorID, &r.Temperature, &r.Humidity, &r.Brightness, &collectedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}

		r.CollectedAt, err = parseTimestamp(collectedAt)
		if err != nil {
			skipped++
			s.logger.Warn().
				Err(err).
				Int64("id", r.ID).
				Str("sensor_id", r.SensorID).
				Msg("Skipping reading with malformed timestamp")
			continue
		}

		readings = append(readings, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if skipped > 0 {
		s.logger.Warn().Int("skipped", skipped).Msg("Readings skipped during scan")
	}

	return readings, nil
}

// GetDailyStats returns aggregated daily statistics for a time range
func (s *SQLStore) GetDailyStats(ctx context.Context, sensorID string, start, end time.Time) ([]DailyStat, error) {
	day := s.dialect.dayExpr
	args := []interface{}{s.timeArg(start), s.timeArg(end)}

	filter := ""
	if sensorID != "" {
		filter = " AND sensor_id = ?"
		args = append(args, sensorID)
	}

	query := `
		SELECT
			` + day + ` AS day,
			sensor_id,
			MIN(temperature), MAX(temperature), AVG(temperature),
			MIN(humidity), MAX(humidity), AVG(humidity),
			MIN(brightness), MAX(brightness), AVG(brightness),
			COUNT(*)
		FROM readings
		WHERE collected_at BETWEEN ? AND ?` + filter + `
		GROUP BY ` + day + `, sensor_id
		ORDER BY day DESC, sensor_id
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	var stats []DailyStat
	for rows.Next() {
		var stat DailyStat
		var dateStr string

		err := rows.Scan(
			&dateStr,
			&stat.SensorID,
			&stat.MinTemperature, &stat.MaxTemperature, &stat.AvgTemperature,
			&stat.MinHumidity, &stat.MaxHumidity, &stat.AvgHumidity,
			&stat.MinBrightness, &stat.MaxBrightness, &stat.AvgBrightness,
			&stat.ReadingCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}

		stat.Date, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse date: %w", err)
		}

		stats = append(stats, stat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return stats, nil
}

// DeleteOlderThan removes readings collected more than days days ago
func (s *SQLStore) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	result, err := s.db.ExecContext(ctx,
		s.rebind("DELETE FROM readings WHERE collected_at < ?"),
		s.timeArg(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old readings: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	s.logger.Info().
		Int("days", days).
		Int64("deleted", deleted).
		Time("cutoff", cutoff).
		Msg("Deleted old readings")

	return deleted, nil
}

// PurgeReadings deletes every reading
func (s *SQLStore) PurgeReadings(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM readings")
	if err != nil {
		return 0, fmt.Errorf("failed to purge readings: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	s.logger.Warn().Int64("deleted", deleted).Msg("Purged all readings")
	return deleted, nil
}

// GetStorageStats returns statistics about the database
func (s *SQLStore) GetStorageStats(ctx context.Context) (*StorageStats, error) {
	stats := &StorageStats{Driver: s.dialect.name}

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*), COUNT(DISTINCT sensor_id) FROM readings").
		Scan(&stats.TotalReadings, &stats.UniqueSensors)
	if err != nil {
		return nil, fmt.Errorf("failed to count readings: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM spaces").Scan(&stats.Spaces); err != nil {
		return nil, fmt.Errorf("failed to count spaces: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM plants").Scan(&stats.Plants); err != nil {
		return nil, fmt.Errorf("failed to count plants: %w", err)
	}

	if stats.TotalReadings > 0 {
		var oldest, newest string
		err = s.db.QueryRowContext(ctx, "SELECT MIN(collected_at), MAX(collected_at) FROM readings").
			Scan(&oldest, &newest)
		if err != nil {
			return nil, fmt.Errorf("failed to get timestamp range: %w", err)
		}

		stats.OldestReading, _ = parseTimestamp(oldest)
		stats.NewestReading, _ = parseTimestamp(newest)
	}

	var size int64
	if err := s.db.QueryRowContext(ctx, s.dialect.sizeQuery).Scan(&size); err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Debug().Err(err).Msg("Database size unavailable")
	}
	stats.DatabaseSizeMB = float64(size) / (1024 * 1024)

	return stats, nil
}

// GetSensorIDs returns a list of all unique sensor IDs in the database
func (s *SQLStore) GetSensorIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT sensor_id FROM readings ORDER BY sensor_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor IDs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan sensor ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return ids, nil
}
