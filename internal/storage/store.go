package storage

import (
	"context"
	"errors"
	"time"

	"github.com/afroash/flaura/internal/models"
)

// ErrNotFound is returned when a row does not exist or is not owned by the caller
var ErrNotFound = errors.New("not found")

// ReadingStore persists sensor readings
type ReadingStore interface {
	InsertReading(ctx context.Context, reading *models.Reading) error
	InsertBatch(ctx context.Context, readings []*models.Reading) error
	GetRecentReadings(ctx context.Context, sensorID string, since time.Time, limit int) ([]*models.Reading, error)
	GetReadingsInRange(ctx context.Context, sensorID string, start, end time.Time, limit int) ([]*models.Reading, error)
	GetReadingsBefore(ctx context.Context, sensorID string, before time.Time, limit int) ([]*models.Reading, error)
	GetReadingsAfter(ctx context.Context, sensorID string, after time.Time, limit int) ([]*models.Reading, error)
	GetLatestReading(ctx context.Context, sensorID string) (*models.Reading, error)
	GetDailyStats(ctx context.Context, sensorID string, start, end time.Time) ([]DailyStat, error)
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
	PurgeReadings(ctx context.Context) (int64, error)
	GetStorageStats(ctx context.Context) (*StorageStats, error)
	GetSensorIDs(ctx context.Context) ([]string, error)
}

// GardenStore persists users, spaces and plants. Every lookup is scoped to
// the owning user and returns ErrNotFound otherwise.
type GardenStore interface {
	EnsureUser(ctx context.Context, userID string) (*models.User, error)
	CreateSpace(ctx context.Context, space *models.Space) error
	ListSpaces(ctx context.Context, userID string) ([]*models.Space, error)
	GetSpace(ctx context.Context, userID, spaceID string) (*models.Space, error)
	DeleteSpace(ctx context.Context, userID, spaceID string) (int64, error)
	CreatePlant(ctx context.Context, plant *models.Plant) error
	UpdatePlantReference(ctx context.Context, plant *models.Plant) error
	SetPlantWatered(ctx context.Context, userID, plantID string, watered bool) error
	GetPlant(ctx context.Context, userID, plantID string) (*models.Plant, error)
	ListPlants(ctx context.Context, userID, spaceID string) ([]*models.Plant, error)
	DeletePlant(ctx context.Context, userID, plantID string) error
}

// Store is the full persistence surface
type Store interface {
	ReadingStore
	GardenStore
	Migrate(ctx context.Context) error
	Close() error
}

// Compile-time interface check
var _ Store = (*SQLStore)(nil)

// DailyStat represents aggregated statistics for a single day
type DailyStat struct {
	Date           time.Time `json:"date"`
	SensorID       string    `json:"sensor_id"`
	MinTemperature float64   `json:"min_temperature"`
	MaxTemperature float64   `json:"max_temperature"`
	AvgTemperature float64   `json:"avg_temperature"`
	MinHumidity    float64   `json:"min_humidity"`
	MaxHumidity    float64   `json:"max_humidity"`
	AvgHumidity    float64   `json:"avg_humidity"`
	MinBrightness  float64   `json:"min_brightness"`
	MaxBrightness  float64   `json:"max_brightness"`
	AvgBrightness  float64   `json:"avg_brightness"`
	ReadingCount   int       `json:"reading_count"`
}

// StorageStats contains information about the database
type StorageStats struct {
	Driver         string    `json:"driver"`
	TotalReadings  int64     `json:"total_readings"`
	OldestReading  time.Time `json:"oldest_reading,omitempty"`
	NewestReading  time.Time `json:"newest_reading,omitempty"`
	UniqueSensors  int       `json:"unique_sensors"`
	Spaces         int       `json:"spaces"`
	Plants         int       `json:"plants"`
	DatabaseSizeMB float64   `json:"database_size_mb"`
}
