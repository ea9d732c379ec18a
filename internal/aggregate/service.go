package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/flaura/internal/models"
)

// ErrInvalidHours is returned when the requested window is out of range
var ErrInvalidHours = errors.New("invalid hours")

// ReadingSource supplies recent readings, newest first
type ReadingSource interface {
	GetRecentReadings(ctx context.Context, sensorID string, since time.Time, limit int) ([]*models.Reading, error)
}

// Config controls how series are built
type Config struct {
	MaxRows      int
	DefaultHours int
	MaxHours     int
	Location     *time.Location
	LuxPerUnit   float64
}

// Series is the response body of the metrics endpoint
type Series struct {
	Data        []Slot `json:"data"`
	Hours       int    `json:"hours"`
	PlantID     string `json:"plantId,omitempty"`
	CurrentHour int    `json:"currentHour"`
}

// Service fetches readings and builds hourly series
type Service struct {
	source ReadingSource
	config Config
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new aggregation service
func NewService(source ReadingSource, config Config, logger zerolog.Logger) *Service {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.MaxRows <= 0 {
		config.MaxRows = SlotsPerDay
	}
	if config.DefaultHours <= 0 {
		config.DefaultHours = SlotsPerDay
	}
	if config.MaxHours < config.DefaultHours {
		config.MaxHours = config.DefaultHours
	}
	if config.LuxPerUnit <= 0 {
		config.LuxPerUnit = 1
	}

	return &Service{
		source: source,
		config: config,
		logger: logger.With().Str("component", "aggregate").Logger(),
		now:    time.Now,
	}
}

// ResolveHours applies the default window and checks bounds
func (s *Service) ResolveHours(hours int) (int, error) {
	if hours == 0 {
		return s.config.DefaultHours, nil
	}
	if hours < 1 || hours > s.config.MaxHours {
		return 0, fmt.Errorf("%w: must be between 1 and %d", ErrInvalidHours, s.config.MaxHours)
	}
	return hours, nil
}

// Hourly builds the series for sensorID over the last hours hours.
// An empty sensorID covers every device.
func (s *Service) Hourly(ctx context.Context, sensorID string, hours int) (*Series, error) {
	hours, err := s.ResolveHours(hours)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.config.Location)
	since := now.Add(-time.Duration(hours) * time.Hour)

	readings, err := s.source.GetRecentReadings(ctx, sensorID, since.UTC(), s.config.MaxRows)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent readings: %w", err)
	}

	local := make([]*models.Reading, 0, len(readings))
	for _, r := range readings {
		if r == nil {
			continue
		}
		c := r.Copy()
		c.CollectedAt = c.CollectedAt.In(s.config.Location)
		local = append(local, c)
	}

	series, skipped := buildSeries(local, now.Hour())
	if skipped > 0 {
		s.logger.Warn().
			Int("skipped", skipped).
			Str("sensor_id", sensorID).
			Msg("Skipped readings without a timestamp")
	}

	for i := range series {
		if series[i].Brightness != nil {
			lux := *series[i].Brightness * s.config.LuxPerUnit
			series[i].Brightness = &lux
		}
	}

	s.logger.Debug().
		Str("sensor_id", sensorID).
		Int("hours", hours).
		Int("readings", len(readings)).
		Msg("Built hourly series")

	return &Series{
		Data:        series,
		Hours:       hours,
		CurrentHour: now.Hour(),
	}, nil
}
