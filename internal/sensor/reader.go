package sensor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/flaura/internal/models"
)

// Reader takes periodic readings and publishes them on a channel
type Reader struct {
	climate  ClimateSensor
	light    LightSensor
	info     *models.SensorInfo
	interval time.Duration
	logger   zerolog.Logger
	readings chan *models.Reading
}

// NewReader creates a reader. light may be nil, in which case brightness
// is reported as 0.
func NewReader(climate ClimateSensor, light LightSensor, info *models.SensorInfo, interval time.Duration, logger zerolog.Logger) *Reader {
	return &Reader{
		climate:  climate,
		light:    light,
		info:     info,
		interval: interval,
		logger:   logger.With().Str("component", "reader").Logger(),
		readings: make(chan *models.Reading, 10),
	}
}

// Start reads immediately and then every interval until ctx is cancelled
func (r *Reader) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.readAndPublish(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.readAndPublish(ctx)
		}
	}
}

// ReadOnce performs a single reading
func (r *Reader) ReadOnce() (*models.Reading, error) {
	temperature, humidity, err := r.climate.Read()
	if err != nil {
		return nil, err
	}

	brightness := 0
	if r.light != nil {
		brightness, err = r.light.Level()
		if err != nil {
			return nil, fmt.Errorf("failed to read brightness: %w", err)
		}
	}

	return models.NewReading(r.info.ID, temperature, int(math.Round(humidity)), brightness), nil
}

func (r *Reader) readAndPublish(ctx context.Context) {
	reading, err := r.ReadOnce()
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to read sensors")
		return
	}

	select {
	case r.readings <- reading:
		r.logger.Debug().Str("reading", reading.String()).Msg("Reading taken")
	case <-ctx.Done():
	}
}

// Readings returns the channel readings are published on
func (r *Reader) Readings() <-chan *models.Reading {
	return r.readings
}

// Close releases the sensors
func (r *Reader) Close() error {
	return r.climate.Close()
}
