// Package ingest accepts readings from devices and fans them out to the
// live cache and the database writer.
package ingest

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/afroash/flaura/internal/models"
)

var (
	// ErrInvalidReading is returned for readings outside the sanity bounds
	ErrInvalidReading = errors.New("invalid reading")
	// ErrQueueFull is returned when the database writer dropped the reading.
	// The reading is still visible in the live cache.
	ErrQueueFull = errors.New("write queue full")
)

// Cache holds the latest readings in memory
type Cache interface {
	Add(reading *models.Reading)
}

// Queue persists readings asynchronously
type Queue interface {
	Write(reading *models.Reading) bool
}

// Recorder counts accepted and rejected readings per transport
type Recorder interface {
	ReadingIngested(transport string)
	ReadingRejected(transport string)
}

// Sink is anything that accepts device readings
type Sink interface {
	Accept(reading *models.Reading, transport string) error
	// Reject counts a message that could not be decoded into a reading
	Reject(transport string)
}

// Pipeline validates readings and hands them to the cache and queue
type Pipeline struct {
	cache    Cache
	queue    Queue
	recorder Recorder
	logger   zerolog.Logger
}

var _ Sink = (*Pipeline)(nil)

// NewPipeline creates a pipeline. queue and recorder may be nil.
func NewPipeline(cache Cache, queue Queue, recorder Recorder, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		cache:    cache,
		queue:    queue,
		recorder: recorder,
		logger:   logger.With().Str("component", "ingest").Logger(),
	}
}

// Accept stores a valid reading
func (p *Pipeline) Accept(reading *models.Reading, transport string) error {
	if reading == nil || !reading.IsValid() {
		p.Reject(transport)
		if reading != nil {
			p.logger.Warn().
				Str("transport", transport).
				Str("reading", reading.String()).
				Msg("Reading ignored: invalid")
		}
		return ErrInvalidReading
	}

	p.cache.Add(reading)
	if p.recorder != nil {
		p.recorder.ReadingIngested(transport)
	}

	if p.queue != nil && !p.queue.Write(reading) {
		p.logger.Warn().
			Str("sensor_id", reading.SensorID).
			Str("transport", transport).
			Msg("Reading not persisted: write queue full")
		return ErrQueueFull
	}

	p.logger.Debug().
		Str("sensor_id", reading.SensorID).
		Float64("temperature", reading.Temperature).
		Int("humidity", reading.Humidity).
		Int("brightness", reading.Brightness).
		Str("transport", transport).
		Msg("Reading stored")
	return nil
}

// Reject counts a message that never became a reading
func (p *Pipeline) Reject(transport string) {
	if p.recorder != nil {
		p.recorder.ReadingRejected(transport)
	}
}
