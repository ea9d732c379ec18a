package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/flaura/internal/models"
)

// BatchInserter is the part of ReadingStore the writer needs
type BatchInserter interface {
	InsertBatch(ctx context.Context, readings []*models.Reading) error
}

// FlushObserver is told about every flush attempt
type FlushObserver interface {
	ObserveFlush(count int, elapsed time.Duration, err error)
	ObserveDrop()
}

// DBWriter queues incoming readings and writes them in batches so device
// streams never wait on the database
type DBWriter struct {
	store        BatchInserter
	observer     FlushObserver
	logger       zerolog.Logger
	queue        chan *models.Reading
	batchSize    int
	flushPeriod  time.Duration
	flushTimeout time.Duration
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup

	// sendMu orders Write's send against Stop so nothing is queued after
	// the final drain
	sendMu  sync.RWMutex
	stopped bool

	mu            sync.RWMutex
	totalQueued   int64
	totalWritten  int64
	totalBatches  int64
	totalErrors   int64
	totalDropped  int64
	lastWriteTime time.Time
}

// DBWriterConfig holds configuration for the async writer
type DBWriterConfig struct {
	BatchSize    int           // readings per batch
	FlushPeriod  time.Duration // max time a partial batch waits
	ChannelSize  int           // queue capacity
	FlushTimeout time.Duration // deadline for one InsertBatch call
	Observer     FlushObserver // optional
}

// DefaultDBWriterConfig returns sensible defaults
func DefaultDBWriterConfig() DBWriterConfig {
	return DBWriterConfig{
		BatchSize:    50,
		FlushPeriod:  5 * time.Second,
		ChannelSize:  1000,
		FlushTimeout: 10 * time.Second,
	}
}

// DBWriterStats contains statistics about the writer
type DBWriterStats struct {
	TotalQueued   int64     `json:"total_queued"`
	TotalWritten  int64     `json:"total_written"`
	TotalBatches  int64     `json:"total_batches"`
	TotalErrors   int64     `json:"total_errors"`
	TotalDropped  int64     `json:"total_dropped"`
	LastWriteTime time.Time `json:"last_write_time,omitempty"`
	QueueLength   int       `json:"queue_length"`
}

// NewDBWriter creates a writer and starts its background loop
func NewDBWriter(store BatchInserter, config DBWriterConfig, logger zerolog.Logger) *DBWriter {
	defaults := DefaultDBWriterConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.FlushPeriod <= 0 {
		config.FlushPeriod = defaults.FlushPeriod
	}
	if config.ChannelSize <= 0 {
		config.ChannelSize = defaults.ChannelSize
	}
	if config.FlushTimeout <= 0 {
		config.FlushTimeout = defaults.FlushTimeout
	}

	w := &DBWriter{
		store:        store,
		observer:     config.Observer,
		logger:       logger.With().Str("component", "dbwriter").Logger(),
		queue:        make(chan *models.Reading, config.ChannelSize),
		batchSize:    config.BatchSize,
		flushPeriod:  config.FlushPeriod,
		flushTimeout: config.FlushTimeout,
		stopChan:     make(chan struct{}),
	}

	w.wg.Add(1)
	go w.run()

	w.logger.Info().
		Int("batch_size", config.BatchSize).
		Dur("flush_period", config.FlushPeriod).
		Int("channel_size", config.ChannelSize).
		Msg("DBWriter started")

	return w
}

// Write queues a reading. It returns false when the queue is full or the
// writer has stopped.
func (w *DBWriter) Write(reading *models.Reading) bool {
	w.sendMu.RLock()
	defer w.sendMu.RUnlock()
	if w.stopped {
		return false
	}

	select {
	case w.queue <- reading:
		w.mu.Lock()
		w.totalQueued++
		w.mu.Unlock()
		return true
	default:
		w.mu.Lock()
		w.totalDropped++
		w.mu.Unlock()
		if w.observer != nil {
			w.observer.ObserveDrop()
		}
		w.logger.Warn().Str("sensor_id", reading.SensorID).Msg("DBWriter queue full, dropping reading")
		return false
	}
}

func (w *DBWriter) run() {
	defer w.wg.Done()

	batch := make([]*models.Reading, 0, w.batchSize)
	ticker := time.NewTicker(w.flushPeriod)
	defer ticker.Stop()

	for {
		select {
		case reading := <-w.queue:
			batch = append(batch, reading)
			if len(batch) >= w.batchSize {
				w.flush(batch)
				batch = make([]*models.Reading, 0, w.batchSize)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = make([]*models.Reading, 0, w.batchSize)
			}

		case <-w.stopChan:
			for {
				select {
				case reading := <-w.queue:
					batch = append(batch, reading)
					continue
				default:
				}
				break
			}
			w.flush(batch)
			w.logger.Info().Msg("DBWriter stopped")
			return
		}
	}
}

func (w *DBWriter) flush(batch []*models.Reading) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.flushTimeout)
	defer cancel()

	start := time.Now()
	err := w.store.InsertBatch(ctx, batch)
	elapsed := time.Since(start)

	if w.observer != nil {
		w.observer.ObserveFlush(len(batch), elapsed, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		w.totalErrors++
		w.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("Failed to write batch")
		return
	}

	w.totalWritten += int64(len(batch))
	w.totalBatches++
	w.lastWriteTime = time.Now()
	w.logger.Debug().Int("count", len(batch)).Dur("elapsed", elapsed).Msg("Flushed batch")
}

// Stop flushes queued readings and stops the loop
func (w *DBWriter) Stop() {
	w.stopOnce.Do(func() {
		w.sendMu.Lock()
		w.stopped = true
		w.sendMu.Unlock()

		close(w.stopChan)
		w.wg.Wait()
	})
}

// Stats returns current writer statistics
func (w *DBWriter) Stats() DBWriterStats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return DBWriterStats{
		TotalQueued:   w.totalQueued,
		TotalWritten:  w.totalWritten,
		TotalBatches:  w.totalBatches,
		TotalErrors:   w.totalErrors,
		TotalDropped:  w.totalDropped,
		LastWriteTime: w.lastWriteTime,
		QueueLength:   len(w.queue),
	}
}
