package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Pruner deletes readings older than a number of days
type Pruner interface {
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}

// RetentionCleaner periodically removes old readings. A cleaner with zero
// retention days keeps data indefinitely and never runs.
type RetentionCleaner struct {
	store         Pruner
	logger        zerolog.Logger
	retentionDays int
	cleanupPeriod time.Duration
	onPrune       func(deleted int64)
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup

	mu              sync.RWMutex
	totalDeleted    int64
	totalCleanups   int64
	lastCleanup     time.Time
	lastDeleteCount int64
	lastErr         error
}

// RetentionCleanerConfig holds configuration for the cleaner
type RetentionCleanerConfig struct {
	RetentionDays int           // 0 disables cleanup
	CleanupPeriod time.Duration // default 1h
	OnPrune       func(deleted int64) // optional, called after each successful run
}

// RetentionCleanerStats contains statistics about the cleaner
type RetentionCleanerStats struct {
	Enabled         bool      `json:"enabled"`
	TotalDeleted    int64     `json:"total_deleted"`
	TotalCleanups   int64     `json:"total_cleanups"`
	LastCleanup     time.Time `json:"last_cleanup,omitempty"`
	LastDeleteCount int64     `json:"last_delete_count"`
	LastError       string    `json:"last_error,omitempty"`
	RetentionDays   int       `json:"retention_days"`
}

// NewRetentionCleaner creates a cleaner and starts it when retention is enabled
func NewRetentionCleaner(store Pruner, config RetentionCleanerConfig, logger zerolog.Logger) *RetentionCleaner {
	logger = logger.With().Str("component", "retention").Logger()

	period := config.CleanupPeriod
	if period <= 0 {
		period = time.Hour
		logger.Warn().
			Dur("provided_period", config.CleanupPeriod).
			Dur("default_period", period).
			Msg("Invalid cleanup period, using default")
	}

	c := &RetentionCleaner{
		store:         store,
		logger:        logger,
		retentionDays: config.RetentionDays,
		cleanupPeriod: period,
		onPrune:       config.OnPrune,
		stopChan:      make(chan struct{}),
	}

	if !c.Enabled() {
		logger.Info().Msg("Retention disabled, readings are kept indefinitely")
		return c
	}

	c.wg.Add(1)
	go c.loop()

	logger.Info().
		Int("retention_days", config.RetentionDays).
		Dur("cleanup_period", period).
		Msg("RetentionCleaner started")

	return c
}

// Enabled reports whether old readings are deleted
func (c *RetentionCleaner) Enabled() bool {
	return c.retentionDays > 0
}

func (c *RetentionCleaner) loop() {
	defer c.wg.Done()

	c.runCleanup()

	ticker := time.NewTicker(c.cleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.stopChan:
			c.logger.Info().Msg("RetentionCleaner stopped")
			return
		}
	}
}

func (c *RetentionCleaner) runCleanup() {
	if !c.Enabled() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := c.store.DeleteOlderThan(ctx, c.retentionDays)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalCleanups++
	c.lastCleanup = time.Now()
	c.lastErr = err

	if err != nil {
		c.logger.Error().Err(err).Msg("Retention cleanup failed")
		return
	}

	c.totalDeleted += deleted
	c.lastDeleteCount = deleted
	if c.onPrune != nil {
		c.onPrune(deleted)
	}
	if deleted > 0 {
		c.logger.Info().
			Int64("deleted", deleted).
			Int("retention_days", c.retentionDays).
			Msg("Retention cleanup completed")
	} else {
		c.logger.Debug().Msg("Retention cleanup completed, nothing to delete")
	}
}

// Stop stops the cleaner; safe to call more than once
func (c *RetentionCleaner) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
}

// Stats returns current cleaner statistics
func (c *RetentionCleaner) Stats() RetentionCleanerStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := RetentionCleanerStats{
		Enabled:         c.Enabled(),
		TotalDeleted:    c.totalDeleted,
		TotalCleanups:   c.totalCleanups,
		LastCleanup:     c.lastCleanup,
		LastDeleteCount: c.lastDeleteCount,
		RetentionDays:   c.retentionDays,
	}
	if c.lastErr != nil {
		stats.LastError = c.lastErr.Error()
	}
	return stats
}

// RunNow triggers an immediate cleanup
func (c *RetentionCleaner) RunNow() {
	c.runCleanup()
}
