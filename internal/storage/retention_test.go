package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/flaura/internal/models"
)

type fakePruner struct {
	mu    sync.Mutex
	calls []int
	n     int64
	err   error
}

func (f *fakePruner) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, days)
	return f.n, f.err
}

func (f *fakePruner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestRetentionCleaner_Disabled(t *testing.T) {
	p := &fakePruner{}
	c := NewRetentionCleaner(p, RetentionCleanerConfig{RetentionDays: 0, CleanupPeriod: time.Millisecond}, zerolog.Nop())

	time.Sleep(20 * time.Millisecond)
	c.RunNow()
	c.Stop()

	if p.count() != 0 {
		t.Errorf("disabled cleaner called DeleteOlderThan %d times", p.count())
	}
	if c.Stats().Enabled {
		t.Error("Stats().Enabled = true, want false")
	}
}

func TestRetentionCleaner_RunsOnStartAndPeriodically(t *testing.T) {
	p := &fakePruner{n: 3}
	c := NewRetentionCleaner(p, RetentionCleanerConfig{RetentionDays: 7, CleanupPeriod: 20 * time.Millisecond}, zerolog.Nop())
	defer c.Stop()

	waitFor(t, 2*time.Second, func() bool { return c.Stats().TotalCleanups >= 3 })

	stats := c.Stats()
	if stats.RetentionDays != 7 || stats.TotalDeleted < 9 || stats.LastDeleteCount != 3 {
		t.Errorf("stats = %+v", stats)
	}
	p.mu.Lock()
	if p.calls[0] != 7 {
		t.Errorf("DeleteOlderThan called with %d days", p.calls[0])
	}
	p.mu.Unlock()
}

func TestRetentionCleaner_Error(t *testing.T) {
	p := &fakePruner{err: errors.New("locked")}
	c := NewRetentionCleaner(p, RetentionCleanerConfig{RetentionDays: 1, CleanupPeriod: time.Hour}, zerolog.Nop())
	defer c.Stop()

	waitFor(t, 2*time.Second, func() bool { return p.count() >= 1 })
	waitFor(t, 2*time.Second, func() bool { return c.Stats().LastError != "" })

	if c.Stats().TotalDeleted != 0 {
		t.Errorf("TotalDeleted = %d, want 0", c.Stats().TotalDeleted)
	}
}

func TestRetentionCleaner_OnPrune(t *testing.T) {
	var mu sync.Mutex
	var reported []int64

	p := &fakePruner{n: 4}
	c := NewRetentionCleaner(p, RetentionCleanerConfig{
		RetentionDays: 3,
		CleanupPeriod: time.Hour,
		OnPrune: func(deleted int64) {
			mu.Lock()
			defer mu.Unlock()
			reported = append(reported, deleted)
		},
	}, zerolog.Nop())
	defer c.Stop()

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reported) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if reported[0] != 4 {
		t.Errorf("OnPrune got %d, want 4", reported[0])
	}
}

func TestRetentionCleaner_InvalidPeriod(t *testing.T) {
	c := NewRetentionCleaner(&fakePruner{}, RetentionCleanerConfig{RetentionDays: 1, CleanupPeriod: -time.Second}, zerolog.Nop())
	defer c.Stop()

	if c.cleanupPeriod != time.Hour {
		t.Errorf("cleanupPeriod = %v, want 1h", c.cleanupPeriod)
	}
}

func TestRetentionCleaner_WithStore(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC()
	readings := []*models.Reading{
		createTestReading("pi-1", 20, 50, 10, now.AddDate(0, 0, -40)),
		createTestReading("pi-1", 21, 50, 10, now.AddDate(0, 0, -31)),
		createTestReading("pi-1", 22, 50, 10, now.AddDate(0, 0, -1)),
	}
	if err := store.InsertBatch(ctx, readings); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	c := NewRetentionCleaner(store, RetentionCleanerConfig{RetentionDays: 30, CleanupPeriod: time.Hour}, zerolog.Nop())
	defer c.Stop()

	waitFor(t, 2*time.Second, func() bool { return c.Stats().TotalCleanups >= 1 })

	stats, err := store.GetStorageStats(ctx)
	if err != nil {
		t.Fatalf("GetStorageStats failed: %v", err)
	}
	if stats.TotalReadings != 1 {
		t.Errorf("TotalReadings = %d, want 1", stats.TotalReadings)
	}
}
