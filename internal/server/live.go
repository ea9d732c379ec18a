package server

import (
	"sort"
	"sync"
	"time"

	"github.com/afroash/flaura/internal/models"
)

// LiveCache keeps the most recent readings of every sensor in memory so the
// dashboard does not hit the database for the current value
type LiveCache struct {
	capacity int

	mu       sync.RWMutex
	data     map[string][]*models.Reading
	received int64
}

// LiveStats describes the cache contents
type LiveStats struct {
	Received      int64     `json:"received"`
	Sensors       int       `json:"sensors"`
	Buffered      int       `json:"buffered"`
	Capacity      int       `json:"capacity"`
	NewestReading time.Time `json:"newest_reading,omitempty"`
}

// NewLiveCache creates a cache holding up to capacity readings per sensor
func NewLiveCache(capacity int) *LiveCache {
	if capacity <= 0 {
		capacity = 100
	}
	return &LiveCache{
		capacity: capacity,
		data:     make(map[string][]*models.Reading),
	}
}

// Add stores a copy of reading, evicting the oldest one when full.
// Readings arriving out of order are inserted at their position.
func (c *LiveCache) Add(reading *models.Reading) {
	r := reading.Copy()

	c.mu.Lock()
	defer c.mu.Unlock()

	readings := c.data[r.SensorID]
	i := sort.Search(len(readings), func(i int) bool {
		return readings[i].CollectedAt.After(r.CollectedAt)
	})
	readings = append(readings, nil)
	copy(readings[i+1:], readings[i:])
	readings[i] = r

	if len(readings) > c.capacity {
		readings = readings[len(readings)-c.capacity:]
	}
	c.data[r.SensorID] = readings
	c.received++
}

// Latest returns up to n readings for a sensor, newest first
func (c *LiveCache) Latest(sensorID string, n int) []*models.Reading {
	c.mu.RLock()
	defer c.mu.RUnlock()

	readings := c.data[sensorID]
	if n <= 0 || n > len(readings) {
		n = len(readings)
	}

	result := make([]*models.Reading, 0, n)
	for i := len(readings) - 1; i >= len(readings)-n; i-- {
		result = append(result, readings[i].Copy())
	}
	return result
}

// Current returns the newest reading of a sensor. An empty sensorID means
// the newest reading of any sensor. It returns nil when nothing is cached.
func (c *LiveCache) Current(sensorID string) *models.Reading {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if sensorID != "" {
		readings := c.data[sensorID]
		if len(readings) == 0 {
			return nil
		}
		return readings[len(readings)-1].Copy()
	}

	var newest *models.Reading
	for _, readings := range c.data {
		if len(readings) == 0 {
			continue
		}
		last := readings[len(readings)-1]
		if newest == nil || last.CollectedAt.After(newest.CollectedAt) {
			newest = last
		}
	}
	return newest.Copy()
}

// SensorIDs returns the sensors that have sent data, sorted
func (c *LiveCache) SensorIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.data))
	for id := range c.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats returns statistics about the cache
func (c *LiveCache) Stats() LiveStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := LiveStats{
		Received: c.received,
		Sensors:  len(c.data),
		Capacity: c.capacity,
	}
	for _, readings := range c.data {
		stats.Buffered += len(readings)
		if n := len(readings); n > 0 && readings[n-1].CollectedAt.After(stats.NewestReading) {
			stats.NewestReading = readings[n-1].CollectedAt
		}
	}
	return stats
}

// Clear drops every cached reading
func (c *LiveCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[string][]*models.Reading)
	c.received = 0
}
