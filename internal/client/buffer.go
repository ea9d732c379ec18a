// Package client is the device side of the sensor stream: a bounded
// buffer of pending readings and the websocket connection that drains it.
package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/afroash/flaura/internal/models"
)

// OverflowPolicy decides which reading is lost when the buffer is full
type OverflowPolicy int

const (
	DropOldest OverflowPolicy = iota
	DropNewest
)

func (p OverflowPolicy) String() string {
	if p == DropNewest {
		return "drop-newest"
	}
	return "drop-oldest"
}

// Buffer holds readings that have not reached the server yet. It is a
// fixed-size ring; the oldest reading is always at head.
type Buffer struct {
	mu     sync.Mutex
	ring   []*models.Reading
	head   int
	size   int
	policy OverflowPolicy
	stats  BufferStats
}

// BufferStats tracks buffer usage
type BufferStats struct {
	Pushed        int64     `json:"pushed"`
	Dropped       int64     `json:"dropped"`
	Requeued      int64     `json:"requeued"`
	HighWaterMark int       `json:"high_water_mark"`
	LastPush      time.Time `json:"last_push"`
	LastDrop      time.Time `json:"last_drop"`
}

// NewBuffer creates a buffer holding up to capacity readings
func NewBuffer(capacity int, policy OverflowPolicy) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{
		ring:   make([]*models.Reading, capacity),
		policy: policy,
	}
}

// Push appends a reading. It returns false when the reading itself was
// dropped, which only happens under DropNewest.
func (b *Buffer) Push(r *models.Reading) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if b.size == len(b.ring) {
		b.stats.Dropped++
		b.stats.LastDrop = now
		if b.policy == DropNewest {
			return false
		}
		b.ring[b.head] = nil
		b.head = (b.head + 1) % len(b.ring)
		b.size--
	}

	b.ring[(b.head+b.size)%len(b.ring)] = r
	b.size++
	b.stats.Pushed++
	b.stats.LastPush = now
	if b.size > b.stats.HighWaterMark {
		b.stats.HighWaterMark = b.size
	}
	return true
}

// PopBatch removes up to n readings, oldest first
func (b *Buffer) PopBatch(n int) []*models.Reading {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.collect(n)
	for range out {
		b.ring[b.head] = nil
		b.head = (b.head + 1) % len(b.ring)
		b.size--
	}
	return out
}

// Peek returns up to n readings, oldest first, without removing them
func (b *Buffer) Peek(n int) []*models.Reading {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.collect(n)
}

func (b *Buffer) collect(n int) []*models.Reading {
	count := min(n, b.size)
	if count <= 0 {
		return nil
	}
	out := make([]*models.Reading, count)
	for i := range out {
		out[i] = b.ring[(b.head+i)%len(b.ring)]
	}
	return out
}

// Requeue puts readings from a failed send back at the front, ahead of
// anything pushed since. Readings that no longer fit are dropped, oldest
// first.
func (b *Buffer) Requeue(readings []*models.Reading) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := len(readings) - 1; i >= 0; i-- {
		if b.size == len(b.ring) {
			b.stats.Dropped += int64(i + 1)
			b.stats.LastDrop = time.Now()
			return
		}
		b.head = (b.head - 1 + len(b.ring)) % len(b.ring)
		b.ring[b.head] = readings[i]
		b.size++
		b.stats.Requeued++
	}
}

// Size returns the number of buffered readings
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *Buffer) IsEmpty() bool { return b.Size() == 0 }

func (b *Buffer) IsFull() bool { return b.Size() == b.Capacity() }

// Capacity is fixed at construction
func (b *Buffer) Capacity() int {
	return len(b.ring)
}

// Clear empties the buffer. Statistics are kept.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.ring {
		b.ring[i] = nil
	}
	b.head, b.size = 0, 0
}

// Stats returns a snapshot of the counters
func (b *Buffer) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fmt.Sprintf("Buffer[%d/%d, dropped: %d, mode: %s]", b.size, len(b.ring), b.stats.Dropped, b.policy)
}
