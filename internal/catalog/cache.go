package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/rs/zerolog"
)

// Cached serves repeated catalog lookups from memory
type Cached struct {
	next     Lookup
	cache    *ristretto.Cache
	ttl      time.Duration
	observer Observer
	logger   zerolog.Logger
}

var _ Lookup = (*Cached)(nil)

// NewCached wraps next with a TTL cache holding up to size entries
func NewCached(next Lookup, size int64, ttl time.Duration, observer Observer, logger zerolog.Logger) (*Cached, error) {
	if size <= 0 {
		size = 1000
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: size * 10,
		MaxCost:     size,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog cache: %w", err)
	}

	return &Cached{
		next:     next,
		cache:    cache,
		ttl:      ttl,
		observer: observer,
		logger:   logger.With().Str("component", "catalog_cache").Logger(),
	}, nil
}

// Search returns cached results for the normalised query
func (c *Cached) Search(ctx context.Context, query string) ([]Summary, error) {
	key := "search:" + strings.ToLower(strings.TrimSpace(query))
	if v, ok := c.cache.Get(key); ok {
		c.observe("search", true)
		return v.([]Summary), nil
	}
	c.observe("search", false)

	results, err := c.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	c.cache.SetWithTTL(key, results, 1, c.ttl)
	return results, nil
}

// Detail returns a cached record. Failures are not cached.
func (c *Cached) Detail(ctx context.Context, id string) (*Item, error) {
	key := "detail:" + id
	if v, ok := c.cache.Get(key); ok {
		c.observe("detail", true)
		return v.(*Item), nil
	}
	c.observe("detail", false)

	item, err := c.next.Detail(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.SetWithTTL(key, item, 1, c.ttl)
	return item, nil
}

// Wait blocks until pending cache writes are visible
func (c *Cached) Wait() {
	c.cache.Wait()
}

// Close releases the cache
func (c *Cached) Close() {
	c.cache.Close()
}

func (c *Cached) observe(op string, hit bool) {
	if c.observer != nil {
		c.observer.ObserveCatalogCache(op, hit)
	}
}
