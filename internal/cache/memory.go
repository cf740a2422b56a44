// Package cache provides the Redis connection shared by the credential store
// and the write spool, and the in-process cache of ingested activity tracks.
package cache

import (
	"time"

	"github.com/maypok86/otter"

	"github.com/rafaeljc/fitbit-ingest/internal/observability"
)

// ActivityCache remembers which activity logs already had their GPS track
// ingested, so each recent-activities pass only downloads new TCX files.
// It is backed by otter's S3-FIFO cache.
type ActivityCache struct {
	store otter.Cache[string, struct{}]
}

// NewActivityCache builds a cache holding at most capacity log IDs for ttl.
func NewActivityCache(capacity int, ttl time.Duration) (*ActivityCache, error) {
	store, err := otter.MustBuilder[string, struct{}](capacity).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}
	return &ActivityCache{store: store}, nil
}

// Seen reports whether the track of logID was already ingested.
func (c *ActivityCache) Seen(logID string) bool {
	_, ok := c.store.Get(logID)
	if ok {
		observability.ActivityCacheHits.Inc()
	} else {
		observability.ActivityCacheMisses.Inc()
	}
	return ok
}

// MarkSeen records logID as ingested.
func (c *ActivityCache) MarkSeen(logID string) {
	c.store.Set(logID, struct{}{})
}

// Close stops the cache's background goroutines.
func (c *ActivityCache) Close() {
	c.store.Close()
}
