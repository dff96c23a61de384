package feed

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Recommender produces related-video rows for a source video.
type Recommender interface {
	Recommendations(ctx context.Context, videoID string, limit int) ([]VideoItem, error)
}

type recCacheEntry struct {
	items   []VideoItem
	expires time.Time
}

// CachingRecommender wraps a Recommender with a TTL-based in-memory cache.
// Recommendation rankings move slowly relative to request volume, so a short
// TTL removes the repeated multi-read aggregation from the hot path.
type CachingRecommender struct {
	base Recommender
	ttl  time.Duration

	mu    sync.RWMutex
	items map[string]recCacheEntry
}

// NewCachingRecommender returns a Recommender that caches results for the
// provided TTL.
func NewCachingRecommender(base Recommender, ttl time.Duration) *CachingRecommender {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingRecommender{
		base:  base,
		ttl:   ttl,
		items: make(map[string]recCacheEntry),
	}
}

// Recommendations returns cached rows when fresh, otherwise delegates to the
// underlying recommender and stores the result.
func (c *CachingRecommender) Recommendations(ctx context.Context, videoID string, limit int) ([]VideoItem, error) {
	key := fmt.Sprintf("%s:%d", videoID, limit)
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.items, nil
	}

	items, err := c.base.Recommendations(ctx, videoID, limit)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.items[key] = recCacheEntry{items: items, expires: now.Add(c.ttl)}
	c.mu.Unlock()

	return items, nil
}
