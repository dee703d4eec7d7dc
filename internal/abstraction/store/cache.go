package store

import (
	lru "github.com/opencoff/golang-lru"
)

// HotCache is an in-memory LRU layered in front of GetBucket/GetDistance,
// safe as long as it preserves read semantics: a miss always falls through
// to the backing Store, a hit never returns a stale value because bucket
// and metric rows are immutable once written.
type HotCache struct {
	buckets   *lru.Cache
	distances *lru.Cache
}

// NewHotCache returns a cache holding up to size entries per relation.
func NewHotCache(size int) (*HotCache, error) {
	buckets, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	distances, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &HotCache{buckets: buckets, distances: distances}, nil
}

// GetBucket returns a cached bucket for an isomorphism key.
func (c *HotCache) GetBucket(iso uint64) (int64, bool) {
	v, ok := c.buckets.Get(iso)
	if !ok {
		return 0, false
	}
	return v.(int64), true
}

// PutBucket caches a resolved isomorphism→bucket mapping.
func (c *HotCache) PutBucket(iso uint64, bucket int64) {
	c.buckets.Add(iso, bucket)
}

// GetDistance returns a cached pairwise bucket distance.
func (c *HotCache) GetDistance(xorKey int64) (float32, bool) {
	v, ok := c.distances.Get(xorKey)
	if !ok {
		return 0, false
	}
	return v.(float32), true
}

// PutDistance caches a resolved pairwise bucket distance.
func (c *HotCache) PutDistance(xorKey int64, dist float32) {
	c.distances.Add(xorKey, dist)
}
