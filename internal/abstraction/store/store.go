// Package store implements the abstraction store: the persistent
// obs→bucket map, pairwise bucket-distance metric, and prev→next transition
// weights that clustering writes and the game tree / solver read.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/lox/blueprint/internal/oracle"
	"github.com/lox/blueprint/internal/sink"
)

// BucketCounts gives the fixed, a-priori bucket count per street.
var BucketCounts = map[oracle.Street]int{
	oracle.Preflop: 169,
	oracle.Flop:    128,
	oracle.Turn:    144,
	oracle.River:   101,
}

// streetOffset assigns each street a disjoint range of global bucket ids so
// bucket identifiers stay globally unique across streets.
var streetOffset = map[oracle.Street]int64{
	oracle.River:   0,
	oracle.Turn:    BucketCounts[oracle.River],
	oracle.Flop:    BucketCounts[oracle.River] + BucketCounts[oracle.Turn],
	oracle.Preflop: BucketCounts[oracle.River] + BucketCounts[oracle.Turn] + BucketCounts[oracle.Flop],
}

// GlobalBucket maps a street-local bucket index to the globally unique id.
func GlobalBucket(street oracle.Street, local int) int64 {
	return streetOffset[street] + int64(local)
}

// metricKey XORs an ordered pair of bucket ids into a collision-free key:
// a ≠ b and ids fit in 63 bits, so the XOR never collides.
func metricKey(a, b int64) int64 {
	return a ^ b
}

// Store exposes the three logical relations, backed by a bulk sink for
// durability, with in-memory maps layered on top for the hot
// read path used during MCCFR and subsequent-street histogram building.
type Store struct {
	sink sink.Sink
	hot  *HotCache

	mu          sync.RWMutex
	lookup      map[uint64]int64            // isomorphism key -> global bucket
	metric      map[int64]float32           // xor(a,b) -> distance
	transitions map[int64]map[int64]float32 // prev bucket -> next bucket -> weight
	frozen      map[oracle.Street]*PerfectLookup

	rowCounts map[oracle.Street]int64
}

// New returns a Store backed by the given sink, with a hot-read LRU cache
// of the given size in front of bucket/distance lookups (0 disables it).
func New(sk sink.Sink, hotCacheSize int) *Store {
	s := &Store{
		sink:        sk,
		lookup:      make(map[uint64]int64),
		metric:      make(map[int64]float32),
		transitions: make(map[int64]map[int64]float32),
		frozen:      make(map[oracle.Street]*PerfectLookup),
		rowCounts:   make(map[oracle.Street]int64),
	}
	if hotCacheSize > 0 {
		if hot, err := NewHotCache(hotCacheSize); err == nil {
			s.hot = hot
		}
	}
	return s
}

// Sink exposes the backing Sink directly, for callers that need to stage
// rows or stamp the epoch counter outside the usual Put*Batch path (the
// MCCFR checkpoint's blueprint stage-and-merge).
func (s *Store) Sink() sink.Sink { return s.sink }

// FreezeStreet builds a minimal perfect hash over a completed street's rows
// and installs it as the primary lookup path for that street, bypassing
// both the mutable map and the sink for future GetBucket calls.
func (s *Store) FreezeStreet(street oracle.Street, rows []LookupRow) error {
	pl, err := FreezeLookup(rows)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.frozen[street] = pl
	s.mu.Unlock()
	return nil
}

// LookupRow is one row of the isomorphism table.
type LookupRow struct {
	Obs uint64
	Abs int64
}

// MetricRow is one row of the metric table.
type MetricRow struct {
	Xor int64
	Dx  float32
}

// TransitionRow is one row of the transitions table.
type TransitionRow struct {
	Prev, Next int64
	Dx         float32
}

// PutLookupBatch appends isomorphism→bucket rows for street, both to the
// durable sink and the in-memory hot-read cache.
func (s *Store) PutLookupBatch(ctx context.Context, street oracle.Street, rows []LookupRow) error {
	sinkRows := make([]sink.IsomorphismRow, len(rows))
	for i, r := range rows {
		sinkRows[i] = sink.IsomorphismRow{Obs: int64(r.Obs), Abs: r.Abs}
	}
	if err := s.sink.AppendIsomorphism(ctx, sinkRows); err != nil {
		return fmt.Errorf("store: put lookup batch: %w", err)
	}
	s.mu.Lock()
	for _, r := range rows {
		s.lookup[r.Obs] = r.Abs
	}
	s.rowCounts[street] += int64(len(rows))
	s.mu.Unlock()
	return nil
}

// PutMetricBatch appends pairwise bucket-distance rows.
func (s *Store) PutMetricBatch(ctx context.Context, rows []MetricRow) error {
	sinkRows := make([]sink.MetricRow, len(rows))
	for i, r := range rows {
		sinkRows[i] = sink.MetricRow{Xor: r.Xor, Dx: r.Dx}
	}
	if err := s.sink.AppendMetric(ctx, sinkRows); err != nil {
		return fmt.Errorf("store: put metric batch: %w", err)
	}
	s.mu.Lock()
	for _, r := range rows {
		s.metric[r.Xor] = r.Dx
	}
	s.mu.Unlock()
	return nil
}

// PutTransitionsBatch appends prev→next transition weight rows.
func (s *Store) PutTransitionsBatch(ctx context.Context, rows []TransitionRow) error {
	sinkRows := make([]sink.TransitionRow, len(rows))
	for i, r := range rows {
		sinkRows[i] = sink.TransitionRow{Prev: r.Prev, Next: r.Next, Dx: r.Dx}
	}
	if err := s.sink.AppendTransitions(ctx, sinkRows); err != nil {
		return fmt.Errorf("store: put transitions batch: %w", err)
	}
	s.mu.Lock()
	for _, r := range rows {
		m, ok := s.transitions[r.Prev]
		if !ok {
			m = make(map[int64]float32)
			s.transitions[r.Prev] = m
		}
		m[r.Next] = r.Dx
	}
	s.mu.Unlock()
	return nil
}

// GetBucket resolves an isomorphism's bucket. Lookup order: any street's
// frozen minimal-perfect-hash table, then the hot LRU cache, then the
// mutable in-memory map, falling through to the sink only on a full miss.
func (s *Store) GetBucket(ctx context.Context, iso uint64) (int64, bool, error) {
	s.mu.RLock()
	for _, pl := range s.frozen {
		if bucket, ok := pl.Get(iso); ok {
			s.mu.RUnlock()
			return bucket, true, nil
		}
	}
	s.mu.RUnlock()

	if s.hot != nil {
		if bucket, ok := s.hot.GetBucket(iso); ok {
			return bucket, true, nil
		}
	}

	s.mu.RLock()
	bucket, ok := s.lookup[iso]
	s.mu.RUnlock()
	if ok {
		if s.hot != nil {
			s.hot.PutBucket(iso, bucket)
		}
		return bucket, true, nil
	}

	row, found, err := s.sink.LookupIsomorphism(ctx, int64(iso))
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, nil
	}
	s.mu.Lock()
	s.lookup[iso] = row.Abs
	s.mu.Unlock()
	if s.hot != nil {
		s.hot.PutBucket(iso, row.Abs)
	}
	return row.Abs, true, nil
}

// GetDistance returns the symmetric distance between two global bucket ids,
// checking the hot cache before the in-memory map.
func (s *Store) GetDistance(a, b int64) (float32, bool) {
	if a == b {
		return 0, true
	}
	key := metricKey(a, b)
	if s.hot != nil {
		if d, ok := s.hot.GetDistance(key); ok {
			return d, true
		}
	}
	s.mu.RLock()
	d, ok := s.metric[key]
	s.mu.RUnlock()
	if ok && s.hot != nil {
		s.hot.PutDistance(key, d)
	}
	return d, ok
}

// StreetCompleted reports whether street's row count matches its known
// isomorphism-class count, the resumability predicate.
func (s *Store) StreetCompleted(ctx context.Context, street oracle.Street, expected int64) (bool, error) {
	count, err := s.sink.CountIsomorphism(ctx, int64(streetOffset[street]), int64(streetOffset[street])+int64(BucketCounts[street]))
	if err != nil {
		return false, err
	}
	return count >= expected, nil
}

// Truncate idempotently clears a street's rows before a retry.
func (s *Store) Truncate(ctx context.Context, street oracle.Street) error {
	lo := streetOffset[street]
	hi := lo + int64(BucketCounts[street])
	if err := s.sink.TruncateIsomorphismRange(ctx, lo, hi); err != nil {
		return err
	}
	s.mu.Lock()
	for k, v := range s.lookup {
		if v >= lo && v < hi {
			delete(s.lookup, k)
		}
	}
	s.rowCounts[street] = 0
	s.mu.Unlock()
	return nil
}
