package store

import (
	"encoding/binary"
	"fmt"

	"github.com/opencoff/go-chd"
)

// PerfectLookup is a read-only, minimal-perfect-hash-backed isomorphism→
// bucket table for one street. Once a street's clustering pass completes,
// its lookup relation is immutable — exactly the build-once-query-forever
// precondition CHD is designed for, so the hot read path can skip the
// map/sink round trip entirely after Freeze.
type PerfectLookup struct {
	table   *chd.CHD
	buckets []int64
	obs     []uint64 // the key stored in each slot, for verifying hits
}

// FreezeLookup builds a minimal perfect hash over the given street's
// completed isomorphism→bucket rows. Call once per street, after
// PutLookupBatch has written every row for that street.
func FreezeLookup(rows []LookupRow) (*PerfectLookup, error) {
	b, err := chd.NewBuilder()
	if err != nil {
		return nil, fmt.Errorf("store: chd builder: %w", err)
	}
	keys := make([][]byte, len(rows))
	for i, r := range rows {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], r.Obs)
		keys[i] = buf[:]
		if err := b.Add(keys[i]); err != nil {
			return nil, fmt.Errorf("store: chd add: %w", err)
		}
	}
	table, err := b.Freeze()
	if err != nil {
		return nil, fmt.Errorf("store: chd freeze: %w", err)
	}

	buckets := make([]int64, len(rows))
	obs := make([]uint64, len(rows))
	for i, r := range rows {
		idx := table.Find(keys[i])
		buckets[idx] = r.Abs
		obs[idx] = r.Obs
	}
	return &PerfectLookup{table: table, buckets: buckets, obs: obs}, nil
}

// Get returns the bucket for obs, or false if obs was not part of the
// frozen row set (a lookup on an unseen key via CHD is undefined, so any
// hit must be verified to be safe against false positives).
func (p *PerfectLookup) Get(obs uint64) (int64, bool) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], obs)
	idx := p.table.Find(buf[:])
	if idx < 0 || int(idx) >= len(p.buckets) || p.obs[idx] != obs {
		return 0, false
	}
	return p.buckets[idx], true
}
