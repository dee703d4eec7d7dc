// Package street implements the street iterator: a lazy, restartable
// enumeration of canonical isomorphism classes for one betting round.
package street

import (
	"context"
	"sync/atomic"

	"github.com/lox/blueprint/internal/oracle"
)

// N is the known isomorphism-class count per street, used by the
// orchestrator's resumability check and by tests asserting exact coverage.
var N = map[oracle.Street]uint64{
	oracle.Preflop: 169,
	oracle.Flop:    1286792,
	oracle.Turn:    13960050,
	oracle.River:   123156254,
}

// Stats accumulates skip counts for observations the oracle rejected.
type Stats struct {
	Skipped atomic.Int64
}

// Iterator produces a deterministic sequence of canonical isomorphisms for
// a street, backed by an Oracle. A CanonicaliseSkip (nil/zero-key Iso from
// the oracle) is counted and not re-emitted; it is never fatal.
type Iterator struct {
	oracle oracle.Oracle
	street oracle.Street
	stats  *Stats
}

// New returns an Iterator for the given street.
func New(o oracle.Oracle, s oracle.Street, stats *Stats) *Iterator {
	if stats == nil {
		stats = &Stats{}
	}
	return &Iterator{oracle: o, street: s, stats: stats}
}

// All restarts enumeration from the beginning and streams every isomorphism
// class for the iterator's street exactly once, in the oracle's fixed order.
func (it *Iterator) All(ctx context.Context) (<-chan oracle.Iso, error) {
	raw, err := it.oracle.IsoIter(ctx, it.street)
	if err != nil {
		return nil, err
	}
	out := make(chan oracle.Iso)
	go func() {
		defer close(out)
		for iso := range raw {
			if iso.Board == 0 && iso.Hole == 0 && iso.Key == 0 && it.street != oracle.Preflop {
				it.stats.Skipped.Add(1)
				continue
			}
			select {
			case out <- iso:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Street returns the iterator's street.
func (it *Iterator) Street() oracle.Street { return it.street }

// ExpectedCount returns the known isomorphism-class count for this street.
func (it *Iterator) ExpectedCount() uint64 { return N[it.street] }
