// Package histogram implements the histogram builder: projecting a hand
// onto a distribution over the successor street's buckets.
package histogram

import (
	"context"
	"fmt"
	"math"

	"github.com/lox/blueprint/internal/abstraction/store"
	"github.com/lox/blueprint/internal/oracle"
)

// Histogram is a dense counts vector over a fixed number of buckets.
// Normalisation to a probability measure happens lazily on read, so the
// same slice serves both the raw counts used while building and the
// distribution Sinkhorn consumes.
type Histogram struct {
	Counts []float64
}

// New returns a zeroed histogram over n buckets.
func New(n int) Histogram {
	return Histogram{Counts: make([]float64, n)}
}

// Normalized returns p, the histogram rescaled to sum to 1. An all-zero
// histogram returns the uniform distribution rather than dividing by zero,
// matching the degenerate-measure substitution policy used elsewhere.
func (h Histogram) Normalized() []float64 {
	total := 0.0
	for _, c := range h.Counts {
		total += c
	}
	p := make([]float64, len(h.Counts))
	if total <= 0 {
		v := 1.0 / float64(len(p))
		for i := range p {
			p[i] = v
		}
		return p
	}
	for i, c := range h.Counts {
		p[i] = c / total
	}
	return p
}

// Builder constructs per-isomorphism histograms over the next street's
// buckets, reading successor assignments from the Abstraction Store.
type Builder struct {
	oracle oracle.Oracle
	store  *store.Store
}

// NewBuilder returns a Builder wired to o and st.
func NewBuilder(o oracle.Oracle, st *store.Store) *Builder {
	return &Builder{oracle: o, store: st}
}

// Build computes the histogram for iso over nextStreet's buckets: for each
// successor observation of iso (all legal next-street boards completing
// it), increments the bucket it was already assigned to in the Store.
//
// For the River, callers should not call Build; use RiverBucket instead —
// the leaf street allocates no histogram.
func (b *Builder) Build(ctx context.Context, iso oracle.Iso, nextStreet oracle.Street) (Histogram, error) {
	k := store.BucketCounts[nextStreet]
	h := New(k)

	children, err := b.oracle.Children(ctx, iso)
	if err != nil {
		return h, fmt.Errorf("histogram: children: %w", err)
	}
	for child := range children {
		bucket, ok, err := b.store.GetBucket(ctx, child.Key)
		if err != nil {
			return h, fmt.Errorf("histogram: get bucket: %w", err)
		}
		if !ok {
			continue
		}
		local := bucket - streetBase(nextStreet)
		if local < 0 || int(local) >= k {
			continue
		}
		h.Counts[local]++
	}
	return h, nil
}

// RiverBucket returns the equity-percentile singleton bucket id for a river
// isomorphism, in [0, 100] — the river's leaf-street special case.
func (b *Builder) RiverBucket(ctx context.Context, iso oracle.Iso) (int, error) {
	equity, err := b.oracle.Equity(ctx, iso)
	if err != nil {
		return 0, fmt.Errorf("histogram: equity: %w", err)
	}
	pct := int(math.Round(equity * 100))
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct, nil
}

func streetBase(s oracle.Street) int64 {
	return store.GlobalBucket(s, 0)
}
