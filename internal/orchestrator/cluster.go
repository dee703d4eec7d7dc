package orchestrator

import (
	"context"
	"fmt"
	"math"

	"github.com/lox/blueprint/internal/abstraction/emd"
	"github.com/lox/blueprint/internal/abstraction/histogram"
	"github.com/lox/blueprint/internal/abstraction/kmeans"
	"github.com/lox/blueprint/internal/abstraction/store"
	"github.com/lox/blueprint/internal/abstraction/street"
	"github.com/lox/blueprint/internal/oracle"
)

// ClusterPhase runs the clustering phase: river → turn → flop → preflop,
// skipping streets whose row count already matches the known
// isomorphism-class count, truncating and redoing any street left partially
// complete by a prior run.
type ClusterPhase struct {
	oracle oracle.Oracle
	store  *store.Store
	cfg    AbstractionSettings
}

// NewClusterPhase returns a ClusterPhase wired to o and st.
func NewClusterPhase(o oracle.Oracle, st *store.Store, cfg AbstractionSettings) *ClusterPhase {
	return &ClusterPhase{oracle: o, store: st, cfg: cfg}
}

// Run processes every street in reverse order, completing any street not
// yet fully populated.
func (c *ClusterPhase) Run(ctx context.Context) error {
	for _, s := range streetOrder {
		expected := street.N[s]
		complete, err := c.store.StreetCompleted(ctx, s, int64(expected))
		if err != nil {
			return fmt.Errorf("orchestrator: street completed %s: %w", s, err)
		}
		if complete {
			continue
		}

		// A street that started but didn't finish is truncated and redone
		// in full.
		if err := c.store.Truncate(ctx, s); err != nil {
			return fmt.Errorf("orchestrator: truncate %s: %w", s, err)
		}

		switch s {
		case oracle.River:
			err = c.clusterRiver(ctx)
		case oracle.Preflop:
			err = c.clusterPreflop(ctx)
		default:
			err = c.clusterMiddleStreet(ctx, s)
		}
		if err != nil {
			return fmt.Errorf("orchestrator: cluster %s: %w", s, err)
		}
	}
	return nil
}

// clusterRiver assigns each river isomorphism directly to its equity
// percentile bucket (no histogram, no k-means, since the river is the leaf
// street) and writes the |i-j|/100 metric over all 101 buckets.
func (c *ClusterPhase) clusterRiver(ctx context.Context) error {
	builder := histogram.NewBuilder(c.oracle, c.store)
	it := street.New(c.oracle, oracle.River, nil)
	isos, err := it.All(ctx)
	if err != nil {
		return err
	}

	const batchSize = 4096
	batch := make([]store.LookupRow, 0, batchSize)
	for iso := range isos {
		pct, err := builder.RiverBucket(ctx, iso)
		if err != nil {
			return err
		}
		batch = append(batch, store.LookupRow{Obs: iso.Key, Abs: store.GlobalBucket(oracle.River, pct)})
		if len(batch) >= batchSize {
			if err := c.store.PutLookupBatch(ctx, oracle.River, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := c.store.PutLookupBatch(ctx, oracle.River, batch); err != nil {
			return err
		}
	}

	metricRows := make([]store.MetricRow, 0, 101*100/2)
	for i := 0; i < 101; i++ {
		for j := i + 1; j < 101; j++ {
			dx := float32(math.Abs(float64(i-j))) / 100
			a, b := store.GlobalBucket(oracle.River, i), store.GlobalBucket(oracle.River, j)
			metricRows = append(metricRows, store.MetricRow{Xor: a ^ b, Dx: dx})
		}
	}
	return c.store.PutMetricBatch(ctx, metricRows)
}

// clusterPreflop assigns each of the 169 preflop isomorphisms its own
// bucket: the preflop bucket count equals the isomorphism-class count
// exactly, so no information is lost by using the enumeration index
// directly.
func (c *ClusterPhase) clusterPreflop(ctx context.Context) error {
	it := street.New(c.oracle, oracle.Preflop, nil)
	isos, err := it.All(ctx)
	if err != nil {
		return err
	}

	rows := make([]store.LookupRow, 0, 169)
	idx := 0
	for iso := range isos {
		rows = append(rows, store.LookupRow{Obs: iso.Key, Abs: store.GlobalBucket(oracle.Preflop, idx)})
		idx++
	}
	if err := c.store.PutLookupBatch(ctx, oracle.Preflop, rows); err != nil {
		return err
	}

	metricRows := make([]store.MetricRow, 0)
	for i := 0; i < idx; i++ {
		for j := i + 1; j < idx; j++ {
			a, b := store.GlobalBucket(oracle.Preflop, i), store.GlobalBucket(oracle.Preflop, j)
			// Preflop buckets carry no shared equity scale; treat distinct
			// classes as unit distance apart, the coarsest metric that still
			// satisfies symmetry and a zero diagonal.
			metricRows = append(metricRows, store.MetricRow{Xor: a ^ b, Dx: 1})
		}
	}
	return c.store.PutMetricBatch(ctx, metricRows)
}

// clusterMiddleStreet clusters Flop/Turn: builds a histogram per
// isomorphism over the next street's (already-complete) buckets, runs
// k-means in the Sinkhorn-EMD geometry, and writes the resulting lookup,
// metric, and transition rows.
func (c *ClusterPhase) clusterMiddleStreet(ctx context.Context, s oracle.Street) error {
	next := s + 1
	builder := histogram.NewBuilder(c.oracle, c.store)
	it := street.New(c.oracle, s, nil)
	isos, err := it.All(ctx)
	if err != nil {
		return err
	}

	var obsKeys []uint64
	var points [][]float64
	for iso := range isos {
		h, err := builder.Build(ctx, iso, next)
		if err != nil {
			return err
		}
		obsKeys = append(obsKeys, iso.Key)
		points = append(points, h.Normalized())
	}

	k := store.BucketCounts[s]
	nextK := store.BucketCounts[next]
	metric := func(i, j int) float64 {
		if i == j {
			return 0
		}
		a, b := store.GlobalBucket(next, i), store.GlobalBucket(next, j)
		d, ok := c.store.GetDistance(a, b)
		if !ok {
			return 0
		}
		return float64(d)
	}

	result, err := kmeans.Cluster(ctx, points, metric, c.cfg.kmeansConfig(k))
	if err != nil {
		return err
	}

	lookupRows := make([]store.LookupRow, len(obsKeys))
	for i, obs := range obsKeys {
		lookupRows[i] = store.LookupRow{Obs: obs, Abs: store.GlobalBucket(s, result.Assignment[i])}
	}
	if err := c.store.PutLookupBatch(ctx, s, lookupRows); err != nil {
		return err
	}

	transitionRows := make([]store.TransitionRow, 0, k*nextK)
	for cluster, centroid := range result.Centroids {
		prev := store.GlobalBucket(s, cluster)
		for b, weight := range centroid {
			if weight <= 0 {
				continue
			}
			transitionRows = append(transitionRows, store.TransitionRow{
				Prev: prev,
				Next: store.GlobalBucket(next, b),
				Dx:   float32(weight),
			})
		}
	}
	if err := c.store.PutTransitionsBatch(ctx, transitionRows); err != nil {
		return err
	}

	metricRows := make([]store.MetricRow, 0, k*(k-1)/2)
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			d, err := sinkhornBetweenCentroids(result.Centroids[i], result.Centroids[j], metric, c.cfg)
			if err != nil {
				return err
			}
			a, b := store.GlobalBucket(s, i), store.GlobalBucket(s, j)
			metricRows = append(metricRows, store.MetricRow{Xor: a ^ b, Dx: float32(d)})
		}
	}
	return c.store.PutMetricBatch(ctx, metricRows)
}

// sinkhornBetweenCentroids computes street S's own metric: the Sinkhorn-EMD
// distance between two of its centroids, using the next street's
// already-established metric as the ground distance.
func sinkhornBetweenCentroids(p, q []float64, ground kmeans.Metric, cfg AbstractionSettings) (float64, error) {
	res, err := emd.Distance(p, q, ground, cfg.emdConfig())
	if err != nil {
		return 0, err
	}
	return res.Distance, nil
}
