// Package kmeans implements k-means++ seeding and Elkan's triangle-
// inequality-accelerated iteration in the Sinkhorn-EMD geometry.
package kmeans

import (
	"context"
	"errors"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/lox/blueprint/internal/abstraction/emd"
)

// ErrEmptyCluster is raised when a centroid loses all assignments; callers
// re-seed with farthest-point and retry the round.
var ErrEmptyCluster = errors.New("kmeans: centroid lost all assignments")

// Config holds the fixed k-means parameters.
type Config struct {
	K         int
	MaxIters  int // hard round cap E_max
	EMD       emd.Config
	Seed      int64
	Workers   int // parallel workers for point sweeps and pairwise distances
}

// Result is a finished clustering: one centroid per cluster, and the
// assignment (cluster index) of each input point.
type Result struct {
	Centroids  [][]float64
	Assignment []int
	Rounds     int
}

// Metric computes the ground distance between bucket indices i and j for
// one pair of histogram coordinates; passed through to Sinkhorn unchanged.
type Metric func(i, j int) float64

// Cluster runs k-means++ seeding followed by Elkan iterations over points
// (each a normalised histogram) in the geometry induced by metric.
func Cluster(ctx context.Context, points [][]float64, metric Metric, cfg Config) (Result, error) {
	if cfg.K <= 0 || cfg.K > len(points) {
		return Result{}, errors.New("kmeans: invalid k")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	distFn := func(x, y []float64) float64 {
		res, err := emd.Distance(x, y, metric, cfg.EMD)
		if err != nil {
			return math.Inf(1)
		}
		return res.Distance
	}

	centroids := seedPlusPlus(points, cfg.K, distFn, rng)

	n := len(points)
	assignment := make([]int, n)
	upper := make([]float64, n)   // u(x): upper bound on dist to assigned centroid
	lower := make([][]float64, n) // lower[x][c]: lower bound on dist(x, c)
	for i := range lower {
		lower[i] = make([]float64, cfg.K)
	}

	for i, x := range points {
		best, bestDist := 0, math.Inf(1)
		for c, centroid := range centroids {
			d := distFn(x, centroid)
			lower[i][c] = d
			if d < bestDist {
				best, bestDist = c, d
			}
		}
		assignment[i] = best
		upper[i] = bestDist
	}

	rounds := 0
	for round := 0; round < cfg.MaxIters; round++ {
		rounds = round + 1

		centroidDist, s := pairwiseCentroidDistances(ctx, centroids, distFn, workers)

		changed, err := sweep(ctx, points, centroids, assignment, upper, lower, distFn, centroidDist, s, workers)
		if err != nil {
			return Result{}, err
		}

		newCentroids, emptyIdxs := recomputeCentroids(points, assignment, cfg.K)
		for _, idx := range emptyIdxs {
			reseedEmpty(points, assignment, newCentroids, idx, distFn)
		}

		drift := make([]float64, cfg.K)
		for c := range centroids {
			drift[c] = distFn(centroids[c], newCentroids[c])
		}
		for i := range points {
			upper[i] += drift[assignment[i]]
			for c := range lower[i] {
				lower[i][c] -= drift[c]
				if lower[i][c] < 0 {
					lower[i][c] = 0
				}
			}
		}
		centroids = newCentroids

		if !changed {
			break
		}
	}

	return Result{Centroids: centroids, Assignment: assignment, Rounds: rounds}, nil
}

// seedPlusPlus implements k-means++ initialisation.
func seedPlusPlus(points [][]float64, k int, dist func(a, b []float64) float64, rng *rand.Rand) [][]float64 {
	n := len(points)
	centroids := make([][]float64, 0, k)
	first := points[rng.Intn(n)]
	centroids = append(centroids, append([]float64(nil), first...))

	dmin := make([]float64, n)
	for i, x := range points {
		dmin[i] = dist(x, first)
	}

	for len(centroids) < k {
		total := 0.0
		for _, d := range dmin {
			total += d * d
		}
		var next []float64
		if total <= 0 {
			next = points[rng.Intn(n)]
		} else {
			target := rng.Float64() * total
			acc := 0.0
			idx := n - 1
			for i, d := range dmin {
				acc += d * d
				if acc >= target {
					idx = i
					break
				}
			}
			next = points[idx]
		}
		centroid := append([]float64(nil), next...)
		centroids = append(centroids, centroid)
		for i, x := range points {
			d := dist(x, centroid)
			if d < dmin[i] {
				dmin[i] = d
			}
		}
	}
	return centroids
}

// pairwiseCentroidDistances computes the K×K centroid distance matrix and
// s(c) = half the distance to the nearest other centroid, in a parallel
// triangular loop.
func pairwiseCentroidDistances(ctx context.Context, centroids [][]float64, dist func(a, b []float64) float64, workers int) ([][]float64, []float64) {
	k := len(centroids)
	d := make([][]float64, k)
	for i := range d {
		d[i] = make([]float64, k)
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < k; i++ {
		i := i
		g.Go(func() error {
			for j := i + 1; j < k; j++ {
				v := dist(centroids[i], centroids[j])
				d[i][j] = v
				d[j][i] = v
			}
			return nil
		})
	}
	_ = g.Wait()

	s := make([]float64, k)
	for c := 0; c < k; c++ {
		min := math.Inf(1)
		for other := 0; other < k; other++ {
			if other == c {
				continue
			}
			if d[c][other] < min {
				min = d[c][other]
			}
		}
		s[c] = min / 2
	}
	return d, s
}

// sweep performs one Elkan round over all points, skipping points whose
// upper bound already proves no reassignment is possible.
func sweep(ctx context.Context, points, centroids [][]float64, assignment []int, upper []float64, lower [][]float64, dist func(a, b []float64) float64, centroidDist [][]float64, s []float64, workers int) (bool, error) {
	n := len(points)
	changedFlags := make([]bool, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			assigned := assignment[i]
			if upper[i] <= s[assigned] {
				return nil // triangle-inequality pruning
			}

			tightened := false
			for c := 0; c < len(centroids); c++ {
				if c == assigned {
					continue
				}
				if lower[i][c] >= upper[i] {
					continue
				}
				if centroidDist[assigned][c]/2 >= upper[i] {
					continue
				}
				if !tightened {
					upper[i] = dist(points[i], centroids[assigned])
					lower[i][assigned] = upper[i]
					tightened = true
					if upper[i] <= s[assigned] {
						break
					}
				}
				d := dist(points[i], centroids[c])
				lower[i][c] = d
				if d < upper[i] {
					assignment[i] = c
					upper[i] = d
					assigned = c
					changedFlags[i] = true
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	changed := false
	for _, c := range changedFlags {
		if c {
			changed = true
			break
		}
	}
	return changed, nil
}

// recomputeCentroids averages each cluster's assigned points into a new
// centroid, returning every index whose cluster lost all assignments this
// round (not just the last one found) so Cluster can re-seed each in turn
// rather than leaving the rest as invalid all-zero vectors.
func recomputeCentroids(points [][]float64, assignment []int, k int) ([][]float64, []int) {
	dim := len(points[0])
	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, x := range points {
		c := assignment[i]
		counts[c]++
		for d := range x {
			sums[c][d] += x[d]
		}
	}
	centroids := make([][]float64, k)
	var emptyIdxs []int
	for c := 0; c < k; c++ {
		centroids[c] = make([]float64, dim)
		if counts[c] == 0 {
			emptyIdxs = append(emptyIdxs, c)
			continue
		}
		for d := 0; d < dim; d++ {
			centroids[c][d] = sums[c][d] / float64(counts[c])
		}
	}
	return centroids, emptyIdxs
}

// reseedEmpty replaces an empty centroid with the point farthest from its
// own assigned centroid, the empty-cluster retry policy.
func reseedEmpty(points [][]float64, assignment []int, centroids [][]float64, emptyIdx int, dist func(a, b []float64) float64) {
	farthest, farthestDist := -1, -1.0
	for i, x := range points {
		c := assignment[i]
		if c == emptyIdx || c >= len(centroids) {
			continue
		}
		d := dist(x, centroids[c])
		if d > farthestDist {
			farthest, farthestDist = i, d
		}
	}
	if farthest < 0 {
		return
	}
	centroids[emptyIdx] = append([]float64(nil), points[farthest]...)
	assignment[farthest] = emptyIdx
}
