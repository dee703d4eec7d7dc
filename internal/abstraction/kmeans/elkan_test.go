package kmeans

import (
	"context"
	"math"
	"testing"

	"github.com/lox/blueprint/internal/abstraction/emd"
)

func bucketMetric(i, j int) float64 { return math.Abs(float64(i - j)) }

// Two well-separated groups of histograms cluster into two groups whose
// centroids sit near each group's mean, with every point inside a group
// landing in the same cluster.
func TestClusterSeparatesTwoDistinctGroups(t *testing.T) {
	points := [][]float64{
		{0.9, 0.1, 0, 0},
		{0.8, 0.2, 0, 0},
		{1.0, 0, 0, 0},
		{0, 0, 0.1, 0.9},
		{0, 0, 0.2, 0.8},
		{0, 0, 0, 1.0},
	}
	cfg := Config{
		K:        2,
		MaxIters: 20,
		EMD:      emd.DefaultConfig(),
		Seed:     1,
		Workers:  2,
	}
	res, err := Cluster(context.Background(), points, bucketMetric, cfg)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if len(res.Centroids) != 2 {
		t.Fatalf("got %d centroids, want 2", len(res.Centroids))
	}

	low := res.Assignment[0]
	high := res.Assignment[3]
	if low == high {
		t.Fatalf("the two distinct groups should land in different clusters, both got %d", low)
	}
	for i := 0; i < 3; i++ {
		if res.Assignment[i] != low {
			t.Fatalf("point %d: assignment %d, want %d (low group)", i, res.Assignment[i], low)
		}
	}
	for i := 3; i < 6; i++ {
		if res.Assignment[i] != high {
			t.Fatalf("point %d: assignment %d, want %d (high group)", i, res.Assignment[i], high)
		}
	}
}

func TestClusterRejectsKLargerThanPointCount(t *testing.T) {
	points := [][]float64{{1, 0}, {0, 1}}
	cfg := Config{K: 3, MaxIters: 5, EMD: emd.DefaultConfig(), Seed: 1}
	if _, err := Cluster(context.Background(), points, bucketMetric, cfg); err == nil {
		t.Fatal("Cluster with K > len(points) should fail")
	}
}

func TestClusterIsDeterministicForAFixedSeed(t *testing.T) {
	points := [][]float64{
		{0.9, 0.1, 0, 0},
		{0.8, 0.2, 0, 0},
		{0, 0, 0.1, 0.9},
		{0, 0, 0, 1.0},
	}
	cfg := Config{K: 2, MaxIters: 20, EMD: emd.DefaultConfig(), Seed: 42, Workers: 1}

	first, err := Cluster(context.Background(), points, bucketMetric, cfg)
	if err != nil {
		t.Fatalf("Cluster (first): %v", err)
	}
	second, err := Cluster(context.Background(), points, bucketMetric, cfg)
	if err != nil {
		t.Fatalf("Cluster (second): %v", err)
	}
	for i := range first.Assignment {
		if first.Assignment[i] != second.Assignment[i] {
			t.Fatalf("assignment %d differs across runs with the same seed: %d vs %d", i, first.Assignment[i], second.Assignment[i])
		}
	}
}

// When two clusters lose all assignments in the same round, recomputeCentroids
// must report both indices, not just the last one found, so neither is left
// behind as an invalid all-zero centroid.
func TestRecomputeCentroidsReportsEveryEmptyCluster(t *testing.T) {
	points := [][]float64{{1, 0, 0, 0}, {0.9, 0.1, 0, 0}}
	assignment := []int{0, 0}

	centroids, emptyIdxs := recomputeCentroids(points, assignment, 4)
	if len(emptyIdxs) != 3 {
		t.Fatalf("got %d empty clusters, want 3 (indices 1, 2, 3): %v", len(emptyIdxs), emptyIdxs)
	}
	want := map[int]bool{1: true, 2: true, 3: true}
	for _, idx := range emptyIdxs {
		if !want[idx] {
			t.Fatalf("unexpected empty index %d, want one of 1, 2, 3", idx)
		}
		delete(want, idx)
	}
	if len(want) != 0 {
		t.Fatalf("missing empty indices: %v", want)
	}
	for _, idx := range emptyIdxs {
		for _, v := range centroids[idx] {
			if v != 0 {
				t.Fatalf("centroid %d should still be all-zero before reseeding, got %v", idx, centroids[idx])
			}
		}
	}
}

// Cluster itself must re-seed every empty cluster found in a round, not just
// one: a degenerate seed that leaves several centroids with no assignments
// must still converge to K valid, non-zero centroids rather than aborting
// or leaving zero-vector centroids in the result.
func TestClusterReseedsEveryEmptyClusterInARound(t *testing.T) {
	points := [][]float64{
		{1, 0, 0, 0},
		{0.9, 0.1, 0, 0},
		{0, 1, 0, 0},
		{0, 0.9, 0.1, 0},
		{0, 0, 1, 0},
		{0, 0, 0.9, 0.1},
		{0, 0, 0, 1},
		{0.1, 0, 0, 0.9},
	}
	cfg := Config{K: 4, MaxIters: 20, EMD: emd.DefaultConfig(), Seed: 3, Workers: 2}

	res, err := Cluster(context.Background(), points, bucketMetric, cfg)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	for c, centroid := range res.Centroids {
		allZero := true
		for _, v := range centroid {
			if v != 0 {
				allZero = false
				break
			}
		}
		if allZero {
			t.Fatalf("centroid %d is all-zero after clustering, an empty cluster was left unreseeded", c)
		}
	}
}

func TestReseedEmptyPicksFarthestPoint(t *testing.T) {
	points := [][]float64{{0, 0}, {10, 10}, {1, 1}}
	assignment := []int{0, 0, 0}
	centroids := [][]float64{{0, 0}, {5, 5}}
	dist := func(a, b []float64) float64 {
		dx, dy := a[0]-b[0], a[1]-b[1]
		return math.Sqrt(dx*dx + dy*dy)
	}
	reseedEmpty(points, assignment, centroids, 1, dist)
	if assignment[1] != 1 {
		t.Fatalf("farthest point should be reassigned to the empty cluster, assignment = %v", assignment)
	}
	if centroids[1][0] != 10 || centroids[1][1] != 10 {
		t.Fatalf("empty centroid should be reseeded to the farthest point, got %v", centroids[1])
	}
}
