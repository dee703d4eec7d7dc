package emd

import (
	"math"
	"testing"
)

func unitCost(p, q []float64) func(i, j int) float64 {
	return func(i, j int) float64 {
		if i == j {
			return 0
		}
		return 1
	}
}

func TestDistanceIsNearZeroForIdenticalDistributions(t *testing.T) {
	p := []float64{0.2, 0.3, 0.5}
	d := func(i, j int) float64 {
		if i == j {
			return 0
		}
		return 1
	}
	res, err := Distance(p, p, d, DefaultConfig())
	if err != nil {
		t.Fatalf("Distance: %v", err)
	}
	if res.Distance > 1e-2 {
		t.Fatalf("distance between identical distributions = %v, want ~0", res.Distance)
	}
}

func TestDistanceIsSymmetric(t *testing.T) {
	p := []float64{0.7, 0.2, 0.1}
	q := []float64{0.1, 0.2, 0.7}
	d := func(i, j int) float64 { return math.Abs(float64(i - j)) }

	pq, err := Distance(p, q, d, DefaultConfig())
	if err != nil {
		t.Fatalf("Distance(p, q): %v", err)
	}
	qp, err := Distance(q, p, d, DefaultConfig())
	if err != nil {
		t.Fatalf("Distance(q, p): %v", err)
	}
	if math.Abs(pq.Distance-qp.Distance) > 1e-6 {
		t.Fatalf("Distance is not symmetric: d(p,q)=%v d(q,p)=%v", pq.Distance, qp.Distance)
	}
}

func TestDistanceIsPositiveForDisjointSupport(t *testing.T) {
	p := []float64{1, 0}
	q := []float64{0, 1}
	d := func(i, j int) float64 { return math.Abs(float64(i - j)) }
	res, err := Distance(p, q, d, DefaultConfig())
	if err != nil {
		t.Fatalf("Distance: %v", err)
	}
	if res.Distance <= 0 {
		t.Fatalf("distance between disjoint point masses should be positive, got %v", res.Distance)
	}
}

func TestDistanceRejectsEmptySupport(t *testing.T) {
	zero := []float64{0, 0, 0}
	valid := []float64{0.5, 0.5, 0}
	if _, err := Distance(zero, valid, unitCost(zero, valid), DefaultConfig()); err != ErrDegenerateMeasure {
		t.Fatalf("Distance with all-zero p should return ErrDegenerateMeasure, got %v", err)
	}
	if _, err := Distance(valid, zero, unitCost(valid, zero), DefaultConfig()); err != ErrDegenerateMeasure {
		t.Fatalf("Distance with all-zero q should return ErrDegenerateMeasure, got %v", err)
	}
}

func TestDistanceRejectsEmptyHistograms(t *testing.T) {
	if _, err := Distance(nil, []float64{1}, unitCost(nil, nil), DefaultConfig()); err != ErrDegenerateMeasure {
		t.Fatalf("Distance with empty p should return ErrDegenerateMeasure, got %v", err)
	}
}

func TestDistanceTreatsInfiniteCostAsUnreachable(t *testing.T) {
	// Both measures already agree bucket-for-bucket, so the optimal plan
	// never needs the blocked off-diagonal links.
	p := []float64{0.5, 0.5}
	q := []float64{0.5, 0.5}
	d := func(i, j int) float64 {
		if i == j {
			return 0
		}
		return math.Inf(1)
	}
	res, err := Distance(p, q, d, DefaultConfig())
	if err != nil {
		t.Fatalf("Distance: %v", err)
	}
	if res.Distance > 1e-2 {
		t.Fatalf("distance with matching diagonal support = %v, want ~0", res.Distance)
	}
}

func TestDistanceConvergesWithinIterationCap(t *testing.T) {
	p := []float64{0.25, 0.25, 0.25, 0.25}
	q := []float64{0.4, 0.3, 0.2, 0.1}
	d := func(i, j int) float64 { return math.Abs(float64(i - j)) }
	res, err := Distance(p, q, d, DefaultConfig())
	if err != nil {
		t.Fatalf("Distance: %v", err)
	}
	if !res.Converged {
		t.Fatalf("expected Sinkhorn to converge within %d iterations", DefaultConfig().MaxIters)
	}
}
