package store

import (
	"context"
	"testing"

	"github.com/lox/blueprint/internal/oracle"
	"github.com/lox/blueprint/internal/sink"
)

func TestGetBucketMissesWhenNothingHasBeenWritten(t *testing.T) {
	s := New(sink.NewMemorySink(), 0)
	if _, ok, err := s.GetBucket(context.Background(), 1); ok || err != nil {
		t.Fatalf("GetBucket on an empty store = (ok=%v, err=%v), want (false, nil)", ok, err)
	}
}

func TestGetBucketResolvesThroughTheSinkOnAColdCache(t *testing.T) {
	sk := sink.NewMemorySink()
	ctx := context.Background()
	if err := New(sk, 0).PutLookupBatch(ctx, oracle.Flop, []LookupRow{{Obs: 5, Abs: 50}}); err != nil {
		t.Fatalf("PutLookupBatch: %v", err)
	}
	// A second Store over the same sink starts with empty in-memory maps, so
	// the read can only be answered by the sink.
	s := New(sk, 0)
	got, ok, err := s.GetBucket(ctx, 5)
	if err != nil || !ok || got != 50 {
		t.Fatalf("GetBucket(5) = (%d, %v, %v), want (50, true, nil)", got, ok, err)
	}
}

func TestFreezeStreetTakesPriorityOverTheMutableLookup(t *testing.T) {
	s := New(sink.NewMemorySink(), 0)
	ctx := context.Background()
	// Write a stale row directly, then freeze a different bucket for the
	// same key; FreezeStreet's table must win, matching GetBucket's
	// documented frozen > hot > mutable > sink priority order.
	if err := s.PutLookupBatch(ctx, oracle.Flop, []LookupRow{{Obs: 1, Abs: 10}}); err != nil {
		t.Fatalf("PutLookupBatch: %v", err)
	}
	if err := s.FreezeStreet(oracle.Flop, []LookupRow{{Obs: 1, Abs: 999}}); err != nil {
		t.Fatalf("FreezeStreet: %v", err)
	}
	got, ok, err := s.GetBucket(ctx, 1)
	if err != nil || !ok || got != 999 {
		t.Fatalf("GetBucket(1) = (%d, %v, %v), want (999, true, nil)", got, ok, err)
	}
}

func TestGetDistanceIsSymmetricAndZeroOnTheDiagonal(t *testing.T) {
	s := New(sink.NewMemorySink(), 0)
	ctx := context.Background()
	if d, ok := s.GetDistance(3, 3); !ok || d != 0 {
		t.Fatalf("GetDistance(3, 3) = (%v, %v), want (0, true)", d, ok)
	}
	if err := s.PutMetricBatch(ctx, []MetricRow{{Xor: metricKey(1, 2), Dx: 0.5}}); err != nil {
		t.Fatalf("PutMetricBatch: %v", err)
	}
	d1, ok1 := s.GetDistance(1, 2)
	d2, ok2 := s.GetDistance(2, 1)
	if !ok1 || !ok2 || d1 != d2 {
		t.Fatalf("GetDistance should be symmetric: (%v, %v) vs (%v, %v)", d1, ok1, d2, ok2)
	}
}

func TestStreetCompletedComparesAgainstTheExpectedCount(t *testing.T) {
	s := New(sink.NewMemorySink(), 0)
	ctx := context.Background()

	done, err := s.StreetCompleted(ctx, oracle.Preflop, 2)
	if err != nil {
		t.Fatalf("StreetCompleted: %v", err)
	}
	if done {
		t.Fatal("an empty street should not report completed against a nonzero expectation")
	}

	rows := []LookupRow{
		{Obs: 1, Abs: GlobalBucket(oracle.Preflop, 0)},
		{Obs: 2, Abs: GlobalBucket(oracle.Preflop, 1)},
	}
	if err := s.PutLookupBatch(ctx, oracle.Preflop, rows); err != nil {
		t.Fatalf("PutLookupBatch: %v", err)
	}
	done, err = s.StreetCompleted(ctx, oracle.Preflop, 2)
	if err != nil {
		t.Fatalf("StreetCompleted: %v", err)
	}
	if !done {
		t.Fatal("street should report completed once its row count reaches the expected count")
	}
}

func TestTruncateClearsOnlyTheGivenStreetsRows(t *testing.T) {
	s := New(sink.NewMemorySink(), 0)
	ctx := context.Background()

	rows := []LookupRow{
		{Obs: 1, Abs: GlobalBucket(oracle.Preflop, 0)},
		{Obs: 2, Abs: GlobalBucket(oracle.Flop, 0)},
	}
	if err := s.PutLookupBatch(ctx, oracle.Preflop, rows[:1]); err != nil {
		t.Fatalf("PutLookupBatch: %v", err)
	}
	if err := s.PutLookupBatch(ctx, oracle.Flop, rows[1:]); err != nil {
		t.Fatalf("PutLookupBatch: %v", err)
	}

	if err := s.Truncate(ctx, oracle.Preflop); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if _, ok, _ := s.GetBucket(ctx, 1); ok {
		t.Fatal("truncated street's row should no longer resolve")
	}
	if _, ok, _ := s.GetBucket(ctx, 2); !ok {
		t.Fatal("the other street's row should be unaffected by Truncate")
	}
}

func TestGlobalBucketRangesAreDisjointAcrossStreets(t *testing.T) {
	seen := make(map[int64]oracle.Street)
	for _, st := range []oracle.Street{oracle.Preflop, oracle.Flop, oracle.Turn, oracle.River} {
		for local := 0; local < BucketCounts[st]; local++ {
			id := GlobalBucket(st, local)
			if other, ok := seen[id]; ok {
				t.Fatalf("global bucket id %d collides between %v and %v", id, st, other)
			}
			seen[id] = st
		}
	}
}
