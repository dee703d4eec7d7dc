package orchestrator

import (
	"context"
	"fmt"

	"github.com/lox/blueprint/internal/abstraction/store"
	"github.com/lox/blueprint/internal/abstraction/street"
	"github.com/lox/blueprint/internal/oracle"
	"github.com/lox/blueprint/internal/sink"
)

// streetOrder is the reverse order clustering must proceed in: each
// non-river street's histograms are distributions over the next street's
// buckets, so the next street must already be complete.
var streetOrder = []oracle.Street{oracle.River, oracle.Turn, oracle.Flop, oracle.Preflop}

// StreetStatus reports one street's clustering completeness.
type StreetStatus struct {
	Street    oracle.Street
	Rows      int64
	Expected  uint64
	Complete  bool
}

// Status summarises the orchestrator's resumability state: the current
// epoch and per-street clustering completeness, derived purely from row
// counts.
type Status struct {
	Epoch   int64
	Streets []StreetStatus
}

// String renders a human-readable status report, the basis for the CLI's
// non-interactive `status` output.
func (s Status) String() string {
	out := fmt.Sprintf("epoch: %d\n", s.Epoch)
	for _, st := range s.Streets {
		mark := " "
		if st.Complete {
			mark = "x"
		}
		out += fmt.Sprintf("  [%s] %-8s %d/%d\n", mark, st.Street, st.Rows, st.Expected)
	}
	return out
}

// ReadStatus queries st and the sink for the current epoch and every
// street's clustering completeness.
func ReadStatus(ctx context.Context, sk sink.Sink, st *store.Store) (Status, error) {
	epoch, err := sk.Epoch(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("orchestrator: read epoch: %w", err)
	}

	status := Status{Epoch: epoch}
	for _, s := range streetOrder {
		expected := street.N[s]
		complete, err := st.StreetCompleted(ctx, s, int64(expected))
		if err != nil {
			return Status{}, fmt.Errorf("orchestrator: street completed %s: %w", s, err)
		}
		rows, err := sk.CountIsomorphism(ctx, int64(store.GlobalBucket(s, 0)), int64(store.GlobalBucket(s, 0))+int64(store.BucketCounts[s]))
		if err != nil {
			return Status{}, fmt.Errorf("orchestrator: count isomorphism %s: %w", s, err)
		}
		status.Streets = append(status.Streets, StreetStatus{
			Street:   s,
			Rows:     rows,
			Expected: expected,
			Complete: complete,
		})
	}
	return status, nil
}
