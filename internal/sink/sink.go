// Package sink implements the bulk sink interface consumed by the
// Abstraction Store and the MCCFR checkpoint path: four logical tables plus
// an epoch table, append-only bulk insert, point lookup by primary key, row
// counts, and idempotent merge-by-primary-key delivery.
package sink

import (
	"context"
	"errors"
)

// ErrFatal marks a fatal sink failure: the sink rejected the schema or is
// permanently unreachable. The orchestrator aborts the current phase
// rather than retrying.
var ErrFatal = errors.New("sink: fatal")

// IsFatal reports whether err wraps ErrFatal.
func IsFatal(err error) bool { return errors.Is(err, ErrFatal) }

// IsomorphismRow is one row of the isomorphism(obs, abs) table.
type IsomorphismRow struct {
	Obs int64
	Abs int64
}

// MetricRow is one row of the metric(xor, dx) table.
type MetricRow struct {
	Xor int64
	Dx  float32
}

// TransitionRow is one row of the transitions(prev, next, dx) table.
type TransitionRow struct {
	Prev, Next int64
	Dx         float32
}

// BlueprintRow is one row of the blueprint(past, present, future, edge,
// policy, regret) table.
type BlueprintRow struct {
	Past, Present, Future, Edge int64
	Policy, Regret              float32
}

// Sink is the durable, at-least-once-delivery, idempotent-merge-by-key bulk
// store. Implementations must tolerate the same batch being appended twice
// (e.g. after a retried checkpoint) without corrupting the merged result.
type Sink interface {
	AppendIsomorphism(ctx context.Context, rows []IsomorphismRow) error
	AppendMetric(ctx context.Context, rows []MetricRow) error
	AppendTransitions(ctx context.Context, rows []TransitionRow) error
	AppendBlueprint(ctx context.Context, rows []BlueprintRow) error

	LookupIsomorphism(ctx context.Context, obs int64) (IsomorphismRow, bool, error)

	CountIsomorphism(ctx context.Context, absLow, absHigh int64) (int64, error)
	CountBlueprint(ctx context.Context) (int64, error)

	TruncateIsomorphismRange(ctx context.Context, absLow, absHigh int64) error

	// Epoch returns the current completed-iteration counter.
	Epoch(ctx context.Context) (int64, error)
	// SetEpoch stamps the epoch counter, the final step of a checkpoint's
	// stage-and-merge.
	SetEpoch(ctx context.Context, value int64) error
}
