package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink is the durable Sink backing production runs, using pgxpool's
// connection pool and CopyFrom for bulk row delivery.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against connStr and verifies connectivity.
func Connect(ctx context.Context, connStr string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrFatal, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrFatal, err)
	}
	return &PostgresSink{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresSink) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema creates the five tables if they don't exist.
func (s *PostgresSink) InitSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS isomorphism (obs BIGINT PRIMARY KEY, abs BIGINT NOT NULL);
CREATE TABLE IF NOT EXISTS metric (xor BIGINT PRIMARY KEY, dx REAL NOT NULL);
CREATE TABLE IF NOT EXISTS transitions (prev BIGINT NOT NULL, next BIGINT NOT NULL, dx REAL NOT NULL, PRIMARY KEY (prev, next));
CREATE TABLE IF NOT EXISTS blueprint (past BIGINT NOT NULL, present BIGINT NOT NULL, future BIGINT NOT NULL, edge BIGINT NOT NULL, policy REAL NOT NULL, regret REAL NOT NULL, PRIMARY KEY (past, present, future, edge));
CREATE TABLE IF NOT EXISTS epoch (key TEXT PRIMARY KEY, value BIGINT NOT NULL);
`
	_, err := s.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("%w: init schema: %v", ErrFatal, err)
	}
	return nil
}

func (s *PostgresSink) AppendIsomorphism(ctx context.Context, rows []IsomorphismRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `CREATE TEMP TABLE isomorphism_stage (obs BIGINT, abs BIGINT) ON COMMIT DROP`); err != nil {
		return fmt.Errorf("sink: stage isomorphism: %w", err)
	}
	source := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		return []any{rows[i].Obs, rows[i].Abs}, nil
	})
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"isomorphism_stage"}, []string{"obs", "abs"}, source); err != nil {
		return fmt.Errorf("sink: copy isomorphism: %w", err)
	}
	const merge = `
INSERT INTO isomorphism (obs, abs)
SELECT obs, abs FROM isomorphism_stage
ON CONFLICT (obs) DO UPDATE SET abs = EXCLUDED.abs;
`
	if _, err := tx.Exec(ctx, merge); err != nil {
		return fmt.Errorf("sink: merge isomorphism: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresSink) AppendMetric(ctx context.Context, rows []MetricRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `CREATE TEMP TABLE metric_stage (xor BIGINT, dx REAL) ON COMMIT DROP`); err != nil {
		return fmt.Errorf("sink: stage metric: %w", err)
	}
	source := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		return []any{rows[i].Xor, rows[i].Dx}, nil
	})
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"metric_stage"}, []string{"xor", "dx"}, source); err != nil {
		return fmt.Errorf("sink: copy metric: %w", err)
	}
	const merge = `
INSERT INTO metric (xor, dx)
SELECT xor, dx FROM metric_stage
ON CONFLICT (xor) DO UPDATE SET dx = EXCLUDED.dx;
`
	if _, err := tx.Exec(ctx, merge); err != nil {
		return fmt.Errorf("sink: merge metric: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresSink) AppendTransitions(ctx context.Context, rows []TransitionRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `CREATE TEMP TABLE transitions_stage (prev BIGINT, next BIGINT, dx REAL) ON COMMIT DROP`); err != nil {
		return fmt.Errorf("sink: stage transitions: %w", err)
	}
	source := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		return []any{rows[i].Prev, rows[i].Next, rows[i].Dx}, nil
	})
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"transitions_stage"}, []string{"prev", "next", "dx"}, source); err != nil {
		return fmt.Errorf("sink: copy transitions: %w", err)
	}
	const merge = `
INSERT INTO transitions (prev, next, dx)
SELECT prev, next, dx FROM transitions_stage
ON CONFLICT (prev, next) DO UPDATE SET dx = EXCLUDED.dx;
`
	if _, err := tx.Exec(ctx, merge); err != nil {
		return fmt.Errorf("sink: merge transitions: %w", err)
	}
	return tx.Commit(ctx)
}

// AppendBlueprint stages then merges into blueprint, overwriting policy and
// regret.
func (s *PostgresSink) AppendBlueprint(ctx context.Context, rows []BlueprintRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `CREATE TEMP TABLE blueprint_stage (past BIGINT, present BIGINT, future BIGINT, edge BIGINT, policy REAL, regret REAL) ON COMMIT DROP`); err != nil {
		return fmt.Errorf("sink: stage blueprint: %w", err)
	}
	source := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		r := rows[i]
		return []any{r.Past, r.Present, r.Future, r.Edge, r.Policy, r.Regret}, nil
	})
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"blueprint_stage"}, []string{"past", "present", "future", "edge", "policy", "regret"}, source); err != nil {
		return fmt.Errorf("sink: copy blueprint: %w", err)
	}
	const merge = `
INSERT INTO blueprint (past, present, future, edge, policy, regret)
SELECT past, present, future, edge, policy, regret FROM blueprint_stage
ON CONFLICT (past, present, future, edge) DO UPDATE
SET policy = EXCLUDED.policy, regret = EXCLUDED.regret;
`
	if _, err := tx.Exec(ctx, merge); err != nil {
		return fmt.Errorf("sink: merge blueprint: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresSink) LookupIsomorphism(ctx context.Context, obs int64) (IsomorphismRow, bool, error) {
	var abs int64
	err := s.pool.QueryRow(ctx, `SELECT abs FROM isomorphism WHERE obs = $1`, obs).Scan(&abs)
	if err == pgx.ErrNoRows {
		return IsomorphismRow{}, false, nil
	}
	if err != nil {
		return IsomorphismRow{}, false, fmt.Errorf("sink: lookup isomorphism: %w", err)
	}
	return IsomorphismRow{Obs: obs, Abs: abs}, true, nil
}

func (s *PostgresSink) CountIsomorphism(ctx context.Context, absLow, absHigh int64) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM isomorphism WHERE abs >= $1 AND abs < $2`, absLow, absHigh).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sink: count isomorphism: %w", err)
	}
	return n, nil
}

func (s *PostgresSink) CountBlueprint(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM blueprint`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sink: count blueprint: %w", err)
	}
	return n, nil
}

func (s *PostgresSink) TruncateIsomorphismRange(ctx context.Context, absLow, absHigh int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM isomorphism WHERE abs >= $1 AND abs < $2`, absLow, absHigh)
	if err != nil {
		return fmt.Errorf("sink: truncate isomorphism range: %w", err)
	}
	return nil
}

func (s *PostgresSink) Epoch(ctx context.Context) (int64, error) {
	var v int64
	err := s.pool.QueryRow(ctx, `SELECT value FROM epoch WHERE key = 'current'`).Scan(&v)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sink: read epoch: %w", err)
	}
	return v, nil
}

func (s *PostgresSink) SetEpoch(ctx context.Context, value int64) error {
	const upsert = `
INSERT INTO epoch (key, value) VALUES ('current', $1)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value;
`
	_, err := s.pool.Exec(ctx, upsert, value)
	if err != nil {
		return fmt.Errorf("sink: set epoch: %w", err)
	}
	return nil
}

var _ Sink = (*PostgresSink)(nil)
