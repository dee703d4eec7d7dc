package sink

import (
	"context"
	"sync"
)

// MemorySink is an in-process Sink used for local runs and tests: it
// implements the same merge-by-primary-key semantics a durable backend must,
// so code exercised against it behaves the same against Postgres.
type MemorySink struct {
	mu sync.RWMutex

	isomorphism map[int64]int64
	metric      map[int64]float32
	transitions map[[2]int64]float32
	blueprint   map[[4]int64]BlueprintRow
	epoch       int64
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		isomorphism: make(map[int64]int64),
		metric:      make(map[int64]float32),
		transitions: make(map[[2]int64]float32),
		blueprint:   make(map[[4]int64]BlueprintRow),
	}
}

func (m *MemorySink) AppendIsomorphism(ctx context.Context, rows []IsomorphismRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.isomorphism[r.Obs] = r.Abs
	}
	return nil
}

func (m *MemorySink) AppendMetric(ctx context.Context, rows []MetricRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.metric[r.Xor] = r.Dx
	}
	return nil
}

func (m *MemorySink) AppendTransitions(ctx context.Context, rows []TransitionRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.transitions[[2]int64{r.Prev, r.Next}] = r.Dx
	}
	return nil
}

func (m *MemorySink) AppendBlueprint(ctx context.Context, rows []BlueprintRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		key := [4]int64{r.Past, r.Present, r.Future, r.Edge}
		existing, ok := m.blueprint[key]
		if ok {
			existing.Policy = r.Policy
			existing.Regret = r.Regret
			m.blueprint[key] = existing
		} else {
			m.blueprint[key] = r
		}
	}
	return nil
}

func (m *MemorySink) LookupIsomorphism(ctx context.Context, obs int64) (IsomorphismRow, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	abs, ok := m.isomorphism[obs]
	if !ok {
		return IsomorphismRow{}, false, nil
	}
	return IsomorphismRow{Obs: obs, Abs: abs}, true, nil
}

func (m *MemorySink) CountIsomorphism(ctx context.Context, absLow, absHigh int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, abs := range m.isomorphism {
		if abs >= absLow && abs < absHigh {
			n++
		}
	}
	return n, nil
}

func (m *MemorySink) CountBlueprint(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.blueprint)), nil
}

func (m *MemorySink) TruncateIsomorphismRange(ctx context.Context, absLow, absHigh int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for obs, abs := range m.isomorphism {
		if abs >= absLow && abs < absHigh {
			delete(m.isomorphism, obs)
		}
	}
	return nil
}

func (m *MemorySink) Epoch(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch, nil
}

func (m *MemorySink) SetEpoch(ctx context.Context, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch = value
	return nil
}

var _ Sink = (*MemorySink)(nil)
