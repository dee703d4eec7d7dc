package solver

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/lox/blueprint/internal/oracle"
	"github.com/lox/blueprint/internal/tree"
)

// ErrInvariantViolation marks a broken core guarantee: strategy sum drift,
// negative counts, or other invariant failure. Raising it aborts training
// with exit code 3.
var ErrInvariantViolation = errors.New("solver: invariant violation")

// IsInvariantViolation reports whether err wraps ErrInvariantViolation.
func IsInvariantViolation(err error) bool { return errors.Is(err, ErrInvariantViolation) }

// Street is re-exported from the oracle package so solver callers don't
// need a second import for the same concept.
type Street = oracle.Street

const (
	StreetPreflop = oracle.Preflop
	StreetFlop    = oracle.Flop
	StreetTurn    = oracle.Turn
	StreetRiver   = oracle.River
)

// InfoSetKey is the (past_path, present_bucket, future_path) triple
// produced by the game tree encoder. Regret/strategy tables are keyed by
// this triple plus the edge index, never by raw game state, so averaging
// only ever mixes genuinely indistinguishable histories.
type InfoSetKey = tree.Key

// RegretEntry accumulates regrets and strategy sums for a node. Values are kept
// in slices to avoid map churn during CFR traversals.
type RegretEntry struct {
	Actions     []float64
	RegretSum   []float64
	StrategySum []float64
	Normalising float64
	mutex       sync.Mutex
}

// RegretUpdateOptions configures how regrets and strategy sums are
// accumulated, two independently-chosen schedules: the regret weighting
// (CFR+'s floor-at-0 vs Linear-CFR's t/(t+1) scaling) and the
// average-strategy weighting (Linear vs Discounted (t/(t+1))^gamma).
type RegretUpdateOptions struct {
	UseCFRPlus bool
	UseDCFR    bool
	DCFRGamma  float64
	Iteration  int
}

// ensureSize grows the regret entry to accommodate n actions.
func (e *RegretEntry) ensureSize(n int) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if len(e.Actions) >= n {
		return
	}
	missing := n - len(e.Actions)
	e.Actions = append(e.Actions, make([]float64, missing)...)
	e.RegretSum = append(e.RegretSum, make([]float64, missing)...)
	e.StrategySum = append(e.StrategySum, make([]float64, missing)...)
}

// Strategy returns the current regret-matching distribution for the node.
func (e *RegretEntry) Strategy() []float64 {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	total := 0.0
	strat := make([]float64, len(e.RegretSum))
	for i, r := range e.RegretSum {
		if r > 0 {
			strat[i] = r
			total += r
		}
	}
	if total <= 0 {
		// Uniform fallback
		v := 1.0 / float64(len(strat))
		for i := range strat {
			strat[i] = v
		}
		return strat
	}
	for i := range strat {
		strat[i] /= total
	}
	return strat
}

// Update accumulates regrets and strategy sums for the node, applying the
// regret and average-strategy weighting schedules selected by opts.
func (e *RegretEntry) Update(regret []float64, strategy []float64, reachWeight float64, opts RegretUpdateOptions) {
	e.mutex.Lock()
	iter := opts.Iteration
	if iter <= 0 {
		iter = 1
	}

	// Regret schedule: CFR+ floors cumulative regret at 0 every iteration
	// (no decay term); Linear-CFR instead decays the running sum by
	// t/(t+1) before adding this iteration's regret, weighting later
	// iterations more heavily without ever discarding negative regret.
	regretDecay := float64(iter) / float64(iter+1)
	if opts.UseCFRPlus {
		regretDecay = 1.0
	}

	// Average-strategy schedule: Linear averaging weights each iteration's
	// strategy by t; Discounted averaging (DCFR) instead weights by
	// (t/(t+1))^gamma.
	avgWeight := float64(iter)
	if opts.UseDCFR {
		gamma := opts.DCFRGamma
		if gamma <= 0 {
			gamma = 1
		}
		avgWeight = math.Pow(float64(iter)/float64(iter+1), gamma)
	}

	weight := reachWeight * avgWeight
	for i := range regret {
		e.RegretSum[i] = e.RegretSum[i]*regretDecay + regret[i]
		if opts.UseCFRPlus && e.RegretSum[i] < 0 {
			e.RegretSum[i] = 0
		}
		e.StrategySum[i] += weight * strategy[i]
	}
	e.Normalising += weight
	e.mutex.Unlock()
}

// AverageStrategy returns the normalised average strategy for the node.
func (e *RegretEntry) AverageStrategy() []float64 {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	strat := make([]float64, len(e.StrategySum))
	if e.Normalising <= 0 {
		v := 1.0 / float64(len(strat))
		for i := range strat {
			strat[i] = v
		}
		return strat
	}
	for i := range strat {
		strat[i] = e.StrategySum[i] / e.Normalising
	}
	return strat
}

// RegretTable maintains thread-safe entries keyed by info set.
const regretTableShardCount = 64
const regretTableShardMask = regretTableShardCount - 1

type regretShard struct {
	mu      sync.RWMutex
	entries map[string]*RegretEntry
}

// RegretTable maintains thread-safe entries keyed by info set using sharded maps.
type RegretTable struct {
	shards [regretTableShardCount]regretShard
}

// NewRegretTable returns an empty regret table ready for use.
func NewRegretTable() *RegretTable {
	table := &RegretTable{}
	for i := 0; i < regretTableShardCount; i++ {
		table.shards[i].entries = make(map[string]*RegretEntry)
	}
	return table
}

// Get returns the entry for the given key, creating it if missing.
func (t *RegretTable) Get(key InfoSetKey, actionCount int) *RegretEntry {
	k := key.String()
	shard := t.shardFor(k)

	shard.mu.RLock()
	entry, ok := shard.entries[k]
	shard.mu.RUnlock()
	if ok {
		entry.ensureSize(actionCount)
		return entry
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if entry, ok = shard.entries[k]; ok {
		entry.ensureSize(actionCount)
		return entry
	}

	entry = &RegretEntry{}
	entry.ensureSize(actionCount)
	shard.entries[k] = entry
	return entry
}

// Entries exposes a snapshot of the underlying table for serialisation.
func (t *RegretTable) Entries() map[string]*RegretEntry {
	out := make(map[string]*RegretEntry)
	for i := 0; i < regretTableShardCount; i++ {
		shard := &t.shards[i]
		shard.mu.RLock()
		for k, v := range shard.entries {
			out[k] = v
		}
		shard.mu.RUnlock()
	}
	return out
}

// Size returns the number of info sets tracked.
func (t *RegretTable) Size() int {
	total := 0
	for i := 0; i < regretTableShardCount; i++ {
		shard := &t.shards[i]
		shard.mu.RLock()
		total += len(shard.entries)
		shard.mu.RUnlock()
	}
	return total
}

func (t *RegretTable) shardFor(key string) *regretShard {
	h := hashKey(key)
	return &t.shards[h&regretTableShardMask]
}

// Validate checks the strategy invariant across every tracked info set:
// Σₐ σ(I,a) = 1 ± 1e-6 and σ(I,a) ≥ 0. Called periodically by the Trainer
// so a drifting average strategy is caught as an InvariantViolation rather
// than silently corrupting the blueprint.
func (t *RegretTable) Validate() error {
	const tolerance = 1e-6
	for i := 0; i < regretTableShardCount; i++ {
		shard := &t.shards[i]
		shard.mu.RLock()
		for key, entry := range shard.entries {
			strat := entry.AverageStrategy()
			sum := 0.0
			for _, p := range strat {
				if p < 0 {
					shard.mu.RUnlock()
					return fmt.Errorf("%w: negative probability at %s", ErrInvariantViolation, key)
				}
				sum += p
			}
			if math.Abs(sum-1) > tolerance {
				shard.mu.RUnlock()
				return fmt.Errorf("%w: strategy sum %.9f at %s", ErrInvariantViolation, sum, key)
			}
		}
		shard.mu.RUnlock()
	}
	return nil
}

// regretSnapshot is the JSON-serialisable form of a RegretEntry, used by
// checkpointing to persist and restore the regret table across restarts.
type regretSnapshot struct {
	Actions     []float64 `json:"actions"`
	RegretSum   []float64 `json:"regret_sum"`
	StrategySum []float64 `json:"strategy_sum"`
	Normalising float64   `json:"normalising"`
}

func (e *RegretEntry) snapshot() regretSnapshot {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	snap := regretSnapshot{
		Actions:     append([]float64(nil), e.Actions...),
		RegretSum:   append([]float64(nil), e.RegretSum...),
		StrategySum: append([]float64(nil), e.StrategySum...),
		Normalising: e.Normalising,
	}
	return snap
}

func newRegretEntryFromSnapshot(snap regretSnapshot) *RegretEntry {
	entry := &RegretEntry{
		Actions:     append([]float64(nil), snap.Actions...),
		RegretSum:   append([]float64(nil), snap.RegretSum...),
		StrategySum: append([]float64(nil), snap.StrategySum...),
		Normalising: snap.Normalising,
	}
	return entry
}

func hashKey(key string) uint32 {
	const offset32 = 2166136261
	const prime32 = 16777619
	var hash uint32 = offset32
	for i := 0; i < len(key); i++ {
		hash ^= uint32(key[i])
		hash *= prime32
	}
	return hash
}
