package solver

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lox/blueprint/internal/abstraction/store"
	"github.com/lox/blueprint/internal/oracle"
	"github.com/lox/blueprint/internal/tree"
)

// TraversalStats captures instrumentation metrics for a single MCCFR iteration.
type TraversalStats struct {
	NodesVisited  int64
	TerminalNodes int64
	MaxDepth      int
	IterationTime time.Duration
}

// Progress contains metadata emitted during long-running solver operations.
type Progress struct {
	Iteration       int
	RegretTableSize int
	Stats           TraversalStats
}

// adaptiveInfo tracks how many times an info set has been visited, for the
// adaptive raise-tree expansion decision.
type adaptiveInfo struct {
	visits   int64
	expanded bool
}

// Trainer runs External-Sampling MCCFR (with Outcome and Chance-only
// variants) over a black-box Oracle, reading/writing card abstraction
// through the Abstraction Store and encoding info sets through the Game
// Tree Encoder. This is the in-process, sharded-lock concurrency
// configuration: all parallel tables share one RegretTable guarded by its
// own internal sharding, with no durable sink round-trip per node.
type Trainer struct {
	trainCfg TrainingConfig
	oracle   oracle.Oracle
	store    *store.Store
	encoder  *tree.Encoder
	regrets  *RegretTable

	iteration atomic.Int64
	rng       *rand.Rand
	rngSeed   int64
	rngCalls  int64

	statsMu sync.Mutex
	stats   TraversalStats

	checkpointPath  string
	checkpointEvery int

	adaptiveMu    sync.Mutex
	adaptiveState map[string]*adaptiveInfo
}

// NewTrainer constructs a Trainer wired to the given Oracle and Abstraction
// Store.
func NewTrainer(o oracle.Oracle, st *store.Store, trainCfg TrainingConfig) (*Trainer, error) {
	if err := trainCfg.Validate(); err != nil {
		return nil, err
	}

	seed := trainCfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	trainer := &Trainer{
		trainCfg: trainCfg,
		oracle:   o,
		store:    st,
		encoder:  tree.NewEncoder(o, st),
		regrets:  NewRegretTable(),
		rng:      rand.New(rand.NewSource(seed)),
		rngSeed:  seed,
	}
	if trainCfg.AdaptiveRaiseVisits > 0 {
		trainer.adaptiveState = make(map[string]*adaptiveInfo)
	}
	return trainer, nil
}

// Run executes the configured number of CFR iterations, checkpointing and
// reporting progress as configured.
func (t *Trainer) Run(ctx context.Context, progress func(Progress)) error {
	pLog := t.trainCfg.Iterations / 100
	if pLog == 0 {
		pLog = 1
	}
	batch := pLog
	if cfg := t.trainCfg.ProgressEvery; cfg > 0 {
		batch = cfg
	}

	for i := int(t.iteration.Load()); i < t.trainCfg.Iterations; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		startIter := time.Now()
		stats, err := t.singleIteration(ctx)
		if err != nil {
			return err
		}
		stats.IterationTime = time.Since(startIter)
		t.setStats(stats)
		iter := int(t.iteration.Add(1))

		if t.checkpointPath != "" && t.checkpointEvery > 0 && iter%t.checkpointEvery == 0 {
			if err := t.regrets.Validate(); err != nil {
				return err
			}
			if err := t.SaveCheckpoint(t.checkpointPath); err != nil {
				return err
			}
			if err := t.persistEpoch(ctx); err != nil {
				return err
			}
		}

		if progress != nil && iter%batch == 0 {
			progress(Progress{Iteration: iter, RegretTableSize: t.regrets.Size(), Stats: stats})
		}
	}

	if progress != nil {
		iter := int(t.iteration.Load())
		progress(Progress{Iteration: iter, RegretTableSize: t.regrets.Size(), Stats: t.Stats()})
	}

	if t.checkpointPath != "" && t.checkpointEvery > 0 {
		if err := t.SaveCheckpoint(t.checkpointPath); err != nil {
			return err
		}
		if err := t.persistEpoch(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Blueprint materialises the averaged strategies produced so far.
func (t *Trainer) Blueprint() *Blueprint {
	entries := t.regrets.Entries()
	strategies := make(map[string][]float64, len(entries))
	for key, entry := range entries {
		strategies[key] = entry.AverageStrategy()
	}
	return &Blueprint{
		Version:     blueprintFileVersion,
		GeneratedAt: time.Now().UTC(),
		Iterations:  int(t.iteration.Load()),
		Training:    t.trainCfg,
		Strategies:  strategies,
	}
}

func (t *Trainer) singleIteration(ctx context.Context) (TraversalStats, error) {
	parallel := t.trainCfg.ParallelTables
	if parallel <= 0 {
		parallel = 1
	}

	statsSlice := make([]TraversalStats, parallel)

	type tableSeeds struct {
		sample int64
		deal   int64
	}
	seeds := make([]tableSeeds, parallel)
	for i := 0; i < parallel; i++ {
		seeds[i].sample = t.rng.Int63()
		seeds[i].deal = t.rng.Int63()
		t.rngCalls += 2
	}

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var firstErr error

	for i := 0; i < parallel; i++ {
		idx := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			ictx := &iterationContext{
				sampler: NewFastRand(seeds[idx].sample),
				dealer:  NewFastRandV2(seeds[idx].deal),
				stats:   &statsSlice[idx],
				updateOpts: RegretUpdateOptions{
					UseCFRPlus: t.trainCfg.UseCFRPlus,
					UseDCFR:    t.trainCfg.UseDCFR,
					DCFRGamma:  t.trainCfg.DCFRGamma,
					Iteration:  int(t.iteration.Load()) + 1,
				},
			}

			for player := 0; player < t.trainCfg.Players; player++ {
				errMu.Lock()
				if firstErr != nil {
					errMu.Unlock()
					return
				}
				errMu.Unlock()

				initial, err := t.oracle.InitialState(ictx.dealer, t.trainCfg.Players)
				if err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("trainer: initial state: %w", err)
					}
					errMu.Unlock()
					return
				}

				if _, err := t.traverse(ctx, ictx, initial, player, nil); err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
					return
				}
			}
		}()
	}

	wg.Wait()
	if firstErr != nil {
		return TraversalStats{}, firstErr
	}

	aggregated := TraversalStats{}
	for i := 0; i < parallel; i++ {
		aggregated.NodesVisited += statsSlice[i].NodesVisited
		aggregated.TerminalNodes += statsSlice[i].TerminalNodes
		if statsSlice[i].MaxDepth > aggregated.MaxDepth {
			aggregated.MaxDepth = statsSlice[i].MaxDepth
		}
	}
	return aggregated, nil
}

func (t *Trainer) setStats(stats TraversalStats) {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	t.stats = stats
}

// Stats returns the most recent traversal statistics recorded by the trainer.
func (t *Trainer) Stats() TraversalStats {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	return t.stats
}

// AdaptiveStats reports how many info sets are tracked for adaptive raise
// expansion and how many have crossed the expansion threshold.
func (t *Trainer) AdaptiveStats() (expanded, tracked int) {
	if t.adaptiveState == nil {
		return 0, 0
	}
	t.adaptiveMu.Lock()
	defer t.adaptiveMu.Unlock()
	for _, info := range t.adaptiveState {
		tracked++
		if info.expanded {
			expanded++
		}
	}
	return expanded, tracked
}

func (t *Trainer) TrainingConfig() TrainingConfig {
	return t.trainCfg
}

func (t *Trainer) Iteration() int64 {
	return t.iteration.Load()
}

func (t *Trainer) SetTotalIterations(n int) error {
	current := int(t.iteration.Load())
	if n < current {
		return fmt.Errorf("total iterations %d less than completed %d", n, current)
	}
	t.trainCfg.Iterations = n
	return nil
}

func (t *Trainer) SetProgressEvery(n int) {
	if n < 0 {
		n = 0
	}
	t.trainCfg.ProgressEvery = n
}

func (t *Trainer) shouldExpandRaises(key InfoSetKey) bool {
	if t.trainCfg.AdaptiveRaiseVisits <= 0 || t.adaptiveState == nil {
		return false
	}
	ks := key.String()
	t.adaptiveMu.Lock()
	info, ok := t.adaptiveState[ks]
	t.adaptiveMu.Unlock()
	return ok && info.expanded
}

func (t *Trainer) recordVisit(key InfoSetKey) {
	if t.trainCfg.AdaptiveRaiseVisits <= 0 {
		return
	}
	ks := key.String()
	t.adaptiveMu.Lock()
	defer t.adaptiveMu.Unlock()
	if t.adaptiveState == nil {
		t.adaptiveState = make(map[string]*adaptiveInfo)
	}
	info := t.adaptiveState[ks]
	if info == nil {
		info = &adaptiveInfo{}
		t.adaptiveState[ks] = info
	}
	info.visits++
	if !info.expanded && info.visits >= int64(t.trainCfg.AdaptiveRaiseVisits) {
		info.expanded = true
	}
}
