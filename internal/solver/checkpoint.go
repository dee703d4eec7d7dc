package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/lox/blueprint/internal/abstraction/store"
	"github.com/lox/blueprint/internal/fileutil"
	"github.com/lox/blueprint/internal/oracle"
	"github.com/lox/blueprint/internal/sink"
)

const checkpointFileVersion = 2

type checkpointSnapshot struct {
	Version   int                       `json:"version"`
	Iteration int64                     `json:"iteration"`
	RNGSeed   int64                     `json:"rng_seed"`
	RNGCalls  int64                     `json:"rng_calls"`
	Training  TrainingConfig            `json:"training"`
	Regrets   map[string]regretSnapshot `json:"regrets"`
	Stats     TraversalStats            `json:"stats"`
}

// EnableCheckpoints configures the trainer to write checkpoints every n iterations.
func (t *Trainer) EnableCheckpoints(path string, every int) {
	t.checkpointPath = path
	t.checkpointEvery = every
}

// SaveCheckpoint writes a snapshot of the trainer state to the provided
// path via fileutil.WriteFileAtomic, so a crash mid-write never leaves a
// corrupt checkpoint in place.
func (t *Trainer) SaveCheckpoint(path string) error {
	snap, err := t.buildCheckpoint()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	if err := fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("persist checkpoint: %w", err)
	}
	return nil
}

// LoadTrainerFromCheckpoint restores a trainer from a previously saved
// checkpoint, re-wiring it to the given Oracle and Abstraction Store (which
// are not themselves part of the checkpoint: they're reconstructed from the
// durable sink, not re-derived from solver state).
func LoadTrainerFromCheckpoint(path string, o oracle.Oracle, st *store.Store) (*Trainer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	snap, err := decodeCheckpoint(f)
	if err != nil {
		return nil, err
	}

	trainer, err := NewTrainer(o, st, snap.Training)
	if err != nil {
		return nil, err
	}

	trainer.iteration.Store(snap.Iteration)
	trainer.stats = snap.Stats
	trainer.rngSeed = snap.RNGSeed
	trainer.rng = rand.New(rand.NewSource(snap.RNGSeed))
	trainer.rngCalls = snap.RNGCalls
	for i := int64(0); i < snap.RNGCalls; i++ {
		trainer.rng.Int63()
	}

	trainer.regrets = restoreRegretTable(snap.Regrets)
	return trainer, nil
}

func (t *Trainer) buildCheckpoint() (*checkpointSnapshot, error) {
	stats := t.Stats()
	snap := &checkpointSnapshot{
		Version:   checkpointFileVersion,
		Iteration: t.iteration.Load(),
		RNGSeed:   t.rngSeed,
		RNGCalls:  t.rngCalls,
		Training:  t.trainCfg,
		Regrets:   make(map[string]regretSnapshot),
		Stats:     stats,
	}

	entries := t.regrets.Entries()
	for key, entry := range entries {
		snap.Regrets[key] = entry.snapshot()
	}
	return snap, nil
}

// persistEpoch stages the trainer's current average strategy into the
// sink's blueprint table and stamps the epoch counter, so
// orchestrator.ReadStatus reports real progress even though the exact
// resumable state (RNG position, full regret sums) lives only in the local
// checkpoint file: the blueprint row schema has no room for either, so it
// carries the externally-visible policy/regret view, not the resume state.
func (t *Trainer) persistEpoch(ctx context.Context) error {
	sk := t.store.Sink()
	if sk == nil {
		return nil
	}

	entries := t.regrets.Entries()
	rows := make([]sink.BlueprintRow, 0, len(entries))
	for ks, entry := range entries {
		key, err := parseInfoSetKey(ks)
		if err != nil {
			return fmt.Errorf("solver: persist epoch: %w", err)
		}
		avg := entry.AverageStrategy()
		snap := entry.snapshot()
		for edge, policy := range avg {
			var regret float32
			if edge < len(snap.RegretSum) {
				regret = float32(snap.RegretSum[edge])
			}
			rows = append(rows, sink.BlueprintRow{
				Past:    key.Past,
				Present: key.Present,
				Future:  key.Future,
				Edge:    int64(edge),
				Policy:  float32(policy),
				Regret:  regret,
			})
		}
	}

	if len(rows) > 0 {
		if err := sk.AppendBlueprint(ctx, rows); err != nil {
			return fmt.Errorf("solver: persist epoch: append blueprint: %w", err)
		}
	}
	return sk.SetEpoch(ctx, t.iteration.Load())
}

// parseInfoSetKey parses the "past/present/future" form an InfoSetKey
// serialises to back into its three fields.
func parseInfoSetKey(s string) (InfoSetKey, error) {
	var past, present, future int64
	if _, err := fmt.Sscanf(s, "%d/%d/%d", &past, &present, &future); err != nil {
		return InfoSetKey{}, fmt.Errorf("parse info set key %q: %w", s, err)
	}
	return InfoSetKey{Past: past, Present: present, Future: future}, nil
}

func decodeCheckpoint(r io.Reader) (*checkpointSnapshot, error) {
	var snap checkpointSnapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, err
	}
	if snap.Version != checkpointFileVersion {
		return nil, errors.New("unsupported checkpoint version")
	}
	if err := snap.Training.Validate(); err != nil {
		return nil, fmt.Errorf("checkpoint training invalid: %w", err)
	}
	return &snap, nil
}

func restoreRegretTable(snaps map[string]regretSnapshot) *RegretTable {
	table := NewRegretTable()
	for key, snap := range snaps {
		shard := table.shardFor(key)
		shard.mu.Lock()
		shard.entries[key] = newRegretEntryFromSnapshot(snap)
		shard.mu.Unlock()
	}
	return table
}
