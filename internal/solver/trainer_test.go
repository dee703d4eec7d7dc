package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lox/blueprint/internal/abstraction/store"
	"github.com/lox/blueprint/internal/oracle"
	"github.com/lox/blueprint/internal/sink"
)

// Rock-Paper-Scissors under Linear-CFR (no regret floor, t/(t+1) decay) and
// Linear averaging converges to the uniform equilibrium.
func TestTrainerRPSConvergesToUniform(t *testing.T) {
	st := store.New(sink.NewMemorySink(), 1024)
	o := oracle.NewRPSOracle()

	cfg := DefaultTrainingConfig()
	cfg.Iterations = 10_000
	cfg.Players = 2
	cfg.Seed = 42
	cfg.ParallelTables = 1
	cfg.UseCFRPlus = false
	cfg.UseDCFR = false
	cfg.CheckpointEvery = 0
	cfg.ProgressEvery = 0

	trainer, err := NewTrainer(o, st, cfg)
	require.NoError(t, err)

	require.NoError(t, trainer.Run(context.Background(), nil))

	bp := trainer.Blueprint()
	require.NotEmpty(t, bp.Strategies)

	for key, strat := range bp.Strategies {
		require.Len(t, strat, 3, "info set %s", key)
		sum := 0.0
		for i, p := range strat {
			require.InDelta(t, 1.0/3.0, p, 2e-2, "info set %s action %d", key, i)
			sum += p
		}
		require.InDelta(t, 1.0, sum, 1e-6, "info set %s", key)
	}
}
