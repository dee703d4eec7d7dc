package solver

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lox/blueprint/internal/abstraction/store"
	"github.com/lox/blueprint/internal/oracle"
	"github.com/lox/blueprint/internal/sink"
)

func TestSampleIndexRespectsDistribution(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	counts := make([]int, 3)
	strategy := []float64{0.1, 0.0, 0.9}
	for i := 0; i < 10000; i++ {
		counts[sampleIndex(strategy, rng)]++
	}
	require.Zero(t, counts[1], "zero-probability action must never be sampled")
	require.Greater(t, counts[2], counts[0])
}

func TestSampleIndexFallsBackToUniformWhenAllZero(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	strategy := []float64{0, 0, 0}
	counts := make([]int, 3)
	for i := 0; i < 3000; i++ {
		counts[sampleIndex(strategy, rng)]++
	}
	for _, c := range counts {
		require.Greater(t, c, 0)
	}
}

// Outcome-sampled and chance-only-sampled traversals still converge to a
// valid (sum-to-1) strategy for RPS; fewer iterations than the External
// sampling convergence test since both variants are noisier per iteration.
func TestTrainerAlternateSamplingModesProduceValidStrategies(t *testing.T) {
	for _, mode := range []SamplingMode{SamplingModeOutcome, SamplingModeChanceOnly} {
		mode := mode
		t.Run(mode.String(), func(t *testing.T) {
			st := store.New(sink.NewMemorySink(), 1024)
			o := oracle.NewRPSOracle()

			cfg := DefaultTrainingConfig()
			cfg.Iterations = 2000
			cfg.Players = 2
			cfg.Seed = 3
			cfg.ParallelTables = 1
			cfg.Sampling = mode

			trainer, err := NewTrainer(o, st, cfg)
			require.NoError(t, err)
			require.NoError(t, trainer.Run(context.Background(), nil))

			bp := trainer.Blueprint()
			require.NotEmpty(t, bp.Strategies)
			for key, strat := range bp.Strategies {
				sum := 0.0
				for _, p := range strat {
					require.GreaterOrEqual(t, p, 0.0, "info set %s", key)
					sum += p
				}
				require.InDelta(t, 1.0, sum, 1e-6, "info set %s", key)
			}
		})
	}
}
