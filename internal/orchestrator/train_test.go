package orchestrator

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/lox/blueprint/internal/abstraction/store"
	"github.com/lox/blueprint/internal/oracle"
	"github.com/lox/blueprint/internal/sink"
)

func newTestEnv(t *testing.T) (oracle.Oracle, *store.Store) {
	t.Helper()
	sk := sink.NewMemorySink()
	return oracle.NewRPSOracle(), store.New(sk, 1024)
}

func TestTrainPhaseWallClockBudget(t *testing.T) {
	o, st := newTestEnv(t)
	cfg := DefaultConfig()
	cfg.Training.Iterations = 1_000_000_000
	cfg.Training.Players = 2
	cfg.Training.ParallelTables = 1
	cfg.Training.CheckpointEvery = 0

	phase, err := NewTrainPhase(o, st, cfg, "", "")
	require.NoError(t, err)

	mock := quartz.NewMock(t)
	phase.SetClock(mock)

	done := make(chan error, 1)
	go func() {
		done <- phase.Run(context.Background(), time.Minute, nil, nil)
	}()

	mock.Advance(time.Minute).MustWait(context.Background())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("training did not stop after wall-clock budget elapsed")
	}
}

func TestTrainPhaseGracefulStop(t *testing.T) {
	o, st := newTestEnv(t)
	cfg := DefaultConfig()
	cfg.Training.Iterations = 1_000_000_000
	cfg.Training.Players = 2
	cfg.Training.ParallelTables = 1
	cfg.Training.CheckpointEvery = 0

	phase, err := NewTrainPhase(o, st, cfg, "", "")
	require.NoError(t, err)

	stop := bytes.NewBufferString("Q\n")

	done := make(chan error, 1)
	go func() {
		done <- phase.Run(context.Background(), 0, stop, nil)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("training did not stop after graceful-stop signal")
	}
}
