package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/coder/quartz"

	"github.com/lox/blueprint/internal/abstraction/store"
	"github.com/lox/blueprint/internal/oracle"
	"github.com/lox/blueprint/internal/solver"
)

// TrainPhase runs MCCFR until either the operator signals graceful stop (a
// 'Q' line on stdin) or a wall-clock budget elapses, whichever comes first,
// checkpointing along the way.
type TrainPhase struct {
	trainer *solver.Trainer
	clock   quartz.Clock
}

// SetClock overrides the wall-clock-budget timer source, for deterministic
// tests; production callers never need this (the real clock is the
// default).
func (p *TrainPhase) SetClock(clock quartz.Clock) { p.clock = clock }

// NewTrainPhase constructs the MCCFR trainer for o/st under cfg, or resumes
// one from resumePath if non-empty.
func NewTrainPhase(o oracle.Oracle, st *store.Store, cfg Config, resumePath, checkpointPath string) (*TrainPhase, error) {
	if resumePath != "" {
		trainer, err := solver.LoadTrainerFromCheckpoint(resumePath, o, st)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: resume: %w", err)
		}
		if checkpointPath != "" {
			trainer.EnableCheckpoints(checkpointPath, cfg.Training.CheckpointEvery)
		}
		return &TrainPhase{trainer: trainer, clock: quartz.NewReal()}, nil
	}

	trainCfg, err := cfg.Training.trainingConfig()
	if err != nil {
		return nil, err
	}
	trainer, err := solver.NewTrainer(o, st, trainCfg)
	if err != nil {
		return nil, err
	}
	if checkpointPath != "" {
		trainer.EnableCheckpoints(checkpointPath, cfg.Training.CheckpointEvery)
	}
	return &TrainPhase{trainer: trainer, clock: quartz.NewReal()}, nil
}

// Trainer exposes the underlying solver.Trainer, e.g. for the status
// dashboard to read live progress from.
func (p *TrainPhase) Trainer() *solver.Trainer { return p.trainer }

// Run drives training until the wall-clock budget elapses, stdin delivers a
// 'Q' line, or the context is cancelled — whichever comes first. progress
// is forwarded from the underlying Trainer.Run loop.
func (p *TrainPhase) Run(ctx context.Context, budget time.Duration, stopSignal io.Reader, progress func(solver.Progress)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if budget > 0 {
		timer := p.clock.AfterFunc(budget, cancel)
		defer timer.Stop()
	}

	if stopSignal != nil {
		go watchForStop(ctx, cancel, stopSignal)
	}

	err := p.trainer.Run(ctx, progress)
	if err == context.Canceled {
		return nil
	}
	return err
}

// watchForStop reads lines from r until one trims to exactly "Q", the
// graceful-stop signal, cancelling cancel when it sees one.
func watchForStop(ctx context.Context, cancel context.CancelFunc, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if strings.TrimSpace(scanner.Text()) == "Q" {
			cancel()
			return
		}
	}
}

// StdinStopSignal returns os.Stdin for use as TrainPhase.Run's stop signal
// in interactive operator sessions.
func StdinStopSignal() io.Reader { return os.Stdin }
