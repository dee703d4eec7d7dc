package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/rs/zerolog"

	"github.com/lox/blueprint/cmd/blueprint/shared"
	"github.com/lox/blueprint/internal/abstraction/store"
	"github.com/lox/blueprint/internal/oracle"
	"github.com/lox/blueprint/internal/orchestrator"
	"github.com/lox/blueprint/internal/sink"
	"github.com/lox/blueprint/internal/solver"
	"github.com/lox/blueprint/internal/statusview"
)

var version = "dev"

// Exit codes: 0 clean stop, 1 configuration error, 2 sink error, 3 internal
// invariant violation.
const (
	exitOK             = 0
	exitConfigError    = 1
	exitSinkError      = 2
	exitInvariantError = 3
)

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Config  string           `kong:"help='Path to an HCL config file overriding abstraction/training defaults'"`
	Debug   bool             `kong:"help='Enable debug logging'"`

	Status  StatusCmd  `cmd:"" help:"Print the current epoch and per-street clustering completeness"`
	Cluster ClusterCmd `cmd:"" help:"Run Phase 1 (histogram clustering) to completion or failure"`
	Fast    FastCmd    `cmd:"" help:"Run Phase 2 (MCCFR training) in the threaded in-process configuration"`
	Slow    SlowCmd    `cmd:"" help:"Run Phase 2 (MCCFR training) in the serial, checkpoint-heavy configuration"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("blueprint"),
		kong.Description("No-Limit Hold'em blueprint strategy solver"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": version},
	)

	env, err := newEnv(cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitConfigError)
	}
	defer env.close()

	err = ctx.Run(env)
	if err == nil {
		os.Exit(exitOK)
	}

	fmt.Fprintln(os.Stderr, err)
	switch {
	case sink.IsFatal(err):
		os.Exit(exitSinkError)
	case solver.IsInvariantViolation(err):
		os.Exit(exitInvariantError)
	default:
		os.Exit(exitConfigError)
	}
}

// runtimeEnv bundles the shared dependencies every subcommand needs: the
// sink (Postgres if DATABASE_URL is set, in-memory otherwise), the
// abstraction store built on top of it, a Texas Hold'em oracle, and the
// orchestrator config loaded from --config.
type runtimeEnv struct {
	logger  zerolog.Logger
	cfg     orchestrator.Config
	sk      sink.Sink
	st      *store.Store
	oracle  oracle.Oracle
	closers []func()
}

func newEnv(cli CLI) (*runtimeEnv, error) {
	logger := shared.SetupLogger(cli.Debug)

	cfg, err := orchestrator.Load(cli.Config)
	if err != nil {
		return nil, fmt.Errorf("blueprint: %w", err)
	}

	var sk sink.Sink
	var closers []func()
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		pg, err := sink.Connect(context.Background(), dsn)
		if err != nil {
			return nil, fmt.Errorf("blueprint: connect sink: %w", err)
		}
		if err := pg.InitSchema(context.Background()); err != nil {
			return nil, fmt.Errorf("blueprint: init schema: %w", err)
		}
		sk = pg
		closers = append(closers, pg.Close)
	} else {
		logger.Info().Msg("DATABASE_URL unset, using in-memory sink")
		sk = sink.NewMemorySink()
	}

	st := store.New(sk, cfg.Abstraction.HotCacheSize)
	oc := oracle.NewTexasOracle(cfg.Training.SmallBlind, cfg.Training.BigBlind, cfg.Training.StartingStack)

	return &runtimeEnv{logger: logger, cfg: cfg, sk: sk, st: st, oracle: oc, closers: closers}, nil
}

func (e *runtimeEnv) close() {
	for _, c := range e.closers {
		c()
	}
}

// trainDuration reads TRAIN_DURATION, defaulting to 24h.
func trainDuration() (time.Duration, error) {
	raw := os.Getenv("TRAIN_DURATION")
	if raw == "" {
		return 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("blueprint: TRAIN_DURATION: %w", err)
	}
	return d, nil
}

type StatusCmd struct {
	Watch bool `kong:"help='Render a live-updating dashboard instead of printing once'"`
}

func (c *StatusCmd) Run(env *runtimeEnv) error {
	if !c.Watch {
		status, err := orchestrator.ReadStatus(context.Background(), env.sk, env.st)
		if err != nil {
			return err
		}
		fmt.Print(status.String())
		return nil
	}

	ctx := shared.SetupSignalHandlerWithLogger(env.logger)
	_, err := statusview.Run(ctx, env.sk, env.st, log.New(os.Stderr))
	return err
}

type ClusterCmd struct{}

func (c *ClusterCmd) Run(env *runtimeEnv) error {
	ctx := shared.SetupSignalHandlerWithLogger(env.logger)
	phase := orchestrator.NewClusterPhase(env.oracle, env.st, env.cfg.Abstraction)
	return phase.Run(ctx)
}

type FastCmd struct {
	Resume     string `kong:"help='Resume training from a checkpoint file'"`
	Checkpoint string `kong:"default='blueprint.checkpoint',help='Path to write periodic checkpoints'"`
}

func (c *FastCmd) Run(env *runtimeEnv) error {
	return runTrainPhase(env, c.Resume, c.Checkpoint, env.cfg.Training.ParallelTables)
}

// SlowCmd runs the same External-Sampling MCCFR core as fast, but pinned to
// a single table: the serial, checkpoint-heavy configuration for operators
// without spare cores to dedicate to parallel tables.
type SlowCmd struct {
	Resume     string `kong:"help='Resume training from a checkpoint file'"`
	Checkpoint string `kong:"default='blueprint.checkpoint',help='Path to write periodic checkpoints'"`
}

func (c *SlowCmd) Run(env *runtimeEnv) error {
	return runTrainPhase(env, c.Resume, c.Checkpoint, 1)
}

func runTrainPhase(env *runtimeEnv, resume, checkpoint string, parallelTables int) error {
	ctx := shared.SetupSignalHandlerWithLogger(env.logger)

	budget, err := trainDuration()
	if err != nil {
		return err
	}

	cfg := env.cfg
	cfg.Training.ParallelTables = parallelTables

	phase, err := orchestrator.NewTrainPhase(env.oracle, env.st, cfg, resume, checkpoint)
	if err != nil {
		return err
	}

	logger := env.logger
	progress := func(p solver.Progress) {
		logger.Info().
			Int("iteration", p.Iteration).
			Int("regret_table_size", p.RegretTableSize).
			Int64("nodes_visited", p.Stats.NodesVisited).
			Dur("iteration_time", p.Stats.IterationTime).
			Msg("training progress")
	}

	return phase.Run(ctx, budget, orchestrator.StdinStopSignal(), progress)
}
