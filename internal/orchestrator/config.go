// Package orchestrator implements the training orchestrator: the phase gate
// (status → cluster-missing → solve → checkpoint), reverse-street
// clustering, resumability, and graceful stop.
package orchestrator

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/blueprint/internal/abstraction/emd"
	"github.com/lox/blueprint/internal/abstraction/kmeans"
	"github.com/lox/blueprint/internal/solver"
)

// Config aggregates the abstraction and training parameters the orchestrator
// needs, loadable from an HCL file.
type Config struct {
	Abstraction AbstractionSettings `hcl:"abstraction,block"`
	Training    TrainingSettings    `hcl:"training,block"`
}

// AbstractionSettings controls clustering: bucket counts are fixed by
// store.BucketCounts, but k-means iteration caps, Sinkhorn regularisation,
// and worker counts are tunable.
type AbstractionSettings struct {
	KMeansMaxIters int     `hcl:"kmeans_max_iters,optional"`
	SinkhornEps    float64 `hcl:"sinkhorn_epsilon,optional"`
	SinkhornIters  int     `hcl:"sinkhorn_max_iters,optional"`
	SinkhornTau    float64 `hcl:"sinkhorn_tolerance,optional"`
	Workers        int     `hcl:"workers,optional"`
	Seed           int64   `hcl:"seed,optional"`
	HotCacheSize   int     `hcl:"hot_cache_size,optional"`
}

// TrainingSettings mirrors the fields of solver.TrainingConfig that make
// sense to expose in an on-disk config file.
type TrainingSettings struct {
	Iterations          int     `hcl:"iterations,optional"`
	Players             int     `hcl:"players,optional"`
	Seed                int64   `hcl:"seed,optional"`
	ParallelTables      int     `hcl:"parallel_tables,optional"`
	CheckpointEvery     int     `hcl:"checkpoint_every,optional"`
	ProgressEvery       int     `hcl:"progress_every,optional"`
	AdaptiveRaiseVisits int     `hcl:"adaptive_raise_visits,optional"`
	UseCFRPlus          bool    `hcl:"use_cfr_plus,optional"`
	UseDCFR             bool    `hcl:"use_dcfr,optional"`
	DCFRGamma           float64 `hcl:"dcfr_gamma,optional"`
	Sampling            string  `hcl:"sampling,optional"`

	SmallBlind    int `hcl:"small_blind,optional"`
	BigBlind      int `hcl:"big_blind,optional"`
	StartingStack int `hcl:"starting_stack,optional"`
}

// DefaultConfig returns sensible defaults for local experimentation.
func DefaultConfig() Config {
	return Config{
		Abstraction: AbstractionSettings{
			KMeansMaxIters: 100,
			SinkhornEps:    0.05,
			SinkhornIters:  20,
			SinkhornTau:    1e-4,
			Workers:        4,
			Seed:           1,
			HotCacheSize:   1 << 20,
		},
		Training: TrainingSettings{
			Iterations:          1_000_000,
			Players:             2,
			Seed:                1,
			ParallelTables:      4,
			CheckpointEvery:     1000,
			ProgressEvery:       100,
			AdaptiveRaiseVisits: 500,
			UseCFRPlus:          true,
			UseDCFR:             true,
			DCFRGamma:           1.5,
			Sampling:            "external",
			SmallBlind:          5,
			BigBlind:            10,
			StartingStack:       1000,
		},
	}
}

// Load reads Config from an HCL file, falling back to DefaultConfig when
// path is empty or the file does not exist.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return Config{}, fmt.Errorf("orchestrator: parse config: %s", diags.Error())
	}
	if diags := gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return Config{}, fmt.Errorf("orchestrator: decode config: %s", diags.Error())
	}
	return cfg, nil
}

func (c AbstractionSettings) emdConfig() emd.Config {
	cfg := emd.DefaultConfig()
	if c.SinkhornEps > 0 {
		cfg.Epsilon = c.SinkhornEps
	}
	if c.SinkhornIters > 0 {
		cfg.MaxIters = c.SinkhornIters
	}
	if c.SinkhornTau > 0 {
		cfg.Tolerance = c.SinkhornTau
	}
	return cfg
}

func (c AbstractionSettings) kmeansConfig(k int) kmeans.Config {
	return kmeans.Config{
		K:        k,
		MaxIters: c.KMeansMaxIters,
		EMD:      c.emdConfig(),
		Seed:     c.Seed,
		Workers:  c.Workers,
	}
}

// trainingConfig converts the HCL-loaded settings into a solver.TrainingConfig.
func (t TrainingSettings) trainingConfig() (solver.TrainingConfig, error) {
	mode, err := parseSamplingMode(t.Sampling)
	if err != nil {
		return solver.TrainingConfig{}, err
	}
	return solver.TrainingConfig{
		Iterations:          t.Iterations,
		Players:             t.Players,
		Seed:                t.Seed,
		ParallelTables:      t.ParallelTables,
		CheckpointEvery:     time.Duration(t.CheckpointEvery) * time.Second,
		ProgressEvery:       t.ProgressEvery,
		AdaptiveRaiseVisits: t.AdaptiveRaiseVisits,
		UseCFRPlus:          t.UseCFRPlus,
		UseDCFR:             t.UseDCFR,
		DCFRGamma:           t.DCFRGamma,
		Sampling:            mode,
	}, nil
}

func parseSamplingMode(s string) (solver.SamplingMode, error) {
	switch s {
	case "", "external":
		return solver.SamplingModeExternal, nil
	case "outcome":
		return solver.SamplingModeOutcome, nil
	case "chance-only", "chance_only":
		return solver.SamplingModeChanceOnly, nil
	default:
		return 0, fmt.Errorf("orchestrator: unknown sampling mode %q", s)
	}
}
