package solver

import (
	"errors"
	"time"
)

// SamplingMode controls how opponent and chance actions are handled during
// traversal.
type SamplingMode uint8

const (
	SamplingModeExternal SamplingMode = iota
	SamplingModeOutcome
	SamplingModeChanceOnly
)

func (m SamplingMode) String() string {
	switch m {
	case SamplingModeExternal:
		return "external"
	case SamplingModeOutcome:
		return "outcome"
	case SamplingModeChanceOnly:
		return "chance-only"
	default:
		return "unknown"
	}
}

// TrainingConfig aggregates parameters that control MCCFR execution. There
// is one Trainer for both CLI modes: slow differs from fast only in the
// ParallelTables value it runs with.
type TrainingConfig struct {
	Iterations          int
	Players             int
	Seed                int64
	ParallelTables      int
	CheckpointEvery     time.Duration
	ProgressEvery       int
	AdaptiveRaiseVisits int
	UseCFRPlus          bool // regret schedule: CFR+ floor-at-0 vs Linear-CFR
	UseDCFR             bool // policy schedule: discounted (t/(t+1))^gamma vs linear
	DCFRGamma           float64
	Sampling            SamplingMode
}

// Validate ensures the training parameters are safe to use.
func (c TrainingConfig) Validate() error {
	if c.Iterations <= 0 {
		return errors.New("iterations must be > 0")
	}
	if c.Players < 2 {
		return errors.New("players must be >= 2")
	}
	if c.ParallelTables <= 0 {
		return errors.New("parallel tables must be > 0")
	}
	if c.CheckpointEvery < 0 {
		return errors.New("checkpoint interval cannot be negative")
	}
	if c.ProgressEvery < 0 {
		return errors.New("progress interval cannot be negative")
	}
	if c.AdaptiveRaiseVisits < 0 {
		return errors.New("adaptive raise visits cannot be negative")
	}
	if c.UseDCFR && c.DCFRGamma <= 0 {
		return errors.New("dcfr gamma must be > 0 when discounted averaging is enabled")
	}
	return nil
}

// DefaultTrainingConfig returns a minimal configuration for local experimentation.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Iterations:          1000,
		Players:             2,
		Seed:                1,
		ParallelTables:      1,
		CheckpointEvery:     5 * time.Minute,
		ProgressEvery:       0,
		AdaptiveRaiseVisits: 500,
		UseCFRPlus:          true,
		UseDCFR:             true,
		DCFRGamma:           1.5,
		Sampling:            SamplingModeExternal,
	}
}
