package oracle

import (
	"context"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/lox/blueprint/internal/cards"
)

// equityWorkerResult accumulates one worker's share of a Monte Carlo sweep.
type equityWorkerResult struct {
	wins, ties, samples int
}

// MonteCarloEquity estimates a hero hand's win probability against a
// uniformly random opponent hand and random run-out, parallelised across
// CPU workers once the sample count is large enough to amortise the
// goroutine overhead.
func MonteCarloEquity(ctx context.Context, hole, board []cards.Card, samples int, rng *rand.Rand) (float64, error) {
	if len(hole) != 2 || len(board) > 5 {
		return 0, nil
	}
	if samples < 500 {
		r := equityWorker(hole, board, samples, rng)
		return equityRatio(r), nil
	}
	return monteCarloEquityParallel(ctx, hole, board, samples, rng)
}

func monteCarloEquityParallel(ctx context.Context, hole, board []cards.Card, samples int, rng *rand.Rand) (float64, error) {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	perWorker := samples / workers
	remainder := samples % workers

	g, gctx := errgroup.WithContext(ctx)
	results := make([]equityWorkerResult, workers)

	for w := 0; w < workers; w++ {
		w := w
		n := perWorker
		if w < remainder {
			n++
		}
		seed := rng.Int63()
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			workerRng := rand.New(rand.NewSource(seed))
			results[w] = equityWorker(hole, board, n, workerRng)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := equityWorkerResult{}
	for _, r := range results {
		total.wins += r.wins
		total.ties += r.ties
		total.samples += r.samples
	}
	return equityRatio(total), nil
}

func equityRatio(r equityWorkerResult) float64 {
	if r.samples == 0 {
		return 0
	}
	return (float64(r.wins) + float64(r.ties)/2.0) / float64(r.samples)
}

func equityWorker(hole, board []cards.Card, samples int, rng *rand.Rand) equityWorkerResult {
	used := cards.NewHand(append(append([]cards.Card{}, hole...), board...)...)

	available := make([]cards.Card, 0, 52-used.CountCards())
	for suit := uint8(0); suit < 4; suit++ {
		for rank := uint8(0); rank < 13; rank++ {
			c := cards.NewCard(rank, suit)
			if !used.HasCard(c) {
				available = append(available, c)
			}
		}
	}

	var result equityWorkerResult
	for i := 0; i < samples; i++ {
		pool := append([]cards.Card(nil), available...)
		oppHole, pool, ok := drawTwo(pool, rng)
		if !ok {
			continue
		}

		needed := 5 - len(board)
		runout := make([]cards.Card, 0, needed)
		for j := 0; j < needed && len(pool) > 0; j++ {
			idx := rng.Intn(len(pool))
			runout = append(runout, pool[idx])
			pool[idx] = pool[len(pool)-1]
			pool = pool[:len(pool)-1]
		}
		if len(runout) != needed {
			continue
		}

		finalBoard := append(append([]cards.Card{}, board...), runout...)
		heroHand := cards.NewHand(append(append([]cards.Card{}, hole...), finalBoard...)...)
		oppHand := cards.NewHand(append(append([]cards.Card{}, oppHole...), finalBoard...)...)

		heroScore := cards.Evaluate(heroHand)
		oppScore := cards.Evaluate(oppHand)

		switch heroScore.Compare(oppScore) {
		case 1:
			result.wins++
		case 0:
			result.ties++
		}
		result.samples++
	}
	return result
}

func drawTwo(pool []cards.Card, rng *rand.Rand) ([]cards.Card, []cards.Card, bool) {
	if len(pool) < 2 {
		return nil, pool, false
	}
	i := rng.Intn(len(pool))
	a := pool[i]
	pool[i] = pool[len(pool)-1]
	pool = pool[:len(pool)-1]
	j := rng.Intn(len(pool))
	b := pool[j]
	pool[j] = pool[len(pool)-1]
	pool = pool[:len(pool)-1]
	return []cards.Card{a, b}, pool, true
}
