package solver

import (
	"context"
	"math/rand"

	"github.com/lox/blueprint/internal/cards"
	"github.com/lox/blueprint/internal/oracle"
	"github.com/lox/blueprint/internal/tree"
)

// iterationContext carries the per-iteration, per-goroutine state a single
// traversal needs: its own samplers (so parallel tables never share RNG
// state) and the regret-update schedule for this iteration.
type iterationContext struct {
	sampler    *rand.Rand // strategy/opponent-action sampling
	dealer     *rand.Rand // board-card draws inside Oracle.Apply
	updateOpts RegretUpdateOptions
	stats      *TraversalStats
}

// traverse implements External-Sampling MCCFR (with Outcome and Chance-only
// variants selected by t.trainCfg.Sampling): at the traverser's own nodes
// every action is explored and regrets are computed from the counterfactual
// spread; at every other node one action is sampled according to the
// current strategy and only that branch is followed.
func (t *Trainer) traverse(ctx context.Context, ictx *iterationContext, state *oracle.State, target int, past []tree.ActionToken) (float64, error) {
	if ictx.stats != nil {
		ictx.stats.NodesVisited++
		if len(past) > ictx.stats.MaxDepth {
			ictx.stats.MaxDepth = len(past)
		}
	}

	if state.Terminal {
		if ictx.stats != nil {
			ictx.stats.TerminalNodes++
		}
		return t.oracle.Utility(state, target), nil
	}

	edges := t.encoder.LegalEdges(state)
	if len(edges) == 0 {
		if ictx.stats != nil {
			ictx.stats.TerminalNodes++
		}
		return t.oracle.Utility(state, target), nil
	}

	seat := state.ActingSeat
	isoKey, err := t.isoKeyFor(state, seat)
	if err != nil {
		return 0, err
	}

	potFraction := make([]float64, len(edges))
	future := make([]tree.ActionToken, len(edges))
	for i, e := range edges {
		denom := state.Pot
		if denom <= 0 {
			denom = 1
		}
		potFraction[i] = float64(e.Amount) / float64(denom)
		future[i] = tree.TokenForEdge(e, potFraction[i])
	}

	key, err := t.encoder.Encode(ctx, state, isoKey, past, future)
	if err != nil {
		return 0, err
	}

	t.recordVisit(key)
	expand := t.shouldExpandRaises(key)
	if expand != state.Expand {
		state = cloneWithExpand(state, expand)
	}

	entry := t.regrets.Get(key, len(edges))
	strategy := entry.Strategy()

	if seat == target {
		if t.trainCfg.Sampling == SamplingModeOutcome {
			return t.traverseOutcomeSampled(ctx, ictx, state, target, past, future, edges, entry, strategy)
		}
		// External and Chance-only sampling both explore the traverser's
		// own node exhaustively; only the opponent/chance side is sampled.
		utilities := make([]float64, len(edges))
		nodeUtil := 0.0
		for i, e := range edges {
			next, err := t.oracle.Apply(ctx, state, seat, e, ictx.dealer)
			if err != nil {
				return 0, err
			}
			nextPast := appendToken(past, future[i])
			u, err := t.traverse(ctx, ictx, next, target, nextPast)
			if err != nil {
				return 0, err
			}
			utilities[i] = u
			nodeUtil += strategy[i] * u
		}

		regrets := make([]float64, len(edges))
		for i := range edges {
			regrets[i] = utilities[i] - nodeUtil
		}
		entry.Update(regrets, strategy, 1.0, ictx.updateOpts)
		return nodeUtil, nil
	}

	if t.trainCfg.Sampling == SamplingModeChanceOnly {
		// Opponent decisions are explored fully; only the board-card deal
		// inside Apply is a sampled chance event.
		nodeUtil := 0.0
		for i, e := range edges {
			if strategy[i] <= 0 {
				continue
			}
			next, err := t.oracle.Apply(ctx, state, seat, e, ictx.dealer)
			if err != nil {
				return 0, err
			}
			u, err := t.traverse(ctx, ictx, next, target, appendToken(past, future[i]))
			if err != nil {
				return 0, err
			}
			nodeUtil += strategy[i] * u
		}
		return nodeUtil, nil
	}

	// External and Outcome sampling both sample the opponent's action.
	idx := sampleIndex(strategy, ictx.sampler)
	e := edges[idx]
	next, err := t.oracle.Apply(ctx, state, seat, e, ictx.dealer)
	if err != nil {
		return 0, err
	}
	return t.traverse(ctx, ictx, next, target, appendToken(past, future[idx]))
}

// traverseOutcomeSampled implements Outcome-Sampling MCCFR's regret update
// at the traverser's own node: a single action is sampled and played out,
// and the counterfactual regret for every action is recovered from that one
// trajectory via importance weighting by the sampled action's probability.
func (t *Trainer) traverseOutcomeSampled(ctx context.Context, ictx *iterationContext, state *oracle.State, target int, past, future []tree.ActionToken, edges []oracle.Edge, entry *RegretEntry, strategy []float64) (float64, error) {
	idx := sampleIndex(strategy, ictx.sampler)
	next, err := t.oracle.Apply(ctx, state, state.ActingSeat, edges[idx], ictx.dealer)
	if err != nil {
		return 0, err
	}
	u, err := t.traverse(ctx, ictx, next, target, appendToken(past, future[idx]))
	if err != nil {
		return 0, err
	}

	sampleProb := strategy[idx]
	if sampleProb <= 0 {
		sampleProb = 1.0 / float64(len(edges))
	}
	weighted := u / sampleProb

	regrets := make([]float64, len(edges))
	for i := range edges {
		if i == idx {
			regrets[i] = (1 - strategy[i]) * weighted
		} else {
			regrets[i] = -strategy[i] * weighted
		}
	}
	entry.Update(regrets, strategy, 1.0, ictx.updateOpts)
	return u, nil
}

// isoKeyFor canonicalizes the acting seat's hole cards plus the visible
// board, the same identity the abstraction pipeline indexes buckets by.
func (t *Trainer) isoKeyFor(state *oracle.State, seat int) (uint64, error) {
	combo := make([]cards.Card, 0, 7)
	combo = append(combo, state.Hole[seat]...)
	combo = append(combo, state.Board...)
	return cards.Canonicalize(combo).Key(), nil
}

func appendToken(path []tree.ActionToken, tok tree.ActionToken) []tree.ActionToken {
	next := make([]tree.ActionToken, len(path)+1)
	copy(next, path)
	next[len(path)] = tok
	return next
}

func cloneWithExpand(state *oracle.State, expand bool) *oracle.State {
	next := *state
	next.Expand = expand
	return &next
}

// sampleIndex draws an index from strategy (a probability distribution),
// falling back to uniform if it sums to <= 0.
func sampleIndex(strategy []float64, rng *rand.Rand) int {
	if len(strategy) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range strategy {
		if v > 0 {
			total += v
		}
	}
	if total <= 0 {
		return rng.Intn(len(strategy))
	}
	r := rng.Float64() * total
	acc := 0.0
	for i, v := range strategy {
		if v <= 0 {
			continue
		}
		acc += v
		if r <= acc {
			return i
		}
	}
	return len(strategy) - 1
}
