package oracle

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/lox/blueprint/internal/cards"
)

// TexasOracle is the concrete, card-aware Oracle: real isomorphism
// enumeration, real hand evaluation, and a fixed, finite No-Limit Hold'em
// betting grammar. Every other package (abstraction, solver) only ever sees
// it through the Oracle interface.
type TexasOracle struct {
	SmallBlind    int
	BigBlind      int
	StartingStack int

	// RaiseFractions are pot multiples offered once a node's visit count
	// has crossed the adaptive-expansion threshold (state.Expand == true).
	RaiseFractions []float64
	// PrunedFractions are the coarser ladder offered before expansion.
	PrunedFractions []float64

	EquitySamples int
}

// NewTexasOracle returns a TexasOracle with a standard three-size raise
// ladder and a single pot-size raise before expansion.
func NewTexasOracle(smallBlind, bigBlind, startingStack int) *TexasOracle {
	return &TexasOracle{
		SmallBlind:      smallBlind,
		BigBlind:        bigBlind,
		StartingStack:   startingStack,
		RaiseFractions:  []float64{0.5, 1.0, 2.0},
		PrunedFractions: []float64{1.0},
		EquitySamples:   1000,
	}
}

// IsoIter enumerates every canonical isomorphism class for street: all
// distinct (hole, board) combinations up to suit permutation.
func (o *TexasOracle) IsoIter(ctx context.Context, street Street) (<-chan Iso, error) {
	out := make(chan Iso)
	go func() {
		defer close(out)
		seen := make(map[uint64]struct{})
		holeN, boardN := 2, street.BoardCards()
		forEachCombination(fullDeck(), holeN+boardN, func(combo []cards.Card) bool {
			hole := cards.NewHand(combo[:holeN]...)
			board := cards.NewHand(combo[holeN:]...)
			key := canonicalKey(hole | board)
			if _, ok := seen[key]; ok {
				return true
			}
			seen[key] = struct{}{}
			select {
			case <-ctx.Done():
				return false
			case out <- Iso{Street: street, Key: key, Hole: hole, Board: board}:
			}
			return true
		})
	}()
	return out, nil
}

// Children returns every legal next-street completion of iso: iso's hole and
// board held fixed, with every combination of newly-revealed board cards.
func (o *TexasOracle) Children(ctx context.Context, iso Iso) (<-chan Iso, error) {
	out := make(chan Iso)
	go func() {
		defer close(out)
		if iso.Street == River {
			return
		}
		next := iso.Street + 1
		newCards := next.BoardCards() - iso.Street.BoardCards()
		used := iso.Hole | iso.Board
		pool := remainingCards(used)
		seen := make(map[uint64]struct{})
		forEachCombination(pool, newCards, func(extra []cards.Card) bool {
			childBoard := iso.Board
			for _, c := range extra {
				childBoard.AddCard(c)
			}
			key := canonicalKey(iso.Hole | childBoard)
			if _, ok := seen[key]; ok {
				return true
			}
			seen[key] = struct{}{}
			select {
			case <-ctx.Done():
				return false
			case out <- Iso{Street: next, Key: key, Hole: iso.Hole, Board: childBoard}:
			}
			return true
		})
	}()
	return out, nil
}

// Equity runs a Monte Carlo sweep estimating riverIso's win probability
// against a uniformly random opponent holding.
func (o *TexasOracle) Equity(ctx context.Context, riverIso Iso) (float64, error) {
	hole := handToCards(riverIso.Hole)
	board := handToCards(riverIso.Board)
	samples := o.EquitySamples
	if samples <= 0 {
		samples = 1000
	}
	rng := rand.New(rand.NewSource(int64(riverIso.Key)))
	return MonteCarloEquity(ctx, hole, board, samples, rng)
}

// Utility resolves a terminal state to player's chip-stack delta: either the
// single live player takes the pot uncontested, or hands are evaluated at
// showdown and the pot is split among the best (possibly tied) hands.
func (o *TexasOracle) Utility(state *State, player int) float64 {
	live := make([]int, 0, len(state.Folded))
	for seat, folded := range state.Folded {
		if !folded {
			live = append(live, seat)
		}
	}

	contribution := 0
	if player < len(state.Contributed) {
		contribution = state.Contributed[player]
	}

	if len(live) <= 1 {
		if len(live) == 1 && live[0] == player {
			return float64(state.Pot - contribution)
		}
		return float64(-contribution)
	}

	board := cards.NewHand(state.Board...)
	bestScore := cards.Score(-1)
	winners := make([]int, 0, len(live))
	for _, seat := range live {
		hand := cards.NewHand(state.Hole[seat]...) | board
		score := cards.Evaluate(hand)
		switch {
		case score > bestScore:
			bestScore = score
			winners = winners[:0]
			winners = append(winners, seat)
		case score == bestScore:
			winners = append(winners, seat)
		}
	}

	share := state.Pot / len(winners)
	for _, w := range winners {
		if w == player {
			return float64(share - contribution)
		}
	}
	return float64(-contribution)
}

// LegalEdges returns fold/check/call plus a raise ladder discretised as pot
// multiples, pruned to a single size until the traversal loop has visited
// this node enough times to warrant the full ladder (adaptive expansion),
// and an all-in edge whenever chips remain after calling. Ladder sizes that
// would reach or exceed the remaining stack are dropped.
func (o *TexasOracle) LegalEdges(state *State) []Edge {
	if state.Terminal || state.ActingSeat < 0 || state.ActingSeat >= len(state.Contributed) {
		return nil
	}
	seat := state.ActingSeat
	contributed := state.Contributed[seat]
	stack := o.StartingStack - contributed
	toCall := state.ToCall
	if toCall > stack {
		toCall = stack
	}

	edges := make([]Edge, 0, 6)
	if toCall > 0 {
		edges = append(edges, Edge{Kind: EdgeFold})
	} else {
		edges = append(edges, Edge{Kind: EdgeCheck})
	}
	if toCall > 0 {
		edges = append(edges, Edge{Kind: EdgeCall, Amount: contributed + toCall})
	}

	remaining := stack - toCall
	if remaining <= 0 {
		return edges
	}

	fractions := o.PrunedFractions
	if state.Expand {
		fractions = o.RaiseFractions
	}
	seen := map[int]struct{}{}
	for _, frac := range fractions {
		raise := int(math.Round(float64(state.Pot) * frac))
		if raise <= 0 {
			continue
		}
		if raise >= remaining {
			continue
		}
		total := contributed + toCall + raise
		if _, ok := seen[total]; ok {
			continue
		}
		seen[total] = struct{}{}
		edges = append(edges, Edge{Kind: EdgeRaise, Amount: total})
	}
	edges = append(edges, Edge{Kind: EdgeAllIn, Amount: contributed + stack})
	return edges
}

// InitialState deals a fresh hand: two hole cards per player, blinds posted
// by the two seats after the dealer button (seat 0 for heads-up), and
// preflop action starting on the first seat after the blinds.
func (o *TexasOracle) InitialState(rng *rand.Rand, players int) (*State, error) {
	if players < 2 {
		return nil, fmt.Errorf("oracle: initial state: players must be >= 2")
	}
	deck := cards.NewDeck(rng)
	hole := make([][]cards.Card, players)
	for seat := range hole {
		hole[seat] = deck.Deal(2)
	}

	contributed := make([]int, players)
	folded := make([]bool, players)
	acted := make([]bool, players)
	sbSeat, bbSeat := 0, 1%players
	contributed[sbSeat] = min(o.SmallBlind, o.StartingStack)
	contributed[bbSeat] += min(o.BigBlind, o.StartingStack)

	pot := 0
	for _, c := range contributed {
		pot += c
	}
	acting := (bbSeat + 1) % players

	return &State{
		Street:      Preflop,
		ActingSeat:  acting,
		Hole:        hole,
		Board:       nil,
		Pot:         pot,
		ToCall:      contributed[bbSeat] - contributed[acting],
		Contributed: contributed,
		Folded:      folded,
		Acted:       acted,
	}, nil
}

// Apply advances state by seat taking edge: folds remove the seat from
// contention, calls/raises update contributions and the pot, and once every
// live seat has matched the street's bet, the next street's board cards are
// revealed (or the hand reaches showdown after the River).
func (o *TexasOracle) Apply(ctx context.Context, state *State, seat int, edge Edge, rng *rand.Rand) (*State, error) {
	next := cloneState(state)
	next.Acted[seat] = true

	switch edge.Kind {
	case EdgeFold:
		next.Folded[seat] = true
	case EdgeCheck:
		// no chip movement
	case EdgeCall, EdgeRaise, EdgeAllIn:
		delta := edge.Amount - next.Contributed[seat]
		if delta < 0 {
			delta = 0
		}
		next.Contributed[seat] += delta
		next.Pot += delta
	}

	if livesRemaining(next) <= 1 {
		next.Terminal = true
		next.ActingSeat = -1
		return next, nil
	}

	if !isRoundClosed(next) {
		nextSeat := advanceSeat(next, seat)
		next.ActingSeat = nextSeat
		next.ToCall = maxContribution(next) - next.Contributed[nextSeat]
		return next, nil
	}

	if next.Street == River {
		next.Terminal = true
		next.ActingSeat = -1
		return next, nil
	}

	deck := cards.NewDeck(rng)
	used := cards.NewHand(next.Board...)
	for _, h := range next.Hole {
		used |= cards.NewHand(h...)
	}
	drawn := dealAvoiding(deck, used, (next.Street+1).BoardCards()-next.Street.BoardCards())
	next.Board = append(next.Board, drawn...)
	next.Street++
	next.ActingSeat = firstLiveSeat(next, 0)
	next.ToCall = 0
	next.Expand = false
	next.Acted = make([]bool, len(next.Acted))
	return next, nil
}

func cloneState(s *State) *State {
	next := &State{
		Street:      s.Street,
		ActingSeat:  s.ActingSeat,
		Pot:         s.Pot,
		ToCall:      s.ToCall,
		Terminal:    s.Terminal,
		Expand:      s.Expand,
		Board:       append([]cards.Card(nil), s.Board...),
		Contributed: append([]int(nil), s.Contributed...),
		Folded:      append([]bool(nil), s.Folded...),
		Acted:       append([]bool(nil), s.Acted...),
	}
	next.Hole = make([][]cards.Card, len(s.Hole))
	for i, h := range s.Hole {
		next.Hole[i] = append([]cards.Card(nil), h...)
	}
	return next
}

func livesRemaining(s *State) int {
	n := 0
	for _, f := range s.Folded {
		if !f {
			n++
		}
	}
	return n
}

func maxContribution(s *State) int {
	max := 0
	for _, c := range s.Contributed {
		if c > max {
			max = c
		}
	}
	return max
}

// isRoundClosed reports whether every live seat has both acted since the
// last deal and matched the street's high bet.
func isRoundClosed(s *State) bool {
	target := maxContribution(s)
	for seat, folded := range s.Folded {
		if folded {
			continue
		}
		if !s.Acted[seat] || s.Contributed[seat] < target {
			return false
		}
	}
	return true
}

// advanceSeat finds the next live seat after acted.
func advanceSeat(s *State, acted int) int {
	n := len(s.Contributed)
	for offset := 1; offset <= n; offset++ {
		seat := (acted + offset) % n
		if !s.Folded[seat] {
			return seat
		}
	}
	return acted
}

func firstLiveSeat(s *State, from int) int {
	n := len(s.Folded)
	for offset := 0; offset < n; offset++ {
		seat := (from + offset) % n
		if !s.Folded[seat] {
			return seat
		}
	}
	return from
}

func dealAvoiding(deck *cards.Deck, used cards.Hand, n int) []cards.Card {
	out := make([]cards.Card, 0, n)
	for len(out) < n {
		batch := deck.Deal(1)
		if batch == nil {
			break
		}
		c := batch[0]
		if used.HasCard(c) {
			continue
		}
		used.AddCard(c)
		out = append(out, c)
	}
	return out
}

var _ Oracle = (*TexasOracle)(nil)
