package oracle

import (
	"context"
	"math/rand"
)

// MockOracle is a deterministic stand-in used by abstraction and solver
// tests: isomorphism enumeration is driven by a caller-supplied generator
// function rather than real card enumeration, so tests can exercise exact
// known-answer scenarios (e.g. the required river-bucketing and RPS cases)
// without enumerating the real combinatorial spaces.
type MockOracle struct {
	// StreetCount, if set, bounds IsoIter(street) to that many synthetic
	// isomorphisms, keyed 0..N-1.
	StreetCount map[Street]uint64

	// EquityFn overrides Equity; defaults to (key mod 101)/100 matching the
	// river-equity-bucketing scenario.
	EquityFn func(iso Iso) float64

	// ChildrenPerIso is how many synthetic children each iso produces.
	ChildrenPerIso int
}

// NewMockOracle returns a MockOracle with the river-equity-bucketing default
// wired in (equity ≡ (canonical_id mod 101)/100).
func NewMockOracle() *MockOracle {
	return &MockOracle{
		StreetCount:    map[Street]uint64{},
		ChildrenPerIso: 1,
	}
}

func (m *MockOracle) IsoIter(ctx context.Context, street Street) (<-chan Iso, error) {
	n := m.StreetCount[street]
	out := make(chan Iso)
	go func() {
		defer close(out)
		for i := uint64(0); i < n; i++ {
			select {
			case <-ctx.Done():
				return
			case out <- Iso{Street: street, Key: i}:
			}
		}
	}()
	return out, nil
}

func (m *MockOracle) Children(ctx context.Context, iso Iso) (<-chan Iso, error) {
	out := make(chan Iso)
	go func() {
		defer close(out)
		for i := 0; i < m.ChildrenPerIso; i++ {
			child := Iso{Street: iso.Street + 1, Key: iso.Key*uint64(m.ChildrenPerIso) + uint64(i)}
			select {
			case <-ctx.Done():
				return
			case out <- child:
			}
		}
	}()
	return out, nil
}

func (m *MockOracle) Equity(ctx context.Context, riverIso Iso) (float64, error) {
	if m.EquityFn != nil {
		return m.EquityFn(riverIso), nil
	}
	return float64(riverIso.Key%101) / 100.0, nil
}

func (m *MockOracle) Utility(state *State, player int) float64 {
	return 0
}

func (m *MockOracle) LegalEdges(state *State) []Edge {
	return nil
}

func (m *MockOracle) InitialState(rng *rand.Rand, players int) (*State, error) {
	return &State{ActingSeat: 0, Contributed: make([]int, players), Folded: make([]bool, players), Acted: make([]bool, players)}, nil
}

func (m *MockOracle) Apply(ctx context.Context, state *State, seat int, edge Edge, rng *rand.Rand) (*State, error) {
	next := *state
	next.Terminal = true
	next.ActingSeat = -1
	return &next, nil
}

// RPSOracle implements the single-decision-node Rock-Paper-Scissors game
// used as the MCCFR convergence scenario: seat 0 moves, then seat 1 moves,
// the payoff matrix settles the pair, and the game ends.
// Edge index 0/1/2 corresponds to Rock/Paper/Scissors.
type RPSOracle struct {
	// Payoff[a][b] is the utility to the traverser when they play a and the
	// fixed opponent policy resolves to b (zero-sum; opponent gets -payoff).
	Payoff [3][3]float64
}

// NewRPSOracle returns the canonical zero-sum RPS payoff matrix.
func NewRPSOracle() *RPSOracle {
	return &RPSOracle{
		Payoff: [3][3]float64{
			{0, -1, 1},
			{1, 0, -1},
			{-1, 1, 0},
		},
	}
}

func (r *RPSOracle) IsoIter(ctx context.Context, street Street) (<-chan Iso, error) {
	out := make(chan Iso)
	close(out)
	return out, nil
}

func (r *RPSOracle) Children(ctx context.Context, iso Iso) (<-chan Iso, error) {
	out := make(chan Iso)
	close(out)
	return out, nil
}

func (r *RPSOracle) Equity(ctx context.Context, riverIso Iso) (float64, error) {
	return 0.5, nil
}

// Utility resolves the fixed opponent edge (state.ToCall encodes the
// opponent's already-sampled move) against player's chosen edge (state.Pot).
func (r *RPSOracle) Utility(state *State, player int) float64 {
	hero := state.Pot
	villain := state.ToCall
	if player == 1 {
		return -r.Payoff[hero][villain]
	}
	return r.Payoff[hero][villain]
}

func (r *RPSOracle) LegalEdges(state *State) []Edge {
	return []Edge{
		{Kind: EdgeFold},
		{Kind: EdgeCheck},
		{Kind: EdgeCall},
	}
}

// InitialState returns the single decision node: seat 0 to act, nothing
// committed yet.
func (r *RPSOracle) InitialState(rng *rand.Rand, players int) (*State, error) {
	return &State{ActingSeat: 0, Contributed: make([]int, players), Folded: make([]bool, players), Acted: make([]bool, players)}, nil
}

// Apply records seat 0's move in Pot and seat 1's in ToCall (matching
// Utility's reading of them), terminating once both have acted.
func (r *RPSOracle) Apply(ctx context.Context, state *State, seat int, edge Edge, rng *rand.Rand) (*State, error) {
	next := *state
	if seat == 0 {
		next.Pot = int(edge.Kind)
		next.ActingSeat = 1
		return &next, nil
	}
	next.ToCall = int(edge.Kind)
	next.ActingSeat = -1
	next.Terminal = true
	return &next, nil
}

var (
	_ Oracle = (*MockOracle)(nil)
	_ Oracle = (*RPSOracle)(nil)
)
