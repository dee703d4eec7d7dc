// Package oracle defines the black-box game/card interface the abstraction
// and solver packages consume. Nothing downstream needs to know how hands
// are dealt, evaluated, or scored to chips; it only calls through here.
package oracle

import (
	"context"
	"math/rand"

	"github.com/lox/blueprint/internal/cards"
)

// Edge is a single legal action at a decision node, already expressed in the
// fixed action grammar (fold, check/call, a discretised raise size, all-in).
type Edge struct {
	Kind   EdgeKind
	Amount int // total chips committed this street, for Raise/AllIn
}

// EdgeKind enumerates the action grammar's edge categories.
type EdgeKind uint8

const (
	EdgeFold EdgeKind = iota
	EdgeCheck
	EdgeCall
	EdgeRaise
	EdgeAllIn
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeFold:
		return "fold"
	case EdgeCheck:
		return "check"
	case EdgeCall:
		return "call"
	case EdgeRaise:
		return "raise"
	case EdgeAllIn:
		return "allin"
	default:
		return "unknown"
	}
}

// Street mirrors the card-abstraction notion of street without importing the
// solver package, keeping the oracle free of upward dependencies.
type Street uint8

const (
	Preflop Street = iota
	Flop
	Turn
	River
)

func (s Street) String() string {
	switch s {
	case Preflop:
		return "preflop"
	case Flop:
		return "flop"
	case Turn:
		return "turn"
	case River:
		return "river"
	default:
		return "unknown"
	}
}

// BoardCards reports how many community cards are visible on a street.
func (s Street) BoardCards() int {
	switch s {
	case Preflop:
		return 0
	case Flop:
		return 3
	case Turn:
		return 4
	case River:
		return 5
	default:
		return 5
	}
}

// Iso is an isomorphism-class representative. Key is the opaque canonical
// class id (from cards.Canonicalize) used for Store lookups; Hole and Board
// are the concrete, non-canonicalized cards the class represents, kept
// separate (rather than merged into one Hand) so Children and Equity can
// tell which cards are still "the hole" when extending to the next street.
type Iso struct {
	Street Street
	Key    uint64
	Hole   cards.Hand
	Board  cards.Hand
}

// State is an opaque in-progress game state, as simulated by a Trainer's
// traversal loop. Its fields are not interpreted by the abstraction
// packages; only Oracle methods inspect it.
type State struct {
	Street      Street
	ActingSeat  int
	Hole        [][]cards.Card
	Board       []cards.Card
	Pot         int
	ToCall      int
	Contributed []int
	Terminal    bool
	Folded      []bool

	// Acted marks which live seats have acted since the street's last deal,
	// so Apply can tell "everyone checked" apart from "action hasn't come
	// back around yet" when contributions are already equal.
	Acted []bool

	// Expand signals the adaptive raise-tree expansion decision: when
	// false, LegalEdges may return a pruned raise ladder; when true (a
	// visit-count threshold was crossed for this infoset), the full
	// discretised ladder should be returned.
	Expand bool
}

// Oracle is the black-box contract consumed by the abstraction pipeline and
// the solver's traversal: isomorphism enumeration, successor
// generation, equity, terminal utility, and legal edges at a state.
type Oracle interface {
	// IsoIter returns a deterministic, restartable sequence of canonical
	// isomorphism-class representatives for the given street.
	IsoIter(ctx context.Context, street Street) (<-chan Iso, error)

	// Children returns the successor isomorphisms on the next street that
	// complete the given isomorphism (all legal board run-outs).
	Children(ctx context.Context, iso Iso) (<-chan Iso, error)

	// Equity returns the river isomorphism's win probability in [0, 1]
	// against a uniformly random opponent hand.
	Equity(ctx context.Context, riverIso Iso) (float64, error)

	// Utility returns the terminal chip-stack delta for player relative to
	// their contribution, given a terminal state.
	Utility(state *State, player int) float64

	// LegalEdges returns the finite, deterministic action set available to
	// the acting player at state.
	LegalEdges(state *State) []Edge

	// InitialState deals a new hand for the given player count and returns
	// its starting state: hole cards dealt, blinds posted, first-to-act set.
	// All game setup (blinds, stack depth, dealing) is the Oracle's concern,
	// not the traversal loop's, so a Trainer never needs to know the rules.
	InitialState(rng *rand.Rand, players int) (*State, error)

	// Apply returns the state resulting from seat taking edge at state,
	// advancing the street and revealing board cards (drawn from rng, so a
	// seeded traversal stays reproducible) when a betting round closes.
	Apply(ctx context.Context, state *State, seat int, edge Edge, rng *rand.Rand) (*State, error)
}
