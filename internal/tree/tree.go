// Package tree implements the game tree encoder: building, on demand, a
// portion of the extensive-form game tree under the abstraction, and
// mapping a game state to an InfoSet Key via a fixed action grammar.
package tree

import (
	"context"
	"fmt"

	"github.com/lox/blueprint/internal/abstraction/store"
	"github.com/lox/blueprint/internal/oracle"
)

// Key is the InfoSet Key triple: a compressed prefix of abstracted actions
// reaching the decision, the acting player's current-street abstraction,
// and a compressed sub-sequence of legal continuations.
type Key struct {
	Past    int64
	Present int64
	Future  int64
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Past, k.Present, k.Future)
}

// ActionToken is the fixed, finite vocabulary the grammar compresses a path
// into: one token per edge taken, bucketed into coarse categories so the
// compressed integer stays small and bounded regardless of raise-tower
// depth.
type ActionToken uint8

const (
	TokenCheck ActionToken = iota
	TokenCall
	TokenFold
	TokenRaiseSmall
	TokenRaiseMedium
	TokenRaiseLarge
	TokenAllIn
)

const maxRaiseTowerDepth = 4 // depth the raise tower is capped at

// raiseToken buckets a raise's fraction of pot into one of three coarse
// sizes, keeping the action grammar finite regardless of how many discrete
// bet-size fractions the abstraction config exposes.
func raiseToken(potFraction float64) ActionToken {
	switch {
	case potFraction <= 0.5:
		return TokenRaiseSmall
	case potFraction <= 1.0:
		return TokenRaiseMedium
	default:
		return TokenRaiseLarge
	}
}

func tokenFor(e oracle.Edge, potFraction float64) ActionToken {
	switch e.Kind {
	case oracle.EdgeFold:
		return TokenFold
	case oracle.EdgeCheck:
		return TokenCheck
	case oracle.EdgeCall:
		return TokenCall
	case oracle.EdgeAllIn:
		return TokenAllIn
	case oracle.EdgeRaise:
		return raiseToken(potFraction)
	default:
		return TokenCheck
	}
}

// compressPath folds a sequence of tokens into a single int64: consecutive
// checks collapse to one token (they carry no new information), and the
// encoded depth is capped at maxRaiseTowerDepth tokens, the oldest tokens
// dropped first since recency dominates strategic relevance.
func compressPath(tokens []ActionToken) int64 {
	collapsed := make([]ActionToken, 0, len(tokens))
	for i, t := range tokens {
		if t == TokenCheck && i > 0 && collapsed[len(collapsed)-1] == TokenCheck {
			continue
		}
		collapsed = append(collapsed, t)
	}
	if len(collapsed) > maxRaiseTowerDepth {
		collapsed = collapsed[len(collapsed)-maxRaiseTowerDepth:]
	}
	var packed int64
	for _, t := range collapsed {
		packed = packed<<3 | int64(t)
	}
	// length prefix so paths whose packed tokens are all zero (TokenCheck),
	// e.g. the empty path and [check], never alias to the same packed value.
	return packed<<8 | int64(len(collapsed))
}

// Encoder is a pure function of a state and the Abstraction Store: it must
// never depend on anything else, so two calls with the same inputs always
// produce the same Key.
type Encoder struct {
	oracle oracle.Oracle
	store  *store.Store
}

// NewEncoder returns an Encoder wired to o and st.
func NewEncoder(o oracle.Oracle, st *store.Store) *Encoder {
	return &Encoder{oracle: o, store: st}
}

// Encode maps state to an InfoSet Key: the acting player's cards abstracted
// via the Store give present_bucket; pastTokens/futureTokens (already
// bucketed by the caller's traversal loop, which knows the real bet sizes
// and pot) give past_path/future_path.
func (e *Encoder) Encode(ctx context.Context, state *oracle.State, isoKey uint64, pastTokens, futureTokens []ActionToken) (Key, error) {
	bucket, ok, err := e.store.GetBucket(ctx, isoKey)
	if err != nil {
		return Key{}, fmt.Errorf("tree: encode: %w", err)
	}
	if !ok {
		return Key{}, fmt.Errorf("tree: encode: no bucket for isomorphism %d", isoKey)
	}
	return Key{
		Past:    compressPath(pastTokens),
		Present: bucket,
		Future:  compressPath(futureTokens),
	}, nil
}

// TokenForEdge exposes the grammar's token mapping so a traversal loop can
// build up past/future token sequences as it walks the tree.
func TokenForEdge(e oracle.Edge, potFraction float64) ActionToken {
	return tokenFor(e, potFraction)
}

// LegalEdges returns the oracle's legal edges at state, the Encoder's
// pass-through to the consumed Oracle interface.
func (e *Encoder) LegalEdges(state *oracle.State) []oracle.Edge {
	return e.oracle.LegalEdges(state)
}
