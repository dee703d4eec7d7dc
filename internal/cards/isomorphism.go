package cards

import "sort"

// Isomorphism reduces a set of cards to a canonical representative under
// suit permutation: two hands that differ only by relabeling suits collapse
// to the same key, which is what lets the Preflop street collapse to 169
// classes and each later street collapse by its own combinatorial factor.
//
// The canonical form relabels suits by first-appearance order scanning
// cards highest-rank-first, breaking rank ties by each suit's full rank
// pattern, so "which suit is which" never affects the result — only the
// pattern of suit repetition does.
type Isomorphism struct {
	Canonical Hand
	key       uint64
}

// Canonicalize computes the suit-isomorphic representative of the given
// cards. Cards must all be distinct; order does not matter.
func Canonicalize(cs []Card) Isomorphism {
	ordered := make([]Card, len(cs))
	copy(ordered, cs)
	var suitMasks [4]uint16
	for _, c := range cs {
		suitMasks[c.Suit()] |= 1 << c.Rank()
	}
	sort.Slice(ordered, func(i, j int) bool {
		ri, rj := ordered[i].Rank(), ordered[j].Rank()
		if ri != rj {
			return ri > rj
		}
		mi, mj := suitMasks[ordered[i].Suit()], suitMasks[ordered[j].Suit()]
		if mi != mj {
			return mi > mj
		}
		return ordered[i].Suit() < ordered[j].Suit()
	})

	relabel := map[uint8]uint8{}
	next := uint8(0)
	canon := make([]Card, len(ordered))
	for i, c := range ordered {
		suit, ok := relabel[c.Suit()]
		if !ok {
			suit = next
			relabel[c.Suit()] = suit
			next++
		}
		canon[i] = NewCard(c.Rank(), suit)
	}

	var h Hand
	for _, c := range canon {
		h.AddCard(c)
	}
	return Isomorphism{Canonical: h, key: isoKey(canon)}
}

// isoKey produces a stable, order-independent uint64 identity for a
// canonicalized card set, used as the enumeration's map/store key.
func isoKey(canon []Card) uint64 {
	var h Hand
	for _, c := range canon {
		h.AddCard(c)
	}
	return uint64(h)
}

// Key returns the stable identity used to deduplicate isomorphism classes
// during street enumeration.
func (iso Isomorphism) Key() uint64 { return iso.key }
