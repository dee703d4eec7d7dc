package oracle

import "github.com/lox/blueprint/internal/cards"

// fullDeck returns the 52 cards in fixed rank/suit order, used as the base
// pool for isomorphism enumeration.
func fullDeck() []cards.Card {
	out := make([]cards.Card, 0, 52)
	for suit := uint8(0); suit < 4; suit++ {
		for rank := uint8(0); rank < 13; rank++ {
			out = append(out, cards.NewCard(rank, suit))
		}
	}
	return out
}

// handToCards expands a bitset hand back into its member cards.
func handToCards(h cards.Hand) []cards.Card {
	n := h.CountCards()
	out := make([]cards.Card, n)
	for i := 0; i < n; i++ {
		out[i] = h.GetCard(i)
	}
	return out
}

// remainingCards returns the cards not already present in used, in fixed
// deck order.
func remainingCards(used cards.Hand) []cards.Card {
	out := make([]cards.Card, 0, 52-used.CountCards())
	for _, c := range fullDeck() {
		if !used.HasCard(c) {
			out = append(out, c)
		}
	}
	return out
}

// forEachCombination calls fn with every k-combination of pool, in
// lexicographic index order, stopping early if fn returns false.
func forEachCombination(pool []cards.Card, k int, fn func([]cards.Card) bool) {
	n := len(pool)
	if k <= 0 || k > n {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	combo := make([]cards.Card, k)
	for {
		for i, p := range idx {
			combo[i] = pool[p]
		}
		if !fn(combo) {
			return
		}
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// canonicalKey canonicalizes the cards in h and returns the class id.
func canonicalKey(h cards.Hand) uint64 {
	return cards.Canonicalize(handToCards(h)).Key()
}
