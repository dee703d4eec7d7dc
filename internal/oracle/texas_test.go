package oracle

import (
	"context"
	"math/rand"
	"testing"

	"github.com/lox/blueprint/internal/cards"
)

func newHeadsUpOracle() *TexasOracle {
	return NewTexasOracle(1, 2, 200)
}

func TestInitialStatePostsBlindsAndSetsActor(t *testing.T) {
	o := newHeadsUpOracle()
	rng := rand.New(rand.NewSource(1))
	state, err := o.InitialState(rng, 2)
	if err != nil {
		t.Fatalf("InitialState: %v", err)
	}
	if state.Contributed[0] != 1 || state.Contributed[1] != 2 {
		t.Fatalf("blinds = %v, want [1 2]", state.Contributed)
	}
	if state.Pot != 3 {
		t.Fatalf("pot = %d, want 3", state.Pot)
	}
	// Heads-up: the small blind (seat 0) acts first preflop.
	if state.ActingSeat != 0 {
		t.Fatalf("acting seat = %d, want 0", state.ActingSeat)
	}
	if state.ToCall != 1 {
		t.Fatalf("ToCall = %d, want 1", state.ToCall)
	}
}

func TestInitialStateRejectsFewerThanTwoPlayers(t *testing.T) {
	o := newHeadsUpOracle()
	if _, err := o.InitialState(rand.New(rand.NewSource(1)), 1); err == nil {
		t.Fatal("InitialState with 1 player should fail")
	}
}

func TestLegalEdgesOffersCheckWhenNothingToCall(t *testing.T) {
	o := newHeadsUpOracle()
	state := &State{
		ActingSeat:  0,
		Contributed: []int{2, 2},
		Pot:         4,
		ToCall:      0,
		Folded:      []bool{false, false},
	}
	edges := o.LegalEdges(state)
	if len(edges) == 0 || edges[0].Kind != EdgeCheck {
		t.Fatalf("expected check as first edge, got %v", edges)
	}
	for _, e := range edges {
		if e.Kind == EdgeFold {
			t.Fatal("fold should not be legal with nothing to call")
		}
	}
}

func TestLegalEdgesOffersFoldAndCallWhenFacingABet(t *testing.T) {
	o := newHeadsUpOracle()
	state := &State{
		ActingSeat:  0,
		Contributed: []int{1, 2},
		Pot:         3,
		ToCall:      1,
		Folded:      []bool{false, false},
	}
	edges := o.LegalEdges(state)
	if edges[0].Kind != EdgeFold {
		t.Fatalf("expected fold as first edge, got %v", edges[0])
	}
	if edges[1].Kind != EdgeCall || edges[1].Amount != 2 {
		t.Fatalf("expected call to 2, got %v", edges[1])
	}
}

func TestLegalEdgesOffersAllInWhenShortStacked(t *testing.T) {
	o := NewTexasOracle(1, 2, 3)
	state := &State{
		ActingSeat:  0,
		Contributed: []int{1, 2},
		Pot:         3,
		ToCall:      1,
		Folded:      []bool{false, false},
	}
	edges := o.LegalEdges(state)
	last := edges[len(edges)-1]
	if last.Kind != EdgeAllIn || last.Amount != 3 {
		t.Fatalf("expected all-in to 3 as the last edge, got %v", last)
	}
}

func TestApplyFoldEndsHandImmediately(t *testing.T) {
	o := newHeadsUpOracle()
	state := &State{
		ActingSeat:  0,
		Contributed: []int{1, 2},
		Pot:         3,
		ToCall:      1,
		Folded:      []bool{false, false},
		Acted:       []bool{false, false},
	}
	next, err := o.Apply(context.Background(), state, 0, Edge{Kind: EdgeFold}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !next.Terminal {
		t.Fatal("hand should be terminal after the only live opponent is left")
	}
	if !next.Folded[0] {
		t.Fatal("folding seat should be marked folded")
	}
}

func TestApplyKeepsActionOpenUntilEveryLiveSeatHasActed(t *testing.T) {
	o := newHeadsUpOracle()
	state := &State{
		Street:      Preflop,
		ActingSeat:  0,
		Hole:        [][]cards.Card{{cards.NewCard(cards.Two, cards.Clubs), cards.NewCard(cards.Three, cards.Clubs)}, {cards.NewCard(cards.Four, cards.Diamonds), cards.NewCard(cards.Five, cards.Diamonds)}},
		Contributed: []int{1, 2},
		Pot:         3,
		ToCall:      1,
		Folded:      []bool{false, false},
		Acted:       []bool{false, false},
	}
	rng := rand.New(rand.NewSource(1))
	afterCall, err := o.Apply(context.Background(), state, 0, Edge{Kind: EdgeCall, Amount: 2}, rng)
	if err != nil {
		t.Fatalf("Apply (call): %v", err)
	}
	// The big blind still holds the option even though contributions are
	// already matched, so the round must not close yet.
	if afterCall.Street != Preflop || afterCall.Terminal {
		t.Fatalf("round should stay open for the big blind's option, got street=%v terminal=%v", afterCall.Street, afterCall.Terminal)
	}
	if afterCall.ActingSeat != 1 {
		t.Fatalf("acting seat = %d, want 1 (big blind's option)", afterCall.ActingSeat)
	}
}

func TestApplyAdvancesStreetWhenRoundCloses(t *testing.T) {
	o := newHeadsUpOracle()
	state := &State{
		Street:      Preflop,
		ActingSeat:  0,
		Hole:        [][]cards.Card{{cards.NewCard(cards.Two, cards.Clubs), cards.NewCard(cards.Three, cards.Clubs)}, {cards.NewCard(cards.Four, cards.Diamonds), cards.NewCard(cards.Five, cards.Diamonds)}},
		Contributed: []int{1, 2},
		Pot:         3,
		ToCall:      1,
		Folded:      []bool{false, false},
		Acted:       []bool{false, false},
	}
	rng := rand.New(rand.NewSource(1))
	afterCall, err := o.Apply(context.Background(), state, 0, Edge{Kind: EdgeCall, Amount: 2}, rng)
	if err != nil {
		t.Fatalf("Apply (call): %v", err)
	}
	afterCheck, err := o.Apply(context.Background(), afterCall, 1, Edge{Kind: EdgeCheck}, rng)
	if err != nil {
		t.Fatalf("Apply (check): %v", err)
	}
	if afterCheck.Street != Flop {
		t.Fatalf("street = %v, want Flop once both seats have acted and matched", afterCheck.Street)
	}
	if len(afterCheck.Board) != 3 {
		t.Fatalf("board has %d cards, want 3 on the flop", len(afterCheck.Board))
	}
	if afterCheck.ToCall != 0 {
		t.Fatalf("ToCall = %d, want 0 at the start of a new street", afterCheck.ToCall)
	}
}

func TestUtilityUncontestedPotGoesToSoleSurvivor(t *testing.T) {
	o := newHeadsUpOracle()
	state := &State{
		Pot:         10,
		Contributed: []int{4, 6},
		Folded:      []bool{true, false},
	}
	if u := o.Utility(state, 1); u != 4 {
		t.Fatalf("winner utility = %v, want 4 (pot minus own contribution)", u)
	}
	if u := o.Utility(state, 0); u != -4 {
		t.Fatalf("folder utility = %v, want -4 (lost contribution)", u)
	}
}

func TestUtilitySplitsPotOnTiedShowdown(t *testing.T) {
	o := newHeadsUpOracle()
	board := []cards.Card{
		cards.NewCard(cards.Two, cards.Spades), cards.NewCard(cards.Seven, cards.Hearts), cards.NewCard(cards.Nine, cards.Diamonds),
		cards.NewCard(cards.Jack, cards.Clubs), cards.NewCard(cards.King, cards.Spades),
	}
	state := &State{
		Pot:         20,
		Contributed: []int{10, 10},
		Folded:      []bool{false, false},
		Board:       board,
		Hole: [][]cards.Card{
			{cards.NewCard(cards.Three, cards.Clubs), cards.NewCard(cards.Four, cards.Clubs)},
			{cards.NewCard(cards.Three, cards.Diamonds), cards.NewCard(cards.Four, cards.Diamonds)},
		},
	}
	if u := o.Utility(state, 0); u != 0 {
		t.Fatalf("tied showdown utility = %v, want 0 (split pot exactly recovers contribution)", u)
	}
	if u := o.Utility(state, 1); u != 0 {
		t.Fatalf("tied showdown utility = %v, want 0 (split pot exactly recovers contribution)", u)
	}
}

func TestIsoIterPreflopProducesExactlyCanonicalHoleClasses(t *testing.T) {
	o := newHeadsUpOracle()
	ch, err := o.IsoIter(context.Background(), Preflop)
	if err != nil {
		t.Fatalf("IsoIter: %v", err)
	}
	count := 0
	for range ch {
		count++
	}
	// 13 pairs + C(13,2) suited + C(13,2) offsuit = 13 + 78 + 78 = 169.
	if count != 169 {
		t.Fatalf("preflop isomorphism classes = %d, want 169", count)
	}
}

func TestChildrenOfRiverIsoIsEmpty(t *testing.T) {
	o := newHeadsUpOracle()
	riverIso := Iso{
		Street: River,
		Hole:   cards.NewHand(cards.NewCard(cards.Ace, cards.Clubs), cards.NewCard(cards.King, cards.Clubs)),
		Board: cards.NewHand(
			cards.NewCard(cards.Two, cards.Diamonds), cards.NewCard(cards.Three, cards.Hearts), cards.NewCard(cards.Four, cards.Spades),
			cards.NewCard(cards.Five, cards.Clubs), cards.NewCard(cards.Six, cards.Diamonds),
		),
	}
	ch, err := o.Children(context.Background(), riverIso)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	for range ch {
		t.Fatal("river isomorphisms should have no children")
	}
}
