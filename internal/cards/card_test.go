package cards

import (
	"math/rand"
	"testing"
)

func TestParseCardRoundTrip(t *testing.T) {
	for _, s := range []string{"As", "Td", "2c", "Kh", "9s"} {
		c, err := ParseCard(s)
		if err != nil {
			t.Fatalf("ParseCard(%q): %v", s, err)
		}
		if got := c.String(); got != s {
			t.Fatalf("round trip: ParseCard(%q).String() = %q", s, got)
		}
	}
}

func TestParseCardRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "A", "Ax", "1s", "Zz"} {
		if _, err := ParseCard(s); err == nil {
			t.Fatalf("ParseCard(%q) should have failed", s)
		}
	}
}

func TestHandMembership(t *testing.T) {
	ac := mustParseCard(t, "Ac")
	kh := mustParseCard(t, "Kh")
	h := NewHand(ac)
	if !h.HasCard(ac) {
		t.Fatal("hand should contain the card it was built from")
	}
	if h.HasCard(kh) {
		t.Fatal("hand should not contain an unrelated card")
	}
	h.AddCard(kh)
	if h.CountCards() != 2 {
		t.Fatalf("CountCards() = %d, want 2", h.CountCards())
	}
}

func TestDeckDealsEveryCardExactlyOnce(t *testing.T) {
	deck := NewDeck(rand.New(rand.NewSource(1)))
	seen := make(map[Card]bool)
	for deck.Remaining() > 0 {
		for _, c := range deck.Deal(1) {
			if seen[c] {
				t.Fatalf("card %v dealt twice", c)
			}
			seen[c] = true
		}
	}
	if len(seen) != 52 {
		t.Fatalf("dealt %d distinct cards, want 52", len(seen))
	}
}

func TestDeckDealReturnsNilWhenShort(t *testing.T) {
	deck := NewDeck(rand.New(rand.NewSource(1)))
	deck.Deal(52)
	if got := deck.Deal(1); got != nil {
		t.Fatalf("Deal past the end of the deck returned %v, want nil", got)
	}
}

func mustParseCard(t *testing.T, s string) Card {
	t.Helper()
	c, err := ParseCard(s)
	if err != nil {
		t.Fatalf("ParseCard(%q): %v", s, err)
	}
	return c
}
