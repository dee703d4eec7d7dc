package cards

import "testing"

func mustParse(t *testing.T, s string) Card {
	t.Helper()
	c, err := ParseCard(s)
	if err != nil {
		t.Fatalf("ParseCard(%q): %v", s, err)
	}
	return c
}

func hand(t *testing.T, cs ...string) Hand {
	t.Helper()
	out := make([]Card, len(cs))
	for i, s := range cs {
		out[i] = mustParse(t, s)
	}
	return NewHand(out...)
}

func TestEvaluateCategoryOrdering(t *testing.T) {
	cases := []struct {
		name string
		h    Hand
		want HandRank
	}{
		{"high card", hand(t, "2c", "5d", "9h", "Js", "Ac", "3d", "7h"), HighCard},
		{"pair", hand(t, "2c", "2d", "9h", "Js", "Ac", "3d", "7h"), Pair},
		{"two pair", hand(t, "2c", "2d", "9h", "9s", "Ac", "3d", "7h"), TwoPair},
		{"trips", hand(t, "2c", "2d", "2h", "9s", "Ac", "3d", "7h"), ThreeOfAKind},
		{"straight", hand(t, "2c", "3d", "4h", "5s", "6c", "9d", "Kh"), Straight},
		{"wheel straight", hand(t, "Ac", "2d", "3h", "4s", "5c", "9d", "Kh"), Straight},
		{"flush", hand(t, "2c", "5c", "9c", "Jc", "Ac", "3d", "7h"), Flush},
		{"full house", hand(t, "2c", "2d", "2h", "9s", "9c", "3d", "7h"), FullHouse},
		{"quads", hand(t, "2c", "2d", "2h", "2s", "9c", "3d", "7h"), FourOfAKind},
		{"straight flush", hand(t, "2c", "3c", "4c", "5c", "6c", "9d", "Kh"), StraightFlush},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.h).Category()
			if got != tc.want {
				t.Fatalf("got category %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEvaluateHigherCategoryAlwaysWins(t *testing.T) {
	pair := Evaluate(hand(t, "2c", "2d", "9h", "Js", "Ac", "3d", "7h"))
	straight := Evaluate(hand(t, "2c", "3d", "4h", "5s", "6c", "9d", "Kh"))
	if pair.Compare(straight) >= 0 {
		t.Fatalf("pair should lose to straight")
	}
}

func TestEvaluateKickersBreakTies(t *testing.T) {
	acesKingKicker := Evaluate(hand(t, "Ac", "Ad", "Kh", "2s", "3c", "4d", "7h"))
	acesQueenKicker := Evaluate(hand(t, "Ac", "Ad", "Qh", "2s", "3c", "4d", "7h"))
	if acesKingKicker.Compare(acesQueenKicker) <= 0 {
		t.Fatalf("pair of aces with king kicker should beat pair of aces with queen kicker")
	}
}

func TestEvaluateWheelIsLowestStraight(t *testing.T) {
	wheel := Evaluate(hand(t, "Ac", "2d", "3h", "4s", "5c", "9d", "Kh"))
	sixHigh := Evaluate(hand(t, "2c", "3d", "4h", "5s", "6c", "9d", "Kh"))
	if wheel.Compare(sixHigh) >= 0 {
		t.Fatalf("ace-low wheel should lose to a six-high straight")
	}
}

func TestEvaluateStraightFlushBeatsQuads(t *testing.T) {
	quads := Evaluate(hand(t, "2c", "2d", "2h", "2s", "9c", "3d", "7h"))
	sf := Evaluate(hand(t, "2c", "3c", "4c", "5c", "6c", "9d", "Kh"))
	if sf.Compare(quads) <= 0 {
		t.Fatalf("straight flush should beat four of a kind")
	}
}
