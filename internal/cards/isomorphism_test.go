package cards

import "testing"

func TestCanonicalizeCollapsesSuitPermutations(t *testing.T) {
	a := []Card{mustParseCard(t, "Ac"), mustParseCard(t, "Kc")}
	b := []Card{mustParseCard(t, "Ad"), mustParseCard(t, "Kd")}
	if Canonicalize(a).Key() != Canonicalize(b).Key() {
		t.Fatal("suited ace-king should canonicalize identically regardless of suit")
	}
}

func TestCanonicalizeDistinguishesSuitedFromOffsuit(t *testing.T) {
	suited := []Card{mustParseCard(t, "Ac"), mustParseCard(t, "Kc")}
	offsuit := []Card{mustParseCard(t, "Ac"), mustParseCard(t, "Kd")}
	if Canonicalize(suited).Key() == Canonicalize(offsuit).Key() {
		t.Fatal("suited and offsuit ace-king must canonicalize differently")
	}
}

func TestCanonicalizeDistinguishesDifferentRanks(t *testing.T) {
	ak := []Card{mustParseCard(t, "Ac"), mustParseCard(t, "Kd")}
	aq := []Card{mustParseCard(t, "Ac"), mustParseCard(t, "Qd")}
	if Canonicalize(ak).Key() == Canonicalize(aq).Key() {
		t.Fatal("ace-king and ace-queen must canonicalize differently")
	}
}

func TestCanonicalizeIsOrderIndependent(t *testing.T) {
	first := []Card{mustParseCard(t, "7h"), mustParseCard(t, "2c")}
	second := []Card{mustParseCard(t, "2c"), mustParseCard(t, "7h")}
	if Canonicalize(first).Key() != Canonicalize(second).Key() {
		t.Fatal("canonicalization must not depend on input order")
	}
}
