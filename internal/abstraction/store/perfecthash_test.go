package store

import "testing"

func TestFreezeLookupResolvesEveryRow(t *testing.T) {
	rows := []LookupRow{
		{Obs: 10, Abs: 100},
		{Obs: 20, Abs: 200},
		{Obs: 30, Abs: 300},
	}
	pl, err := FreezeLookup(rows)
	if err != nil {
		t.Fatalf("FreezeLookup: %v", err)
	}
	for _, r := range rows {
		got, ok := pl.Get(r.Obs)
		if !ok {
			t.Fatalf("Get(%d) missed, want a hit resolving to %d", r.Obs, r.Abs)
		}
		if got != r.Abs {
			t.Fatalf("Get(%d) = %d, want %d", r.Obs, got, r.Abs)
		}
	}
}

func TestFreezeLookupOnASingleRow(t *testing.T) {
	pl, err := FreezeLookup([]LookupRow{{Obs: 7, Abs: 77}})
	if err != nil {
		t.Fatalf("FreezeLookup: %v", err)
	}
	got, ok := pl.Get(7)
	if !ok || got != 77 {
		t.Fatalf("Get(7) = (%d, %v), want (77, true)", got, ok)
	}
}
