package question

import (
	"math"
	"testing"
)

func TestJaccard(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "supply and demand", "supply and demand", 1},
		{"reordered", "demand and supply", "supply and demand", 1},
		{"disjoint", "photosynthesis chlorophyll", "interest rates bonds", 0},
		{"both empty", "", "", 0},
		{"one empty", "supply and demand", "", 0},
		{"only stopword-length tokens", "a an of", "a an of", 0},
		{"half overlap", "alpha beta gamma", "alpha beta delta", 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Jaccard(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("Jaccard(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestJaccardIsSymmetric(t *testing.T) {
	a := "the merger wave of the nineties"
	b := "what drove merger activity in that decade"
	if Jaccard(a, b) != Jaccard(b, a) {
		t.Fatalf("Jaccard must be symmetric")
	}
}

func TestTokensDropShortAndCase(t *testing.T) {
	got := Tokens("The FX market is THE most liquid")
	want := []string{"the", "market", "the", "most", "liquid"}
	if len(got) != len(want) {
		t.Fatalf("tokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tokens = %v, want %v", got, want)
		}
	}
}

func TestTokensKeepContractions(t *testing.T) {
	got := Tokens("the firm's balance")
	if len(got) != 3 || got[1] != "firm's" {
		t.Fatalf("tokens = %v, want contraction kept whole", got)
	}
}

func TestOverlapRatio(t *testing.T) {
	// 2 of the 3 significant tokens of a appear in b.
	a := "alpha beta gamma"
	b := "alpha beta delta epsilon"
	if got := OverlapRatio(a, b); math.Abs(got-2.0/3.0) > 1e-9 {
		t.Fatalf("OverlapRatio = %v, want 2/3", got)
	}
	if got := OverlapRatio("", b); got != 0 {
		t.Fatalf("OverlapRatio with empty a = %v, want 0", got)
	}
}
