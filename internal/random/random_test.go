package random

import "testing"

func TestSeedValueIsStableAndLabelled(t *testing.T) {
	if SeedValue("root", "a") != SeedValue("root", "a") {
		t.Fatalf("seed must be deterministic")
	}
	if SeedValue("root", "a") == SeedValue("root", "b") {
		t.Fatalf("labels must yield distinct seeds")
	}
}

func TestBetweenStaysInBounds(t *testing.T) {
	rng := New("", "between")
	for i := 0; i < 1000; i++ {
		v := Between(rng, 0.4, 0.6)
		if v < 0.4 || v > 0.6 {
			t.Fatalf("value %v escaped [0.4, 0.6]", v)
		}
	}
	if got := Between(rng, 0.5, 0.5); got != 0.5 {
		t.Fatalf("degenerate range should return lo, got %v", got)
	}
	if got := Between(nil, 1, 0); got != 1 {
		t.Fatalf("inverted range should return lo, got %v", got)
	}
}
