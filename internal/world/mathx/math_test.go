package mathx

import "testing"

func TestFloorDivMod(t *testing.T) {
	cases := []struct{ a, b, q, m int }{
		{0, 16, 0, 0},
		{15, 16, 0, 15},
		{16, 16, 1, 0},
		{-1, 16, -1, 15},
		{-16, 16, -1, 0},
		{-17, 16, -2, 15},
	}
	for _, c := range cases {
		if got := FloorDiv(c.a, c.b); got != c.q {
			t.Fatalf("FloorDiv(%d,%d)=%d want %d", c.a, c.b, got, c.q)
		}
		if got := Mod(c.a, c.b); got != c.m {
			t.Fatalf("Mod(%d,%d)=%d want %d", c.a, c.b, got, c.m)
		}
	}
}

func TestHash2Stable(t *testing.T) {
	a := Hash2(42, 10, -7)
	b := Hash2(42, 10, -7)
	if a != b {
		t.Fatalf("Hash2 not stable: %d vs %d", a, b)
	}
	if Hash2(42, 10, -7) == Hash2(43, 10, -7) {
		t.Fatalf("seed change did not alter hash")
	}
	if Hash2(42, 10, -7) == Hash2(42, -7, 10) {
		t.Fatalf("coordinate swap collided")
	}
}

func TestHashStringStable(t *testing.T) {
	if HashString("catalog_main") != HashString("catalog_main") {
		t.Fatalf("HashString not stable")
	}
	if HashString("a") == HashString("b") {
		t.Fatalf("trivial collision")
	}
}

func TestChebyshev(t *testing.T) {
	if d := Chebyshev(0, 0, 3, -5); d != 5 {
		t.Fatalf("Chebyshev=%d want 5", d)
	}
}
