package mathx

import "testing"

func TestRoundHalfAwayFromZero(t *testing.T) {
	cases := map[float64]int{
		0.5:   1,
		-0.5:  -1,
		1.5:   2,
		2.5:   3,
		-2.5:  -3,
		0.49:  0,
		-0.49: 0,
	}
	for in, want := range cases {
		if got := Round(in); got != want {
			t.Fatalf("Round(%v)=%d want %d", in, got, want)
		}
	}
}

func TestSplitMixDeterministicAndInRange(t *testing.T) {
	a := NewSplitMix(7)
	b := NewSplitMix(7)
	for i := 0; i < 1000; i++ {
		x := a.Float64()
		y := b.Float64()
		if x != y {
			t.Fatalf("draw %d differs: %v vs %v", i, x, y)
		}
		if x < 0 || x >= 1 {
			t.Fatalf("draw %d out of range: %v", i, x)
		}
	}
}
