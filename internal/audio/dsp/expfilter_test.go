package dsp

import "testing"

func approxEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}

func TestExpFilterScalarScenario(t *testing.T) {
	f := NewExpFilter(0, 0.5, 0.1, 1)

	want := []float64{0.5, 0.75, 0.875}
	for i, w := range want {
		got := f.UpdateScalar(1)
		if !approxEqual(got, w) {
			t.Fatalf("update %d: got %v, want %v", i, got, w)
		}
	}

	if got := f.UpdateScalar(0); !approxEqual(got, 0.7875) {
		t.Errorf("final decay update = %v, want 0.7875", got)
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	cases := map[int]int{1: 1, 2: 2, 3: 4, 5: 8, 1024: 1024, 1025: 2048}
	for in, want := range cases {
		if got := NextPowerOfTwo(in); got != want {
			t.Errorf("NextPowerOfTwo(%d) = %d, want %d", in, got, want)
		}
	}
}
