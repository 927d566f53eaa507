package mapper

import (
	"testing"

	"pgregory.net/rapid"
)

func TestClampByteAlwaysInChannelRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Int().Draw(t, "v")
		got := clampByte(v)
		if got < 0 || got > 255 {
			t.Fatalf("clampByte(%d) = %d, want [0,255]", v, got)
		}
		if v >= 0 && v <= 255 && got != v {
			t.Fatalf("clampByte(%d) = %d, want unchanged", v, got)
		}
	})
}

func TestApplyRangeClampStaysWithinBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lo := rapid.IntRange(0, 255).Draw(t, "lo")
		hi := rapid.IntRange(lo, 255).Draw(t, "hi")
		val := rapid.Int().Draw(t, "val")

		d := Directive{RangeMode: RangeClamp, RangeLo: lo, RangeHi: hi}
		got := applyRange(d, val, 0) // scaleValue unused by RangeClamp
		if got < lo || got > hi {
			t.Fatalf("applyRange(clamp %d..%d, %d) = %d, want within bounds", lo, hi, val, got)
		}
	})
}
