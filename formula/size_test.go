package formula

import (
	"math"
	"testing"
)

var sampleSizes = []Size{Unbounded, Bounded(0), Bounded(1), Bounded(7), Bounded(1 << 20), Bounded(math.MaxInt)}

func TestSumSize(t *testing.T) {
	tests := []struct {
		name string
		a, b Size
		want Size
	}{
		{"bounded", Bounded(2), Bounded(3), Bounded(5)},
		{"zero", Bounded(0), Bounded(0), Bounded(0)},
		{"unbounded left", Unbounded, Bounded(3), Unbounded},
		{"unbounded right", Bounded(3), Unbounded, Unbounded},
		{"overflow", Bounded(math.MaxInt), Bounded(1), Unbounded},
		{"at limit", Bounded(math.MaxInt - 1), Bounded(1), Bounded(math.MaxInt)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SumSize(tt.a, tt.b); got != tt.want {
				t.Errorf("SumSize(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMaxSize(t *testing.T) {
	tests := []struct {
		name string
		a, b Size
		want Size
	}{
		{"left larger", Bounded(9), Bounded(3), Bounded(9)},
		{"right larger", Bounded(3), Bounded(9), Bounded(9)},
		{"unbounded", Unbounded, Bounded(3), Unbounded},
		{"both unbounded", Unbounded, Unbounded, Unbounded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaxSize(tt.a, tt.b); got != tt.want {
				t.Errorf("MaxSize(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSizeAlgebraLaws(t *testing.T) {
	ops := map[string]func(a, b Size) Size{"sum": SumSize, "max": MaxSize}
	for name, op := range ops {
		for _, a := range sampleSizes {
			if got := op(Unbounded, a); got != Unbounded {
				t.Errorf("%s(unbounded, %v) = %v, want unbounded", name, a, got)
			}
			for _, b := range sampleSizes {
				if op(a, b) != op(b, a) {
					t.Errorf("%s not commutative for %v, %v", name, a, b)
				}
				for _, c := range sampleSizes {
					if op(op(a, b), c) != op(a, op(b, c)) {
						t.Errorf("%s not associative for %v, %v, %v", name, a, b, c)
					}
				}
			}
		}
	}
}

func TestFolds(t *testing.T) {
	if got := SumAll(); got != Bounded(0) {
		t.Errorf("SumAll() = %v, want 0", got)
	}
	if got := SumAll(Bounded(1), Bounded(2), Bounded(4)); got != Bounded(7) {
		t.Errorf("SumAll = %v, want 7", got)
	}
	if got := SumAll(Bounded(1), Unbounded, Bounded(4)); got != Unbounded {
		t.Errorf("SumAll with unbounded = %v, want unbounded", got)
	}
	if got := MaxAll(Bounded(1), Bounded(9), Bounded(4)); got != Bounded(9) {
		t.Errorf("MaxAll = %v, want 9", got)
	}
	if got := MaxAll(); got != Bounded(0) {
		t.Errorf("MaxAll() = %v, want 0", got)
	}
}

func TestSizeAccessors(t *testing.T) {
	if n, ok := Bounded(5).Value(); !ok || n != 5 {
		t.Errorf("Bounded(5).Value() = %d, %v", n, ok)
	}
	if _, ok := Unbounded.Value(); ok {
		t.Error("Unbounded.Value() reported a bound")
	}
	if Unbounded.Or(8) != 8 || Bounded(3).Or(8) != 3 {
		t.Error("Or returned the wrong value")
	}
	if Bounded(-4) != Bounded(0) {
		t.Error("negative bound not clamped")
	}
	if Unbounded.String() != "unbounded" || Bounded(12).String() != "12" {
		t.Errorf("String = %q / %q", Unbounded.String(), Bounded(12).String())
	}
}
