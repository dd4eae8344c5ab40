package abi

import (
	"math"
	"testing"
)

func TestSafeMul(t *testing.T) {
	tests := []struct {
		name   string
		a, b   int
		want   int
		wantOK bool
	}{
		{"zero * zero", 0, 0, 0, true},
		{"zero * max", 0, math.MaxInt, 0, true},
		{"small * small", 100, 200, 20000, true},
		{"max * one", math.MaxInt, 1, math.MaxInt, true},
		{"overflow", math.MaxInt, 2, 0, false},
		{"overflow symmetric", 2, math.MaxInt, 0, false},
		{"negative", -1, 2, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SafeMul(tt.a, tt.b)
			if ok != tt.wantOK {
				t.Errorf("SafeMul(%d, %d) ok = %v, want %v", tt.a, tt.b, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("SafeMul(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSafeAdd(t *testing.T) {
	if got, ok := SafeAdd(2, 3); !ok || got != 5 {
		t.Errorf("SafeAdd(2, 3) = %d, %v", got, ok)
	}
	if _, ok := SafeAdd(math.MaxInt, 1); ok {
		t.Error("SafeAdd(MaxInt, 1) did not report overflow")
	}
}

func TestTypeName(t *testing.T) {
	if got := TypeName(nil); got != "nil" {
		t.Errorf("TypeName(nil) = %q, want nil", got)
	}
	if got := TypeName(uint16(1)); got != "uint16" {
		t.Errorf("TypeName(uint16) = %q, want uint16", got)
	}
}

func TestDiscriminantSize(t *testing.T) {
	tests := []struct {
		cases int
		open  bool
		want  int
	}{
		{0, false, 1},
		{2, false, 1},
		{256, false, 1},
		{257, false, 2},
		{65536, false, 2},
		{65537, false, 4},
		{2, true, 4},
	}

	for _, tt := range tests {
		if got := DiscriminantSize(tt.cases, tt.open); got != tt.want {
			t.Errorf("DiscriminantSize(%d, %v) = %d, want %d", tt.cases, tt.open, got, tt.want)
		}
	}
}

func TestFits(t *testing.T) {
	if !FitsUnsigned(255, 1) || FitsUnsigned(256, 1) {
		t.Error("FitsUnsigned u8 boundary")
	}
	if !FitsUnsigned(math.MaxUint64, 8) {
		t.Error("FitsUnsigned u64")
	}
	if !FitsSigned(-128, 1) || FitsSigned(-129, 1) || FitsSigned(128, 1) {
		t.Error("FitsSigned i8 boundary")
	}
	if !FitsSigned(math.MinInt64, 8) {
		t.Error("FitsSigned i64")
	}
}
