package formula

import (
	"math"
	"strconv"
)

// Size is an upper bound on stack bytes, or Unbounded when the footprint
// depends on the data.
type Size struct {
	n       int
	bounded bool
}

// Unbounded is the absorbing element of SumSize and MaxSize.
var Unbounded = Size{}

// Bounded returns the bound n. Negative n is treated as zero.
func Bounded(n int) Size {
	if n < 0 {
		n = 0
	}
	return Size{n: n, bounded: true}
}

func (s Size) IsBounded() bool {
	return s.bounded
}

// Value returns the bound and whether it exists.
func (s Size) Value() (int, bool) {
	return s.n, s.bounded
}

// Or returns the bound, or def when unbounded.
func (s Size) Or(def int) int {
	if !s.bounded {
		return def
	}
	return s.n
}

func (s Size) String() string {
	if !s.bounded {
		return "unbounded"
	}
	return strconv.Itoa(s.n)
}

// SumSize adds two bounds. A sum past math.MaxInt is Unbounded.
func SumSize(a, b Size) Size {
	if !a.bounded || !b.bounded {
		return Unbounded
	}
	if a.n > math.MaxInt-b.n {
		return Unbounded
	}
	return Bounded(a.n + b.n)
}

// MaxSize returns the larger of two bounds.
func MaxSize(a, b Size) Size {
	if !a.bounded || !b.bounded {
		return Unbounded
	}
	if a.n >= b.n {
		return a
	}
	return b
}

// SumAll folds SumSize left to right starting from Bounded(0).
func SumAll(sizes ...Size) Size {
	acc := Bounded(0)
	for _, s := range sizes {
		acc = SumSize(acc, s)
	}
	return acc
}

// MaxAll folds MaxSize starting from Bounded(0).
func MaxAll(sizes ...Size) Size {
	acc := Bounded(0)
	for _, s := range sizes {
		acc = MaxSize(acc, s)
	}
	return acc
}
