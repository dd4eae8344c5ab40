// Package formula describes the wire shape of values.
//
// A Formula is an immutable schema descriptor. It never holds data; it only
// parameterizes encoding and decoding in the codec package. Every formula
// declares a Contract:
//
//   - MaxStackSize: upper bound on stack bytes, or Unbounded
//   - ExactSize: the bound is always met exactly
//   - Heapless: nothing is ever written to the heap region
//
// Aggregate bounds come from the size algebra: a struct sums its fields with
// SumSize, an enum adds its discriminant to the MaxSize of its variants, and
// Unbounded absorbs both. Open (non-exhaustive) aggregates are Unbounded so
// that fields or variants can be appended without changing old readers.
//
// # Building formulas
//
//	point := formula.Struct("Point",
//		formula.F("x", formula.I32),
//		formula.F("y", formula.I32),
//	)
//	path := formula.List(point)
//
// Or from text:
//
//	f, err := formula.Parse("struct Point { x: i32, y: i32 }")
//
// Call Check before use to reject shapes that cannot be encoded.
package formula
