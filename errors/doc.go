// Package errors defines the error type shared by the formula, codec and
// derive packages. An Error carries the Phase that failed, a Kind, the
// field path, the Go type and formula involved, and an optional cause.
//
// Build errors with New:
//
//	err := errors.New(errors.PhaseEncode, errors.KindTypeMismatch).
//		Path("user", "age").
//		GoType("string").
//		Formula("u32").
//		Detail("cannot convert string to integer").
//		Build()
//
// or with a constructor:
//
//	err := errors.UnexpectedEnd(errors.PhaseDecode, path, 8, 3)
//	err := errors.InvalidReference(errors.PhaseDecode, path, off, n, heapLen)
//
// Kind-only sentinels match any phase:
//
//	if errors.Is(err, zcerrors.ErrOutOfSpace) { retry with a larger buffer }
//
package errors
