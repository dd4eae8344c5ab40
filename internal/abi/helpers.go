package abi

import (
	"math"
	"reflect"
)

// ReferenceSize is the wire width of a reference: u32 offset then u32 length.
const ReferenceSize = 8

const (
	MaxStringSize = 1 << 30 // 1 GB max string size
	MaxListLength = 1 << 27 // 128M max elements
	MaxDepth      = 128
)

// SafeMul multiplies non-negative ints, reporting overflow.
func SafeMul(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if b != 0 && a > math.MaxInt/b {
		return 0, false
	}
	return a * b, true
}

// SafeAdd adds non-negative ints, reporting overflow.
func SafeAdd(a, b int) (int, bool) {
	if a < 0 || b < 0 || a > math.MaxInt-b {
		return 0, false
	}
	return a + b, true
}

// TypeName returns "nil" for nil values, avoiding reflect.TypeOf(nil) panic.
func TypeName(value any) string {
	if value == nil {
		return "nil"
	}
	return reflect.TypeOf(value).String()
}

// DiscriminantSize: 1 byte for <=256 cases, 2 for <=65536, else 4.
// Open enums always use 4 so that appended variants keep the width.
func DiscriminantSize(numCases int, open bool) int {
	if open {
		return 4
	}
	if numCases <= 256 {
		return 1
	} else if numCases <= 65536 {
		return 2
	}
	return 4
}

// FitsUnsigned reports whether v fits in an unsigned integer of the given width.
func FitsUnsigned(v uint64, bytes int) bool {
	if bytes >= 8 {
		return true
	}
	return v < 1<<(uint(bytes)*8)
}

// FitsSigned reports whether v fits in a signed integer of the given width.
func FitsSigned(v int64, bytes int) bool {
	if bytes >= 8 {
		return true
	}
	bits := uint(bytes) * 8
	lo := -int64(1) << (bits - 1)
	hi := int64(1)<<(bits-1) - 1
	return v >= lo && v <= hi
}
