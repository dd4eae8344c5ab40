package abi

import (
	"math"
	"reflect"
)

// Dynamic values arrive from YAML or JSON decoders as int, float64 and
// friends. The coercions below accept any numeric kind, named types
// included, and fail when the value does not convert exactly.

// CoerceToUint64 accepts non-negative integers and whole floats below 2^64.
func CoerceToUint64(value any) (uint64, bool) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if i := rv.Int(); i >= 0 {
			return uint64(i), true
		}
	case reflect.Float32, reflect.Float64:
		if f := rv.Float(); f >= 0 && f < math.Exp2(64) && f == math.Trunc(f) {
			return uint64(f), true
		}
	}
	return 0, false
}

// CoerceToInt64 accepts integers in int64 range and whole floats.
func CoerceToInt64(value any) (int64, bool) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if u := rv.Uint(); u <= math.MaxInt64 {
			return int64(u), true
		}
	case reflect.Float32, reflect.Float64:
		if f := rv.Float(); f >= -math.Exp2(63) && f < math.Exp2(63) && f == math.Trunc(f) {
			return int64(f), true
		}
	}
	return 0, false
}

// CoerceToFloat64 accepts any numeric kind.
func CoerceToFloat64(value any) (float64, bool) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	}
	return 0, false
}

// CoerceToBool accepts bool and the integers 0 and 1.
func CoerceToBool(value any) (bool, bool) {
	if rv := reflect.ValueOf(value); rv.Kind() == reflect.Bool {
		return rv.Bool(), true
	}
	if n, ok := CoerceToUint64(value); ok && n <= 1 {
		return n == 1, true
	}
	return false, false
}
