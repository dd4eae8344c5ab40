package codec

import (
	"reflect"

	"github.com/wippyai/zerocopy/formula"
)

// bind says how a plan maps its formula onto the Go type.
type bind uint8

const (
	bindNative      bind = iota // the natural Go shape of the formula
	bindAny                     // interface value, see dynamic.go
	bindMarshal                 // Marshaler / Unmarshaler
	bindPointer                 // non-option pointer, followed transparently
	bindBytesString             // Bytes formula on a Go string
	bindArraySlice              // Array formula on a Go slice
	bindEnumInt                 // field-less enum on a Go integer
	bindEnumPtrs                // enum on a struct with one pointer per variant
	bindEnumVariant             // enum on codec.Variant
)

var bindNames = [...]string{
	bindNative:      "native",
	bindAny:         "any",
	bindMarshal:     "marshal",
	bindPointer:     "pointer",
	bindBytesString: "bytes-string",
	bindArraySlice:  "array-slice",
	bindEnumInt:     "enum-int",
	bindEnumPtrs:    "enum-ptrs",
	bindEnumVariant: "enum-variant",
}

func (b bind) String() string {
	if int(b) < len(bindNames) {
		return bindNames[b]
	}
	return "unknown"
}

// plan is a formula compiled against one Go type.
type plan struct {
	f *formula.Formula
	// payload is the formula a reference of this kind addresses.
	payload *formula.Formula
	goType  reflect.Type
	// elem: Ref, Option, Slice, Array, List, Deque and pointer targets;
	// the value plan of a Map.
	elem   *plan
	key    *plan
	fields []planField
	cases  []planCase
	bind   bind
}

type planField struct {
	plan  *plan
	name  string
	index int // Go struct field index
}

// planCase binds the fields of one enum variant, laid out as a closed struct.
type planCase struct {
	plan  *plan
	name  string
	index int // Go struct field index for bindEnumPtrs
}

// byteElems reports a sequence of u8 over a Go byte slice or array,
// which is copied whole instead of element by element.
func (p *plan) byteElems() bool {
	return p.elem != nil && p.elem.bind == bindNative &&
		p.elem.f.Kind() == formula.KindU8 && p.elem.goType.Kind() == reflect.Uint8
}

func (p *plan) String() string {
	return p.f.String() + " as " + p.goType.String() + " (" + p.bind.String() + ")"
}
