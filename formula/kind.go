package formula

type Kind uint8

const (
	KindUnit Kind = iota
	KindBool
	KindU8
	KindI8
	KindU16
	KindI16
	KindU32
	KindI32
	KindU64
	KindI64
	KindF32
	KindF64
	KindBytes
	KindString
	KindRef
	KindSlice
	KindArray
	KindList
	KindDeque
	KindMap
	KindOption
	KindTuple
	KindStruct
	KindEnum
)

var kindNames = [...]string{
	KindUnit:   "unit",
	KindBool:   "bool",
	KindU8:     "u8",
	KindI8:     "i8",
	KindU16:    "u16",
	KindI16:    "i16",
	KindU32:    "u32",
	KindI32:    "i32",
	KindU64:    "u64",
	KindI64:    "i64",
	KindF32:    "f32",
	KindF64:    "f64",
	KindBytes:  "bytes",
	KindString: "string",
	KindRef:    "ref",
	KindSlice:  "slice",
	KindArray:  "array",
	KindList:   "list",
	KindDeque:  "deque",
	KindMap:    "map",
	KindOption: "option",
	KindTuple:  "tuple",
	KindStruct: "struct",
	KindEnum:   "enum",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsPrimitive reports fixed-width scalar kinds, unit included.
func (k Kind) IsPrimitive() bool {
	return k <= KindF64
}

func (k Kind) IsInteger() bool {
	return k >= KindU8 && k <= KindI64
}

func (k Kind) IsSigned() bool {
	switch k {
	case KindI8, KindI16, KindI32, KindI64:
		return true
	}
	return false
}

func (k Kind) IsFloat() bool {
	return k == KindF32 || k == KindF64
}

// IsSequence reports kinds whose payload is a run of elements.
func (k Kind) IsSequence() bool {
	switch k {
	case KindSlice, KindArray, KindList, KindDeque:
		return true
	}
	return false
}

// Width returns the byte width of primitive kinds, 0 otherwise.
func (k Kind) Width() int {
	switch k {
	case KindBool, KindU8, KindI8:
		return 1
	case KindU16, KindI16:
		return 2
	case KindU32, KindI32, KindF32:
		return 4
	case KindU64, KindI64, KindF64:
		return 8
	}
	return 0
}
