package formula

import (
	"strconv"

	"github.com/wippyai/zerocopy/internal/abi"
)

// ReferenceSize is the stack footprint of a reference.
const ReferenceSize = abi.ReferenceSize

// Contract is what every encodable shape declares about its stack footprint.
type Contract interface {
	// MaxStackSize is the upper bound on stack bytes, or Unbounded.
	MaxStackSize() Size
	// ExactSize reports that exactly MaxStackSize bytes are always written.
	ExactSize() bool
	// Heapless reports that the heap region is never written.
	Heapless() bool
}

// Field is a named member of a struct, tuple or enum variant.
type Field struct {
	Formula *Formula
	Name    string
}

// Variant is one alternative of an enum.
type Variant struct {
	Name   string
	Fields []Field
}

// Formula is an immutable schema descriptor. Build it with the package
// constructors; the zero value is not usable.
type Formula struct {
	elem     *Formula
	key      *Formula
	name     string
	fields   []Field
	variants []Variant
	max      Size
	n        int
	kind     Kind
	open     bool
	exact    bool
	heapless bool
}

var _ Contract = (*Formula)(nil)

func primitive(k Kind) *Formula {
	return &Formula{kind: k, max: Bounded(k.Width()), exact: true, heapless: true}
}

var (
	Unit = primitive(KindUnit)
	Bool = primitive(KindBool)
	U8   = primitive(KindU8)
	I8   = primitive(KindI8)
	U16  = primitive(KindU16)
	I16  = primitive(KindI16)
	U32  = primitive(KindU32)
	I32  = primitive(KindI32)
	U64  = primitive(KindU64)
	I64  = primitive(KindI64)
	F32  = primitive(KindF32)
	F64  = primitive(KindF64)

	// Bytes is a raw byte run; its length comes from the enclosing window.
	Bytes = &Formula{kind: KindBytes, max: Unbounded, heapless: true}
	// String is UTF-8 text laid out like Bytes.
	String = &Formula{kind: KindString, max: Unbounded, heapless: true}
)

// Ref places the payload of f on the heap behind a reference.
func Ref(f *Formula) *Formula {
	return &Formula{kind: KindRef, elem: f, max: Bounded(ReferenceSize), exact: true}
}

// Slice is an unsized run of elements packed at a fixed stride.
func Slice(f *Formula) *Formula {
	return &Formula{
		kind:     KindSlice,
		elem:     f,
		max:      Unbounded,
		heapless: f.heapless && f.max.bounded,
	}
}

// Array is exactly n elements packed at a fixed stride.
func Array(f *Formula, n int) *Formula {
	a := &Formula{kind: KindArray, elem: f, n: n, heapless: f.heapless && f.max.bounded}
	if total, ok := abi.SafeMul(f.Stride(), n); ok {
		a.max = Bounded(total)
		a.exact = f.exact || !f.max.bounded
	} else {
		a.max = Unbounded
	}
	return a
}

func sequence(k Kind, f *Formula) *Formula {
	return &Formula{kind: k, elem: f, max: Bounded(ReferenceSize), exact: true}
}

// List is a growable sequence, laid out as Ref(Slice(f)).
func List(f *Formula) *Formula {
	return sequence(KindList, f)
}

// Deque is a double-ended sequence, laid out as Ref(Slice(f)).
func Deque(f *Formula) *Formula {
	return sequence(KindDeque, f)
}

// Map is a key/value collection, laid out as Ref(Slice(Tuple(k, v))).
func Map(k, v *Formula) *Formula {
	m := sequence(KindMap, Tuple(k, v))
	m.key = k
	return m
}

// Option is one discriminant byte followed by f when present.
func Option(f *Formula) *Formula {
	return &Formula{
		kind:     KindOption,
		elem:     f,
		max:      SumSize(Bounded(1), f.max),
		heapless: f.heapless,
	}
}

// F builds a Field.
func F(name string, f *Formula) Field {
	return Field{Name: name, Formula: f}
}

// V builds a Variant.
func V(name string, fields ...Field) Variant {
	return Variant{Name: name, Fields: fields}
}

// Tuple is an unnamed product; members are named by position.
func Tuple(fs ...*Formula) *Formula {
	fields := make([]Field, len(fs))
	for i, f := range fs {
		fields[i] = Field{Name: strconv.Itoa(i), Formula: f}
	}
	t := &Formula{kind: KindTuple, fields: fields}
	t.max, t.exact, t.heapless = aggregate(fields, false)
	return t
}

// Struct is a named product of fields written in order.
func Struct(name string, fields ...Field) *Formula {
	return structOf(name, fields, false)
}

// OpenStruct is a struct that may gain trailing fields; its bound is Unbounded.
func OpenStruct(name string, fields ...Field) *Formula {
	return structOf(name, fields, true)
}

func structOf(name string, fields []Field, open bool) *Formula {
	s := &Formula{kind: KindStruct, name: name, fields: fields, open: open}
	s.max, s.exact, s.heapless = aggregate(fields, open)
	return s
}

// Enum is a tagged sum of variants.
func Enum(name string, variants ...Variant) *Formula {
	return enumOf(name, variants, false)
}

// OpenEnum is an enum that may gain variants; its bound is Unbounded.
func OpenEnum(name string, variants ...Variant) *Formula {
	return enumOf(name, variants, true)
}

func enumOf(name string, variants []Variant, open bool) *Formula {
	e := &Formula{kind: KindEnum, name: name, variants: variants, open: open, heapless: true}
	disc := Bounded(abi.DiscriminantSize(len(variants), open))

	sums := make([]Size, len(variants))
	exact := !open
	for i, v := range variants {
		var vexact, vheapless bool
		sums[i], vexact, vheapless = aggregate(v.Fields, false)
		exact = exact && vexact
		e.heapless = e.heapless && vheapless
		if i > 0 && sums[i] != sums[0] {
			exact = false
		}
	}

	e.max = SumSize(disc, MaxAll(sums...))
	if open {
		e.max = Unbounded
	}
	e.exact = exact && e.max.bounded
	return e
}

// aggregate computes the contract of fields written in order, the last one
// written as last.
func aggregate(fields []Field, open bool) (max Size, exact, heapless bool) {
	sizes := make([]Size, len(fields))
	exact = !open
	heapless = true
	for i, f := range fields {
		c := f.Formula
		if c == nil {
			// rejected by Check
			sizes[i], exact, heapless = Unbounded, false, false
			continue
		}
		sizes[i] = c.max
		exact = exact && c.exact
		last := i == len(fields)-1
		heapless = heapless && c.heapless && (last || c.max.bounded)
	}
	max = SumAll(sizes...)
	if open {
		max = Unbounded
	}
	return max, exact && max.bounded, heapless
}

func (f *Formula) MaxStackSize() Size { return f.max }
func (f *Formula) ExactSize() bool    { return f.exact }
func (f *Formula) Heapless() bool     { return f.heapless }

func (f *Formula) Kind() Kind   { return f.kind }
func (f *Formula) Name() string { return f.name }

// Open reports a non-exhaustive struct or enum.
func (f *Formula) Open() bool { return f.open }

// Elem returns the element formula of Ref, Option and sequence kinds. For
// Map it is the entry tuple.
func (f *Formula) Elem() *Formula { return f.elem }

// Key returns the key formula of a Map.
func (f *Formula) Key() *Formula { return f.key }

// Value returns the value formula of a Map.
func (f *Formula) Value() *Formula {
	if f.kind != KindMap {
		return nil
	}
	return f.elem.fields[1].Formula
}

// Len returns the element count of an Array.
func (f *Formula) Len() int { return f.n }

// Fields returns struct or tuple members. The slice must not be modified.
func (f *Formula) Fields() []Field { return f.fields }

// Variants returns enum alternatives. The slice must not be modified.
func (f *Formula) Variants() []Variant { return f.variants }

// Stride is the number of stack bytes f occupies when written as a non-last
// field: the bound when there is one, otherwise a reference.
func (f *Formula) Stride() int {
	if f.max.bounded {
		return f.max.n
	}
	return ReferenceSize
}

// DiscriminantSize is the tag width of an enum, 1 for Option, 0 otherwise.
func (f *Formula) DiscriminantSize() int {
	switch f.kind {
	case KindEnum:
		return abi.DiscriminantSize(len(f.variants), f.open)
	case KindOption:
		return 1
	}
	return 0
}

// Indirect reports kinds stored as Ref(Slice(..)).
func (f *Formula) Indirect() bool {
	switch f.kind {
	case KindList, KindDeque, KindMap:
		return true
	}
	return false
}

// Payload returns the formula addressed by the reference of an indirect
// kind: the element formula for Ref, a Slice for List, Deque and Map.
func (f *Formula) Payload() *Formula {
	switch f.kind {
	case KindRef:
		return f.elem
	case KindList, KindDeque, KindMap:
		return Slice(f.elem)
	}
	return nil
}

// FieldIndex returns the position of a struct field by name.
func (f *Formula) FieldIndex(name string) int {
	for i, fd := range f.fields {
		if fd.Name == name {
			return i
		}
	}
	return -1
}

// VariantIndex returns the discriminant of an enum variant by name.
func (f *Formula) VariantIndex(name string) int {
	for i, v := range f.variants {
		if v.Name == name {
			return i
		}
	}
	return -1
}

// VariantFormula returns the fields of variant i as a closed struct.
func (f *Formula) VariantFormula(i int) *Formula {
	v := f.variants[i]
	return Struct(v.Name, v.Fields...)
}

// Equal reports structural equality.
func Equal(a, b *Formula) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.kind != b.kind || a.name != b.name || a.n != b.n || a.open != b.open {
		return false
	}
	if (a.elem == nil) != (b.elem == nil) || (a.elem != nil && !Equal(a.elem, b.elem)) {
		return false
	}
	if !fieldsEqual(a.fields, b.fields) || len(a.variants) != len(b.variants) {
		return false
	}
	for i := range a.variants {
		if a.variants[i].Name != b.variants[i].Name || !fieldsEqual(a.variants[i].Fields, b.variants[i].Fields) {
			return false
		}
	}
	return true
}

func fieldsEqual(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || !Equal(a[i].Formula, b[i].Formula) {
			return false
		}
	}
	return true
}
