package formula

import (
	"strconv"
	"strings"
)

// String renders f in the syntax accepted by Parse.
func (f *Formula) String() string {
	var b strings.Builder
	f.write(&b)
	return b.String()
}

func (f *Formula) write(b *strings.Builder) {
	if f == nil {
		b.WriteString("<nil>")
		return
	}
	switch f.kind {
	case KindRef, KindList, KindDeque, KindOption:
		b.WriteString(f.kind.String())
		b.WriteByte('<')
		f.elem.write(b)
		b.WriteByte('>')
	case KindSlice:
		b.WriteByte('[')
		f.elem.write(b)
		b.WriteByte(']')
	case KindArray:
		b.WriteString("array<")
		f.elem.write(b)
		b.WriteString(", ")
		b.WriteString(strconv.Itoa(f.n))
		b.WriteByte('>')
	case KindMap:
		b.WriteString("map<")
		f.key.write(b)
		b.WriteString(", ")
		f.Value().write(b)
		b.WriteByte('>')
	case KindTuple:
		b.WriteString("tuple<")
		for i, fd := range f.fields {
			if i > 0 {
				b.WriteString(", ")
			}
			fd.Formula.write(b)
		}
		b.WriteByte('>')
	case KindStruct:
		b.WriteString("struct ")
		if f.name != "" {
			b.WriteString(f.name)
			b.WriteByte(' ')
		}
		writeFields(b, f.fields, f.open)
	case KindEnum:
		b.WriteString("enum ")
		if f.name != "" {
			b.WriteString(f.name)
			b.WriteByte(' ')
		}
		b.WriteByte('{')
		for i, v := range f.variants {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte(' ')
			b.WriteString(v.Name)
			if len(v.Fields) > 0 {
				b.WriteByte(' ')
				writeFields(b, v.Fields, false)
			}
		}
		if f.open {
			if len(f.variants) > 0 {
				b.WriteByte(',')
			}
			b.WriteString(" ..")
		}
		b.WriteString(" }")
	default:
		b.WriteString(f.kind.String())
	}
}

func writeFields(b *strings.Builder, fields []Field, open bool) {
	b.WriteByte('{')
	for i, fd := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte(' ')
		b.WriteString(fd.Name)
		b.WriteString(": ")
		fd.Formula.write(b)
	}
	if open {
		if len(fields) > 0 {
			b.WriteByte(',')
		}
		b.WriteString(" ..")
	}
	b.WriteString(" }")
}

// GoSource renders f as a Go expression built from this package's
// constructors, each qualified with pkg (for example "formula").
func (f *Formula) GoSource(pkg string) string {
	var b strings.Builder
	q := ""
	if pkg != "" {
		q = pkg + "."
	}
	f.goSource(&b, q)
	return b.String()
}

var primitiveNames = [...]string{
	KindUnit:   "Unit",
	KindBool:   "Bool",
	KindU8:     "U8",
	KindI8:     "I8",
	KindU16:    "U16",
	KindI16:    "I16",
	KindU32:    "U32",
	KindI32:    "I32",
	KindU64:    "U64",
	KindI64:    "I64",
	KindF32:    "F32",
	KindF64:    "F64",
	KindBytes:  "Bytes",
	KindString: "String",
}

func (f *Formula) goSource(b *strings.Builder, q string) {
	switch f.kind {
	case KindRef, KindSlice, KindList, KindDeque, KindOption:
		b.WriteString(q)
		b.WriteString(strings.ToUpper(f.kind.String()[:1]) + f.kind.String()[1:])
		b.WriteByte('(')
		f.elem.goSource(b, q)
		b.WriteByte(')')
	case KindArray:
		b.WriteString(q + "Array(")
		f.elem.goSource(b, q)
		b.WriteString(", " + strconv.Itoa(f.n) + ")")
	case KindMap:
		b.WriteString(q + "Map(")
		f.key.goSource(b, q)
		b.WriteString(", ")
		f.Value().goSource(b, q)
		b.WriteByte(')')
	case KindTuple:
		b.WriteString(q + "Tuple(")
		for i, fd := range f.fields {
			if i > 0 {
				b.WriteString(", ")
			}
			fd.Formula.goSource(b, q)
		}
		b.WriteByte(')')
	case KindStruct:
		if f.open {
			b.WriteString(q + "OpenStruct(")
		} else {
			b.WriteString(q + "Struct(")
		}
		b.WriteString(strconv.Quote(f.name))
		goFields(b, q, f.fields)
		b.WriteByte(')')
	case KindEnum:
		if f.open {
			b.WriteString(q + "OpenEnum(")
		} else {
			b.WriteString(q + "Enum(")
		}
		b.WriteString(strconv.Quote(f.name))
		for _, v := range f.variants {
			b.WriteString(", " + q + "V(" + strconv.Quote(v.Name))
			goFields(b, q, v.Fields)
			b.WriteByte(')')
		}
		b.WriteByte(')')
	default:
		b.WriteString(q + primitiveNames[f.kind])
	}
}

func goFields(b *strings.Builder, q string, fields []Field) {
	for _, fd := range fields {
		b.WriteString(", " + q + "F(" + strconv.Quote(fd.Name) + ", ")
		fd.Formula.goSource(b, q)
		b.WriteByte(')')
	}
}
