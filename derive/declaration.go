package derive

import (
	"github.com/wippyai/zerocopy/formula"
)

// Kind classifies a declaration.
type Kind uint8

const (
	KindStruct Kind = iota
	KindEnum
	// KindUnion is an untagged overlapping-storage type. It is never
	// derivable and exists so sources can report what they saw.
	KindUnion
)

func (k Kind) String() string {
	switch k {
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindUnion:
		return "union"
	}
	return "unknown"
}

// Field is one named member and its formula.
type Field struct {
	Formula *formula.Formula
	Name    string
}

// Variant is one case of an enum declaration.
type Variant struct {
	Name   string
	Fields []Field
}

// Attrs are the derivation attributes of a declaration.
type Attrs struct {
	// Serialize names the schema values of this type encode with.
	Serialize string
	// Deserialize names the schema values of this type decode from.
	Deserialize string
	// Variant selects the enum variant a struct encodes as.
	Variant string
	// Formula marks the declaration as a schema of its own.
	Formula bool
	// NonExhaustive leaves room for members added later. The derived
	// bound is unbounded regardless of the current members.
	NonExhaustive bool
}

// Declaration is a product or sum type as seen by the deriver.
type Declaration struct {
	Name     string
	Fields   []Field
	Variants []Variant
	Attrs    Attrs
	Kind     Kind
}

// IsCodec reports whether the declaration encodes or decodes against
// another schema instead of being one.
func (d *Declaration) IsCodec() bool {
	return d.Attrs.Serialize != "" || d.Attrs.Deserialize != ""
}

func toFormulaFields(fields []Field) []formula.Field {
	out := make([]formula.Field, len(fields))
	for i, fd := range fields {
		out[i] = formula.F(fd.Name, fd.Formula)
	}
	return out
}

// fieldsBound folds the field bounds left to right from zero.
func fieldsBound(fields []Field) formula.Size {
	bound := formula.Bounded(0)
	for _, fd := range fields {
		bound = formula.SumSize(bound, fd.Formula.MaxStackSize())
	}
	return bound
}
