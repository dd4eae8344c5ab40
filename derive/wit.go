package derive

import (
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/zerocopy/errors"
	"github.com/wippyai/zerocopy/formula"
)

// FromWIT reads a formula declaration from a WIT record, variant or enum.
// A variant case with a payload gets one field named "value".
func FromWIT(td *wit.TypeDef) (Declaration, error) {
	name := "anonymous"
	if td.Name != nil {
		name = *td.Name
	}
	decl := Declaration{Name: name, Attrs: Attrs{Formula: true}}

	switch kind := td.Kind.(type) {
	case *wit.Record:
		decl.Kind = KindStruct
		for _, fd := range kind.Fields {
			f, err := WITFormula(fd.Type)
			if err != nil {
				return Declaration{}, err
			}
			decl.Fields = append(decl.Fields, Field{Name: fd.Name, Formula: f})
		}
	case *wit.Variant:
		decl.Kind = KindEnum
		for _, c := range kind.Cases {
			v := Variant{Name: c.Name}
			if c.Type != nil {
				f, err := WITFormula(c.Type)
				if err != nil {
					return Declaration{}, err
				}
				v.Fields = []Field{{Name: "value", Formula: f}}
			}
			decl.Variants = append(decl.Variants, v)
		}
	case *wit.Enum:
		decl.Kind = KindEnum
		for _, c := range kind.Cases {
			decl.Variants = append(decl.Variants, Variant{Name: c.Name})
		}
	default:
		return Declaration{}, errors.New(errors.PhaseDerive, errors.KindUnsupported).
			Formula(name).
			Detail("WIT %T is not a record, variant or enum", td.Kind).
			Build()
	}
	return decl, nil
}

// WITFormula maps a WIT type to the formula its values encode with. Chars
// and resource handles are u32. Flags pack into the narrowest unsigned
// integer that holds them.
func WITFormula(t wit.Type) (*formula.Formula, error) {
	switch t := t.(type) {
	case wit.Bool:
		return formula.Bool, nil
	case wit.U8:
		return formula.U8, nil
	case wit.S8:
		return formula.I8, nil
	case wit.U16:
		return formula.U16, nil
	case wit.S16:
		return formula.I16, nil
	case wit.U32, wit.Char:
		return formula.U32, nil
	case wit.S32:
		return formula.I32, nil
	case wit.U64:
		return formula.U64, nil
	case wit.S64:
		return formula.I64, nil
	case wit.F32:
		return formula.F32, nil
	case wit.F64:
		return formula.F64, nil
	case wit.String:
		return formula.String, nil
	case *wit.TypeDef:
		return witTypeDef(t)
	}
	return nil, errors.New(errors.PhaseDerive, errors.KindUnsupported).
		Detail("unsupported WIT type: %T", t).
		Build()
}

func witTypeDef(td *wit.TypeDef) (*formula.Formula, error) {
	switch kind := td.Kind.(type) {
	case *wit.Record, *wit.Variant, *wit.Enum:
		decl, err := FromWIT(td)
		if err != nil {
			return nil, err
		}
		s, err := Derive(decl)
		if err != nil {
			return nil, err
		}
		return s.Formula, nil
	case *wit.List:
		elem, err := WITFormula(kind.Type)
		if err != nil {
			return nil, err
		}
		return formula.List(elem), nil
	case *wit.Option:
		elem, err := WITFormula(kind.Type)
		if err != nil {
			return nil, err
		}
		return formula.Option(elem), nil
	case *wit.Tuple:
		elems := make([]*formula.Formula, len(kind.Types))
		for i, t := range kind.Types {
			f, err := WITFormula(t)
			if err != nil {
				return nil, err
			}
			elems[i] = f
		}
		return formula.Tuple(elems...), nil
	case *wit.Result:
		ok, err := resultCase("ok", kind.OK)
		if err != nil {
			return nil, err
		}
		fail, err := resultCase("err", kind.Err)
		if err != nil {
			return nil, err
		}
		return formula.Enum("result", ok, fail), nil
	case *wit.Flags:
		switch n := len(kind.Flags); {
		case n <= 8:
			return formula.U8, nil
		case n <= 16:
			return formula.U16, nil
		case n <= 32:
			return formula.U32, nil
		case n <= 64:
			return formula.U64, nil
		default:
			return nil, errors.New(errors.PhaseDerive, errors.KindUnsupported).
				Detail("flags type exceeds maximum 64 flags, got %d", n).
				Build()
		}
	case *wit.Own, *wit.Borrow:
		return formula.U32, nil
	case wit.Type:
		return WITFormula(kind)
	}
	return nil, errors.New(errors.PhaseDerive, errors.KindUnsupported).
		Detail("unsupported TypeDef kind: %T", td.Kind).
		Build()
}

func resultCase(name string, t wit.Type) (formula.Variant, error) {
	if t == nil {
		return formula.V(name), nil
	}
	f, err := WITFormula(t)
	if err != nil {
		return formula.Variant{}, err
	}
	return formula.V(name, formula.F("value", f)), nil
}
