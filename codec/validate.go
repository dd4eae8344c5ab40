package codec

import (
	"unicode/utf8"

	"github.com/wippyai/zerocopy/errors"
	"github.com/wippyai/zerocopy/formula"
)

// Validate checks that data holds a well-formed value of f without
// decoding it: every read is in bounds, every reference lands in the heap
// it may address, and every discriminant, bool and string is valid.
func (dc *Decoder) Validate(f *formula.Formula, data []byte) error {
	if err := formula.Check(f); err != nil {
		return err
	}
	d, err := dc.root(errors.PhaseValidate, f, data)
	if err != nil {
		return err
	}
	return dc.validate(&d, f)
}

func (dc *Decoder) validate(d *Deserializer, f *formula.Formula) error {
	switch f.Kind() {
	case formula.KindUnit:
		return nil
	case formula.KindBool:
		b, err := d.ReadBytes(1)
		if err != nil {
			return err
		}
		if b[0] > 1 {
			return errors.InvalidData(d.phase, nil, "bool byte must be 0 or 1")
		}
		return nil
	case formula.KindBytes, formula.KindString:
		b, err := dc.readBytes(d)
		if err != nil {
			return err
		}
		if f.Kind() == formula.KindString && !utf8.Valid(b) {
			return errors.InvalidUTF8(d.phase, nil, b)
		}
		return nil
	case formula.KindRef:
		sub, err := d.Deref(f.Payload())
		if err != nil {
			return err
		}
		return dc.validate(&sub, f.Elem())
	case formula.KindSlice:
		it, err := d.IntoUnsizedIter(f.Elem())
		if err != nil {
			return err
		}
		return dc.validateRun(it)
	case formula.KindArray:
		it, err := d.IntoArrayIter(f.Elem(), f.Len())
		if err != nil {
			return err
		}
		return dc.validateRun(it)
	case formula.KindList, formula.KindDeque, formula.KindMap:
		sub, err := d.Deref(f.Payload())
		if err != nil {
			return err
		}
		it, err := sub.IntoUnsizedIter(f.Elem())
		if err != nil {
			return err
		}
		return dc.validateRun(it)
	case formula.KindOption:
		b, err := d.ReadBytes(1)
		if err != nil || b[0] == 0 {
			return err
		}
		inner, err := d.Field(f.Elem(), true)
		if err != nil {
			return err
		}
		return dc.validate(&inner, f.Elem())
	case formula.KindTuple, formula.KindStruct:
		return dc.validateFields(d, f.Fields())
	case formula.KindEnum:
		disc, err := dc.readDisc(d, f)
		if err != nil {
			return err
		}
		v := f.Variants()[disc]
		return withPath(dc.validateFields(d, v.Fields), v.Name)
	}

	if f.Kind().IsPrimitive() {
		_, err := d.ReadBytes(f.Kind().Width())
		return err
	}
	return errors.Unsupported(d.phase, "formula kind "+f.Kind().String())
}

func (dc *Decoder) validateRun(it *Iter) error {
	// exact heapless elements are plain bytes already bounds-checked
	if el := it.elem; el.ExactSize() && el.Heapless() && !hasChecks(el) {
		return nil
	}
	for i := 0; it.Next(); i++ {
		if err := dc.validate(it.Elem(), it.elem); err != nil {
			return withIndex(err, i)
		}
	}
	return it.Err()
}

// hasChecks reports formulas whose bytes can be invalid even when they are
// in bounds.
func hasChecks(f *formula.Formula) bool {
	switch f.Kind() {
	case formula.KindBool, formula.KindString, formula.KindEnum, formula.KindOption:
		return true
	case formula.KindArray:
		return hasChecks(f.Elem())
	case formula.KindTuple, formula.KindStruct:
		for _, fd := range f.Fields() {
			if hasChecks(fd.Formula) {
				return true
			}
		}
	}
	return false
}

func (dc *Decoder) validateFields(d *Deserializer, fields []formula.Field) error {
	for i, fd := range fields {
		sub, err := d.Field(fd.Formula, i == len(fields)-1)
		if err == nil {
			err = dc.validate(&sub, fd.Formula)
		}
		if err != nil {
			return withPath(err, fd.Name)
		}
	}
	return nil
}
