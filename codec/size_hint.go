package codec

import (
	"reflect"

	"github.com/wippyai/zerocopy/errors"
	"github.com/wippyai/zerocopy/formula"
)

// SizeHint returns the exact Sizes that encoding v with f will commit. The
// result is the capacity Marshal reserves before writing.
func (e *Encoder) SizeHint(f *formula.Formula, v any) (Sizes, error) {
	rv, t := valueOf(v)
	p, err := e.compiler.plan(f, t)
	if err != nil {
		return Sizes{}, err
	}
	var sz Sizes
	err = e.hintField(&sz, p, rv, false)
	return sz, err
}

// hintPlace accounts the placement rule around fn, which accounts the
// member as if written last.
func hintPlace(sz *Sizes, f *formula.Formula, last bool, fn func() error) error {
	maxStack, bounded := f.MaxStackSize().Value()
	start := sz.Stack
	if err := fn(); err != nil {
		return err
	}
	switch {
	case !last && !bounded:
		sz.ToHeap(start)
		sz.AddStack(ReferenceSize)
	case !last && !f.ExactSize():
		if written := sz.Stack - start; written < maxStack {
			sz.AddStack(maxStack - written)
		}
	}
	return nil
}

// hintIndirect accounts a payload written through WriteIndirect.
func hintIndirect(sz *Sizes, fn func() error) error {
	start := sz.Stack
	if err := fn(); err != nil {
		return err
	}
	sz.ToHeap(start)
	sz.AddStack(ReferenceSize)
	return nil
}

func (e *Encoder) hintField(sz *Sizes, p *plan, v reflect.Value, last bool) error {
	return hintPlace(sz, p.f, last, func() error {
		return e.hint(sz, p, v)
	})
}

// dryRun measures a value by encoding it into a DryBuffer.
func (e *Encoder) dryRun(sz *Sizes, p *plan, v reflect.Value) error {
	s := newSerializer(e, DryBuffer{}, sz)
	if err := e.encode(s, p, v); err != nil {
		return err
	}
	return s.Finish()
}

func (e *Encoder) hint(sz *Sizes, p *plan, v reflect.Value) error {
	switch p.bind {
	case bindAny, bindEnumVariant:
		return e.dryRun(sz, p, v)
	case bindMarshal:
		if h, ok := sizeHinterOf(v); ok {
			if hs, ok := h.SizeHint(p.f); ok {
				sz.Add(hs)
				return nil
			}
		}
		return e.dryRun(sz, p, v)
	case bindPointer:
		if v.IsNil() {
			return errors.NilPointer(errors.PhaseEncode, nil, v.Type().String())
		}
		return e.hint(sz, p.elem, v.Elem())
	case bindBytesString:
		sz.AddStack(v.Len())
		return nil
	case bindEnumInt:
		sz.AddStack(p.f.DiscriminantSize())
		return nil
	case bindEnumPtrs:
		sz.AddStack(p.f.DiscriminantSize())
		for _, c := range p.cases {
			if fv := v.Field(c.index); !fv.IsNil() {
				return e.hintFields(sz, c.plan.fields, fv.Elem())
			}
		}
		return nil
	}

	f := p.f
	switch f.Kind() {
	case formula.KindBytes, formula.KindString:
		sz.AddStack(v.Len())
		return nil
	case formula.KindRef:
		return hintIndirect(sz, func() error {
			return e.hint(sz, p.elem, v)
		})
	case formula.KindSlice, formula.KindArray:
		return e.hintElems(sz, p, v)
	case formula.KindList, formula.KindDeque:
		return hintIndirect(sz, func() error {
			return e.hintElems(sz, p, v)
		})
	case formula.KindMap:
		return hintIndirect(sz, func() error {
			return e.hintMap(sz, p, v)
		})
	case formula.KindOption:
		sz.AddStack(1)
		if v.IsNil() {
			return nil
		}
		return e.hintField(sz, p.elem, v.Elem(), true)
	case formula.KindTuple, formula.KindStruct:
		return e.hintFields(sz, p.fields, v)
	}

	if f.Kind().IsPrimitive() {
		sz.AddStack(f.Kind().Width())
		return nil
	}
	return errors.Unsupported(errors.PhaseEncode, "formula kind "+f.Kind().String())
}

func (e *Encoder) hintElems(sz *Sizes, p *plan, v reflect.Value) error {
	ef := p.elem.f
	if p.byteElems() || (ef.ExactSize() && ef.Heapless()) {
		sz.AddStack(v.Len() * ef.Stride())
		return nil
	}
	for i := range v.Len() {
		if err := e.hintField(sz, p.elem, v.Index(i), false); err != nil {
			return withIndex(err, i)
		}
	}
	return nil
}

func (e *Encoder) hintFields(sz *Sizes, fields []planField, v reflect.Value) error {
	for i, fd := range fields {
		if err := e.hintField(sz, fd.plan, v.Field(fd.index), i == len(fields)-1); err != nil {
			return withPath(err, fd.name)
		}
	}
	return nil
}

func (e *Encoder) hintMap(sz *Sizes, p *plan, v reflect.Value) error {
	entry := p.payload.Elem()
	iter := v.MapRange()
	for iter.Next() {
		k, val := iter.Key(), iter.Value()
		err := hintPlace(sz, entry, false, func() error {
			if err := e.hintField(sz, p.key, k, false); err != nil {
				return err
			}
			return e.hintField(sz, p.elem, val, true)
		})
		if err != nil {
			return withPath(err, "["+formatKey(k)+"]")
		}
	}
	return nil
}

func sizeHinterOf(v reflect.Value) (SizeHinter, bool) {
	if v.CanAddr() {
		h, ok := v.Addr().Interface().(SizeHinter)
		return h, ok
	}
	h, ok := v.Interface().(SizeHinter)
	return h, ok
}
