package codec

import (
	"math"
	"reflect"
	"strconv"
	"unicode/utf8"

	"github.com/wippyai/zerocopy/errors"
	"github.com/wippyai/zerocopy/formula"
	"github.com/wippyai/zerocopy/internal/abi"
)

var (
	boolType   = reflect.TypeFor[bool]()
	stringType = reflect.TypeFor[string]()
)

// Variant is the dynamic form of an enum value. Value holds the variant
// fields as map[string]any, or nil for a variant without fields.
type Variant struct {
	Value any
	Name  string
}

func newVariant(name string, fields any) Variant {
	if m, ok := fields.(map[string]any); ok && len(m) == 0 {
		fields = nil
	}
	return Variant{Name: name, Value: fields}
}

// Dynamic values map formulas onto plain Go shapes:
//
//	unit          struct{}{}
//	bool          bool
//	integers      uint8 .. int64 of the formula width
//	floats        float32, float64
//	bytes         []byte
//	string        string
//	ref           the referenced value
//	slice, array,
//	list, deque   []any
//	map           map[any]any
//	option        nil or the value
//	tuple         []any
//	struct        map[string]any
//	enum          Variant
//
// Encoding also accepts any Go numeric type that fits, any slice or map
// kind, a string or single-key map for an enum, and falls back to the typed
// binding for other values.

func (e *Encoder) encodeAny(s *Serializer, p *plan, v reflect.Value) error {
	var x any
	if v.IsValid() {
		x = v.Interface()
	}
	f := p.f
	mismatch := func() error {
		return errors.TypeMismatch(errors.PhaseEncode, nil, abi.TypeName(x), f.String())
	}

	if f.Kind().IsPrimitive() {
		return e.encodeAnyPrimitive(s, p, x, mismatch)
	}

	switch f.Kind() {
	case formula.KindBytes:
		switch b := x.(type) {
		case []byte:
			return s.WriteBytes(b)
		case string:
			return s.WriteBytes(stringBytes(b))
		}
	case formula.KindString:
		var str string
		switch b := x.(type) {
		case string:
			str = b
		case []byte:
			str = string(b)
		default:
			return e.encodeTyped(s, p, x, mismatch)
		}
		if !utf8.ValidString(str) {
			return errors.InvalidUTF8(errors.PhaseEncode, nil, stringBytes(str))
		}
		return s.WriteBytes(stringBytes(str))
	case formula.KindRef:
		return s.WriteIndirect(p.payload, func(inner *Serializer) error {
			return e.encodeAny(inner, p.elem, v)
		})
	case formula.KindSlice, formula.KindArray, formula.KindList, formula.KindDeque:
		seq, ok := sequenceOf(x)
		if !ok {
			return e.encodeTyped(s, p, x, mismatch)
		}
		if f.Kind() == formula.KindArray && seq.Len() != f.Len() {
			return errors.New(errors.PhaseEncode, errors.KindInvalidData).
				Formula(f.String()).
				Detail("%d elements, array needs %d", seq.Len(), f.Len()).
				Build()
		}
		if !f.Indirect() {
			return e.encodeElems(s, p, seq)
		}
		return s.WriteIndirect(p.payload, func(inner *Serializer) error {
			return e.encodeElems(inner, p, seq)
		})
	case formula.KindMap:
		m := reflect.ValueOf(x)
		if m.Kind() != reflect.Map {
			return e.encodeTyped(s, p, x, mismatch)
		}
		return s.WriteIndirect(p.payload, func(inner *Serializer) error {
			return e.encodeMap(inner, p, m)
		})
	case formula.KindOption:
		if isNil(x) {
			return s.WriteBytes([]byte{0})
		}
		if err := s.WriteBytes([]byte{1}); err != nil {
			return err
		}
		return s.writeField(p.elem, reflect.ValueOf(x), true)
	case formula.KindTuple:
		seq, ok := sequenceOf(x)
		if !ok {
			return e.encodeTyped(s, p, x, mismatch)
		}
		if seq.Len() != len(p.fields) {
			return errors.New(errors.PhaseEncode, errors.KindInvalidData).
				Formula(f.String()).
				Detail("%d elements, tuple has %d", seq.Len(), len(p.fields)).
				Build()
		}
		for i, fd := range p.fields {
			if err := s.writeField(fd.plan, seq.Index(i), i == len(p.fields)-1); err != nil {
				return withIndex(err, i)
			}
		}
		return nil
	case formula.KindStruct:
		if x == nil {
			x = map[string]any{}
		}
		m, ok := x.(map[string]any)
		if !ok {
			return e.encodeTyped(s, p, x, mismatch)
		}
		for i, fd := range p.fields {
			fv := reflect.ValueOf(m[fd.name])
			if err := s.writeField(fd.plan, fv, i == len(p.fields)-1); err != nil {
				return withPath(err, fd.name)
			}
		}
		return nil
	case formula.KindEnum:
		return e.encodeAnyEnum(s, p, x, mismatch)
	}

	return e.encodeTyped(s, p, x, mismatch)
}

// encodeTyped encodes a value that is not a dynamic shape through the plan
// of its own Go type.
func (e *Encoder) encodeTyped(s *Serializer, p *plan, x any, mismatch func() error) error {
	if x == nil {
		return mismatch()
	}
	tp, err := e.compiler.plan(p.f, reflect.TypeOf(x))
	if err != nil {
		return mismatch()
	}
	return e.encode(s, tp, reflect.ValueOf(x))
}

func (e *Encoder) encodeAnyPrimitive(s *Serializer, p *plan, x any, mismatch func() error) error {
	k := p.f.Kind()
	switch {
	case k == formula.KindUnit:
		return nil
	case k == formula.KindBool:
		b, ok := abi.CoerceToBool(x)
		if !ok {
			return mismatch()
		}
		if b {
			return s.WriteBytes([]byte{1})
		}
		return s.WriteBytes([]byte{0})
	case k.IsFloat():
		fl, ok := abi.CoerceToFloat64(x)
		if !ok {
			return mismatch()
		}
		if k == formula.KindF32 {
			return writeUint(s, uint64(math.Float32bits(float32(fl))), 4)
		}
		return writeUint(s, math.Float64bits(fl), 8)
	case k.IsSigned():
		i, ok := abi.CoerceToInt64(x)
		if !ok {
			return mismatch()
		}
		if !abi.FitsSigned(i, k.Width()) {
			return errors.Overflow(errors.PhaseEncode, nil, i, k.String())
		}
		return writeUint(s, uint64(i), k.Width())
	default:
		u, ok := abi.CoerceToUint64(x)
		if !ok {
			return mismatch()
		}
		if !abi.FitsUnsigned(u, k.Width()) {
			return errors.Overflow(errors.PhaseEncode, nil, u, k.String())
		}
		return writeUint(s, u, k.Width())
	}
}

func (e *Encoder) encodeAnyEnum(s *Serializer, p *plan, x any, mismatch func() error) error {
	switch vr := x.(type) {
	case Variant:
		return e.writeVariant(s, p, vr.Name, vr.Value)
	case *Variant:
		if vr == nil {
			return mismatch()
		}
		return e.writeVariant(s, p, vr.Name, vr.Value)
	case string:
		return e.writeVariant(s, p, vr, nil)
	case map[string]any:
		if len(vr) != 1 {
			return errors.New(errors.PhaseEncode, errors.KindInvalidData).
				Formula(p.f.String()).
				Detail("enum map must have exactly one key, has %d", len(vr)).
				Build()
		}
		var name string
		var fields any
		for name, fields = range vr {
		}
		return e.writeVariant(s, p, name, fields)
	}
	return e.encodeTyped(s, p, x, mismatch)
}

func isNil(x any) bool {
	if x == nil {
		return true
	}
	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func sequenceOf(x any) (reflect.Value, bool) {
	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv, true
	}
	return reflect.Value{}, false
}

func (dc *Decoder) decodeAny(d *Deserializer, p *plan) (any, error) {
	f := p.f
	switch f.Kind() {
	case formula.KindUnit:
		return struct{}{}, nil
	case formula.KindBool:
		var b bool
		err := dc.decode(d, &plan{f: f, goType: boolType}, reflect.ValueOf(&b).Elem(), false)
		return b, err
	case formula.KindU8, formula.KindU16, formula.KindU32, formula.KindU64:
		u, err := readUint(d, f.Kind().Width())
		if err != nil {
			return nil, err
		}
		switch f.Kind() {
		case formula.KindU8:
			return uint8(u), nil
		case formula.KindU16:
			return uint16(u), nil
		case formula.KindU32:
			return uint32(u), nil
		}
		return u, nil
	case formula.KindI8, formula.KindI16, formula.KindI32, formula.KindI64:
		u, err := readUint(d, f.Kind().Width())
		if err != nil {
			return nil, err
		}
		i := signExtend(u, f.Kind().Width())
		switch f.Kind() {
		case formula.KindI8:
			return int8(i), nil
		case formula.KindI16:
			return int16(i), nil
		case formula.KindI32:
			return int32(i), nil
		}
		return i, nil
	case formula.KindF32:
		u, err := readUint(d, 4)
		return math.Float32frombits(uint32(u)), err
	case formula.KindF64:
		u, err := readUint(d, 8)
		return math.Float64frombits(u), err
	case formula.KindBytes:
		b, err := dc.readBytes(d)
		if err != nil {
			return nil, err
		}
		if dc.opts.Borrow {
			return b, nil
		}
		return append([]byte{}, b...), nil
	case formula.KindString:
		var str string
		err := dc.decode(d, &plan{f: f, goType: stringType}, reflect.ValueOf(&str).Elem(), false)
		return str, err
	case formula.KindRef:
		sub, err := d.Deref(p.payload)
		if err != nil {
			return nil, err
		}
		return dc.decodeAny(&sub, p.elem)
	case formula.KindSlice:
		it, err := d.IntoUnsizedIter(f.Elem())
		if err != nil {
			return nil, err
		}
		return dc.decodeAnyRun(it, p.elem)
	case formula.KindArray:
		it, err := d.IntoArrayIter(f.Elem(), f.Len())
		if err != nil {
			return nil, err
		}
		return dc.decodeAnyRun(it, p.elem)
	case formula.KindList, formula.KindDeque:
		it, err := dc.openRun(d, p)
		if err != nil {
			return nil, err
		}
		return dc.decodeAnyRun(it, p.elem)
	case formula.KindMap:
		it, err := dc.openRun(d, p)
		if err != nil {
			return nil, err
		}
		return dc.decodeAnyMap(it, p)
	case formula.KindOption:
		b, err := d.ReadBytes(1)
		if err != nil || b[0] == 0 {
			return nil, err
		}
		inner, err := d.Field(f.Elem(), true)
		if err != nil {
			return nil, err
		}
		return dc.decodeAny(&inner, p.elem)
	case formula.KindTuple:
		out := make([]any, len(p.fields))
		for i, fd := range p.fields {
			x, err := dc.decodeAnyField(d, fd.plan, i == len(p.fields)-1)
			if err != nil {
				return nil, withIndex(err, i)
			}
			out[i] = x
		}
		return out, nil
	case formula.KindStruct:
		out := make(map[string]any, len(p.fields))
		for i, fd := range p.fields {
			x, err := dc.decodeAnyField(d, fd.plan, i == len(p.fields)-1)
			if err != nil {
				return nil, withPath(err, fd.name)
			}
			out[fd.name] = x
		}
		return out, nil
	case formula.KindEnum:
		disc, err := dc.readDisc(d, f)
		if err != nil {
			return nil, err
		}
		c := p.cases[disc]
		fields, err := dc.decodeAny(d, c.plan)
		if err != nil {
			return nil, withPath(err, c.name)
		}
		return newVariant(c.name, fields), nil
	}
	return nil, errors.Unsupported(d.phase, "formula kind "+f.Kind().String())
}

func (dc *Decoder) decodeAnyField(d *Deserializer, p *plan, last bool) (any, error) {
	sub, err := d.Field(p.f, last)
	if err != nil {
		return nil, err
	}
	return dc.decodeAny(&sub, p)
}

func (dc *Decoder) decodeAnyRun(it *Iter, elem *plan) ([]any, error) {
	out := make([]any, 0, it.Remaining())
	for i := 0; it.Next(); i++ {
		x, err := dc.decodeAny(it.Elem(), elem)
		if err != nil {
			return nil, withIndex(err, i)
		}
		out = append(out, x)
	}
	return out, it.Err()
}

func (dc *Decoder) decodeAnyMap(it *Iter, p *plan) (map[any]any, error) {
	out := make(map[any]any, it.Remaining())
	for i := 0; it.Next(); i++ {
		entry := it.Elem()
		k, err := dc.decodeAnyField(entry, p.key, false)
		if err != nil {
			return nil, withIndex(err, i)
		}
		if k != nil && !reflect.TypeOf(k).Comparable() {
			return nil, errors.New(entry.phase, errors.KindUnsupported).
				Path("[" + strconv.Itoa(i) + "]").
				GoType(abi.TypeName(k)).
				Detail("map key is not comparable").
				Build()
		}
		val, err := dc.decodeAnyField(entry, p.elem, true)
		if err != nil {
			return nil, withIndex(err, i)
		}
		out[k] = val
	}
	return out, it.Err()
}
