package codec

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"math"
	"reflect"
	"slices"
	"strconv"
	"unicode/utf8"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/zerocopy/errors"
	"github.com/wippyai/zerocopy/formula"
	"github.com/wippyai/zerocopy/internal/abi"
)

// Encoder writes Go values in the stack/heap layout of a formula. It is
// safe for concurrent use; all per-call state lives in Sizes.
type Encoder struct {
	compiler *Compiler
	opts     Options
}

// NewEncoder creates an encoder.
func NewEncoder(opts Options) *Encoder {
	opts = opts.withDefaults()
	return &Encoder{compiler: opts.Compiler, opts: opts}
}

// Compiler returns the encoder's plan cache.
func (e *Encoder) Compiler() *Compiler {
	return e.compiler
}

func valueOf(v any) (reflect.Value, reflect.Type) {
	if v == nil {
		return reflect.Zero(anyType), anyType
	}
	rv := reflect.ValueOf(v)
	return rv, rv.Type()
}

// Encode writes v into buf and returns the finished length and the root
// stack and heap totals. The root stack is always f.Stride() bytes.
func (e *Encoder) Encode(buf Buffer, f *formula.Formula, v any) (int, Sizes, error) {
	rv, t := valueOf(v)
	p, err := e.compiler.plan(f, t)
	if err != nil {
		return 0, Sizes{}, err
	}
	n, sizes, err := e.encodeRoot(buf, p, rv)
	if e.opts.Observer != nil {
		e.opts.Observer.ObserveEncode(f, sizes, err)
	}
	if err != nil {
		Logger().Debug("encode failed",
			zap.Stringer("formula", f),
			zap.Stringer("sizes", sizes),
			zap.Error(err))
		return 0, sizes, err
	}
	return n, sizes, nil
}

func (e *Encoder) encodeRoot(buf Buffer, p *plan, v reflect.Value) (int, Sizes, error) {
	var sizes Sizes
	s := newSerializer(e, buf, &sizes)
	if err := s.writeField(p, v, false); err != nil {
		return 0, sizes, err
	}
	if err := s.Finish(); err != nil {
		return 0, sizes, err
	}
	n, err := buf.Finish(sizes.Heap, sizes.Stack)
	return n, sizes, err
}

// Marshal returns the encoding of v, sized up front from SizeHint.
func (e *Encoder) Marshal(f *formula.Formula, v any) ([]byte, error) {
	hint, err := e.SizeHint(f, v)
	if err != nil {
		return nil, err
	}
	buf := NewVecBuffer(make([]byte, 0, hint.Total()))
	if _, _, err := e.Encode(buf, f, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalAppend appends the encoding of v to dst.
func (e *Encoder) MarshalAppend(f *formula.Formula, v any, dst []byte) ([]byte, Sizes, error) {
	buf := NewVecBuffer(dst)
	_, sizes, err := e.Encode(buf, f, v)
	if err != nil {
		return dst, sizes, err
	}
	return buf.Bytes(), sizes, nil
}

// MarshalInto encodes v into dst without growing it. It fails with
// out_of_space when dst is too small.
func (e *Encoder) MarshalInto(f *formula.Formula, v any, dst []byte) (int, Sizes, error) {
	return e.Encode(NewFixedBuffer(dst), f, v)
}

// encode writes the representation of v as a final member: inline, with no
// padding and no indirection of its own.
func (e *Encoder) encode(s *Serializer, p *plan, v reflect.Value) error {
	switch p.bind {
	case bindAny:
		return e.encodeAny(s, p, v)
	case bindMarshal:
		m, ok := marshalerOf(v)
		if !ok {
			return errors.Unsupported(errors.PhaseEncode, v.Type().String()+" does not implement Marshaler")
		}
		return m.MarshalFormula(p.f, s)
	case bindPointer:
		if v.IsNil() {
			return errors.NilPointer(errors.PhaseEncode, nil, v.Type().String())
		}
		return e.encode(s, p.elem, v.Elem())
	case bindBytesString:
		return s.WriteBytes(stringBytes(v.String()))
	case bindArraySlice:
		if v.Len() != p.f.Len() {
			return errors.New(errors.PhaseEncode, errors.KindInvalidData).
				GoType(v.Type().String()).
				Formula(p.f.String()).
				Detail("slice has %d elements, array needs %d", v.Len(), p.f.Len()).
				Build()
		}
		return e.encodeElems(s, p, v)
	case bindEnumInt, bindEnumPtrs, bindEnumVariant:
		return e.encodeEnum(s, p, v)
	}

	f := p.f
	switch f.Kind() {
	case formula.KindUnit:
		return nil
	case formula.KindBool:
		if v.Bool() {
			return s.WriteBytes([]byte{1})
		}
		return s.WriteBytes([]byte{0})
	case formula.KindU8, formula.KindU16, formula.KindU32, formula.KindU64:
		return writeUint(s, v.Uint(), f.Kind().Width())
	case formula.KindI8, formula.KindI16, formula.KindI32, formula.KindI64:
		return writeUint(s, uint64(v.Int()), f.Kind().Width())
	case formula.KindF32:
		return writeUint(s, uint64(math.Float32bits(float32(v.Float()))), 4)
	case formula.KindF64:
		return writeUint(s, math.Float64bits(v.Float()), 8)
	case formula.KindBytes:
		return s.WriteBytes(v.Bytes())
	case formula.KindString:
		str := v.String()
		if !utf8.ValidString(str) {
			return errors.InvalidUTF8(errors.PhaseEncode, nil, stringBytes(str))
		}
		return s.WriteBytes(stringBytes(str))
	case formula.KindRef:
		return s.WriteIndirect(p.payload, func(inner *Serializer) error {
			return e.encode(inner, p.elem, v)
		})
	case formula.KindSlice, formula.KindArray:
		return e.encodeElems(s, p, v)
	case formula.KindList, formula.KindDeque:
		return s.WriteIndirect(p.payload, func(inner *Serializer) error {
			return e.encodeElems(inner, p, v)
		})
	case formula.KindMap:
		return s.WriteIndirect(p.payload, func(inner *Serializer) error {
			return e.encodeMap(inner, p, v)
		})
	case formula.KindOption:
		if v.IsNil() {
			return s.WriteBytes([]byte{0})
		}
		if err := s.WriteBytes([]byte{1}); err != nil {
			return err
		}
		return s.writeField(p.elem, v.Elem(), true)
	case formula.KindTuple, formula.KindStruct:
		return e.encodeFields(s, p.fields, v)
	}

	return errors.Unsupported(errors.PhaseEncode, "formula kind "+f.Kind().String())
}

func stringBytes(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func writeUint(s *Serializer, u uint64, width int) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], u)
	return s.WriteBytes(b[:width])
}

func marshalerOf(v reflect.Value) (Marshaler, bool) {
	if !v.CanAddr() {
		ptr := reflect.New(v.Type())
		ptr.Elem().Set(v)
		v = ptr.Elem()
	}
	m, ok := v.Addr().Interface().(Marshaler)
	return m, ok
}

func (e *Encoder) encodeElems(s *Serializer, p *plan, v reflect.Value) error {
	if p.byteElems() && v.Kind() == reflect.Slice {
		return s.WriteBytes(v.Bytes())
	}
	for i := range v.Len() {
		if err := s.writeField(p.elem, v.Index(i), false); err != nil {
			return withIndex(err, i)
		}
	}
	return nil
}

func (e *Encoder) encodeFields(s *Serializer, fields []planField, v reflect.Value) error {
	for i, fd := range fields {
		if err := s.writeField(fd.plan, v.Field(fd.index), i == len(fields)-1); err != nil {
			return withPath(err, fd.name)
		}
	}
	return nil
}

// encodeMap writes entries ordered by key so that equal maps encode to
// equal bytes.
func (e *Encoder) encodeMap(s *Serializer, p *plan, v reflect.Value) error {
	keys, err := e.sortedKeys(p.key, v)
	if err != nil {
		return err
	}
	entry := p.payload.Elem()
	for _, k := range keys {
		c := s.count
		err := s.place(entry, false, func(t *Serializer) error {
			if err := t.writeField(p.key, k, false); err != nil {
				return err
			}
			return t.writeField(p.elem, v.MapIndex(k), true)
		})
		if err != nil {
			return withPath(err, "["+formatKey(k)+"]")
		}
		s.count = c + 1
	}
	return nil
}

func formatKey(k reflect.Value) string {
	k = unwrap(k)
	switch k.Kind() {
	case reflect.String:
		return k.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10)
	}
	return k.Type().String()
}

// sortedKeys orders map keys by the key formula: strings and bytes
// lexically, numbers numerically, anything else by its encoded bytes.
func (e *Encoder) sortedKeys(kp *plan, v reflect.Value) ([]reflect.Value, error) {
	keys := v.MapKeys()
	if len(keys) < 2 {
		return keys, nil
	}

	var ordered bool
	switch k := kp.f.Kind(); {
	case k == formula.KindString || k == formula.KindBytes:
		ordered = orderBy(keys, keyString)
	case k.IsSigned():
		ordered = orderBy(keys, keyInt)
	case k.IsInteger():
		ordered = orderBy(keys, keyUint)
	case k.IsFloat():
		ordered = orderBy(keys, keyFloat)
	}
	if ordered {
		return keys, nil
	}

	scratch := getScratch()
	defer putScratch(scratch)

	type span struct{ lo, hi int }
	spans := make([]span, len(keys))
	for i, k := range keys {
		kb := &VecBuffer{buf: scratch.buf, base: len(scratch.buf)}
		if _, _, err := e.encodeRoot(kb, kp, k); err != nil {
			return nil, err
		}
		spans[i] = span{kb.base, len(kb.buf)}
		scratch.buf = kb.buf
	}
	permute(keys, func(a, b int) int {
		return bytes.Compare(scratch.buf[spans[a].lo:spans[a].hi], scratch.buf[spans[b].lo:spans[b].hi])
	})
	return keys, nil
}

func orderBy[T cmp.Ordered](keys []reflect.Value, conv func(reflect.Value) (T, bool)) bool {
	vals := make([]T, len(keys))
	for i, k := range keys {
		x, ok := conv(k)
		if !ok {
			return false
		}
		vals[i] = x
	}
	permute(keys, func(a, b int) int { return cmp.Compare(vals[a], vals[b]) })
	return true
}

// permute sorts keys by comparing their original positions.
func permute(keys []reflect.Value, compare func(a, b int) int) {
	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, compare)
	sorted := make([]reflect.Value, len(keys))
	for i, j := range idx {
		sorted[i] = keys[j]
	}
	copy(keys, sorted)
}

func unwrap(k reflect.Value) reflect.Value {
	for k.Kind() == reflect.Interface && !k.IsNil() {
		k = k.Elem()
	}
	return k
}

func keyString(k reflect.Value) (string, bool) {
	k = unwrap(k)
	switch {
	case k.Kind() == reflect.String:
		return k.String(), true
	case k.Kind() == reflect.Slice && k.Type().Elem().Kind() == reflect.Uint8:
		return string(k.Bytes()), true
	}
	return "", false
}

func keyInt(k reflect.Value) (int64, bool) {
	if k = unwrap(k); k.CanInt() {
		return k.Int(), true
	}
	return abi.CoerceToInt64(k.Interface())
}

func keyUint(k reflect.Value) (uint64, bool) {
	if k = unwrap(k); k.CanUint() {
		return k.Uint(), true
	}
	return abi.CoerceToUint64(k.Interface())
}

func keyFloat(k reflect.Value) (float64, bool) {
	if k = unwrap(k); k.CanFloat() {
		return k.Float(), true
	}
	return abi.CoerceToFloat64(k.Interface())
}

func (e *Encoder) encodeEnum(s *Serializer, p *plan, v reflect.Value) error {
	f := p.f
	n := len(f.Variants())

	switch p.bind {
	case bindEnumInt:
		var disc uint64
		if v.CanInt() {
			if v.Int() < 0 {
				return errors.UnexpectedDiscriminant(errors.PhaseEncode, nil, uint32(v.Int()), n)
			}
			disc = uint64(v.Int())
		} else {
			disc = v.Uint()
		}
		if disc >= uint64(n) {
			return errors.UnexpectedDiscriminant(errors.PhaseEncode, nil, uint32(min(disc, math.MaxUint32)), n)
		}
		return writeUint(s, disc, f.DiscriminantSize())

	case bindEnumPtrs:
		chosen := -1
		for i, c := range p.cases {
			if !v.Field(c.index).IsNil() {
				if chosen >= 0 {
					return errors.New(errors.PhaseEncode, errors.KindInvalidData).
						GoType(v.Type().String()).
						Detail("variants %q and %q are both set", p.cases[chosen].name, c.name).
						Build()
				}
				chosen = i
			}
		}
		if chosen < 0 {
			return errors.New(errors.PhaseEncode, errors.KindInvalidData).
				GoType(v.Type().String()).
				Detail("no variant is set").
				Build()
		}
		if err := writeUint(s, uint64(chosen), f.DiscriminantSize()); err != nil {
			return err
		}
		c := p.cases[chosen]
		return withPath(e.encode(s, c.plan, v.Field(c.index).Elem()), c.name)

	case bindEnumVariant:
		vr := v.Interface().(Variant)
		return e.writeVariant(s, p, vr.Name, vr.Value)
	}
	return nil
}

// writeVariant writes the discriminant of the named variant and its fields
// from a dynamic value.
func (e *Encoder) writeVariant(s *Serializer, p *plan, name string, fields any) error {
	idx := p.f.VariantIndex(name)
	if idx < 0 {
		return errors.NotFound(errors.PhaseEncode, "variant", name)
	}
	if err := writeUint(s, uint64(idx), p.f.DiscriminantSize()); err != nil {
		return err
	}
	c := p.cases[idx]
	return withPath(e.encodeAny(s, c.plan, reflect.ValueOf(&fields).Elem()), name)
}

// place applies the placement rule to a member of formula f written by fn.
func (s *Serializer) place(f *formula.Formula, last bool, fn func(*Serializer) error) error {
	maxStack, bounded := f.MaxStackSize().Value()

	switch {
	case !last && !bounded:
		return s.WriteIndirect(f, fn)
	case !last && !f.ExactSize():
		start := s.sizes.Stack
		if err := fn(s); err != nil {
			return s.fail(err)
		}
		written := s.sizes.Stack - start
		if written > maxStack {
			return s.fail(errors.New(errors.PhaseEncode, errors.KindInvalidData).
				Formula(f.String()).
				Detail("wrote %d stack bytes, bound is %d", written, maxStack).
				Build())
		}
		return s.padStack(maxStack - written)
	default:
		if err := fn(s); err != nil {
			return s.fail(err)
		}
		return nil
	}
}

func withPath(err error, seg string) error {
	if err == nil {
		return nil
	}
	if ze, ok := err.(*errors.Error); ok {
		return ze.WithPath(seg)
	}
	return err
}

func withIndex(err error, i int) error {
	return withPath(err, "["+strconv.Itoa(i)+"]")
}
