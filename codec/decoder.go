package codec

import (
	"encoding/binary"
	"math"
	"reflect"
	"unicode/utf8"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/zerocopy/errors"
	"github.com/wippyai/zerocopy/formula"
	"github.com/wippyai/zerocopy/internal/abi"
)

// Decoder reads values out of buffers produced by an Encoder. It is safe for
// concurrent use; all per-call state lives in Deserializer values.
type Decoder struct {
	compiler *Compiler
	opts     Options
}

// NewDecoder creates a decoder.
func NewDecoder(opts Options) *Decoder {
	opts = opts.withDefaults()
	return &Decoder{compiler: opts.Compiler, opts: opts}
}

// Compiler returns the decoder's plan cache.
func (dc *Decoder) Compiler() *Compiler {
	return dc.compiler
}

// NewDeserializer returns a cursor over the root value of f in data.
func (dc *Decoder) NewDeserializer(f *formula.Formula, data []byte) (Deserializer, error) {
	return dc.root(errors.PhaseDecode, f, data)
}

func (dc *Decoder) root(phase errors.Phase, f *formula.Formula, data []byte) (Deserializer, error) {
	d, err := newDeserializer(dc, phase, data, f.Stride())
	if err != nil {
		return Deserializer{}, err
	}
	return d.Field(f, false)
}

func targetOf(phase errors.Phase, ptr any) (reflect.Value, error) {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return reflect.Value{}, errors.New(phase, errors.KindNilPointer).
			GoType(abi.TypeName(ptr)).
			Detail("target must be a non-nil pointer").
			Build()
	}
	return rv.Elem(), nil
}

// Unmarshal decodes data into the value ptr points to. The target is set
// only when decoding succeeds.
func (dc *Decoder) Unmarshal(f *formula.Formula, data []byte, ptr any) error {
	target, err := targetOf(errors.PhaseDecode, ptr)
	if err != nil {
		return err
	}
	p, err := dc.compiler.plan(f, target.Type())
	if err != nil {
		return err
	}

	tmp := reflect.New(target.Type()).Elem()
	err = dc.decodeRoot(f, data, p, tmp, false)
	dc.observe(f, data, err)
	if err != nil {
		return err
	}
	target.Set(tmp)
	return nil
}

func (dc *Decoder) decodeRoot(f *formula.Formula, data []byte, p *plan, v reflect.Value, inPlace bool) error {
	d, err := dc.root(errors.PhaseDecode, f, data)
	if err != nil {
		return err
	}
	return dc.decode(&d, p, v, inPlace)
}

func (dc *Decoder) observe(f *formula.Formula, data []byte, err error) {
	if dc.opts.Observer != nil {
		dc.opts.Observer.ObserveDecode(f, len(data), err)
	}
	if err != nil {
		Logger().Debug("decode failed",
			zap.Stringer("formula", f),
			zap.Int("bytes", len(data)),
			zap.Error(err))
	}
}

// decode reads the value of plan p from the window d into v. With inPlace
// set, existing allocations reachable from v are reused.
func (dc *Decoder) decode(d *Deserializer, p *plan, v reflect.Value, inPlace bool) error {
	switch p.bind {
	case bindAny:
		x, err := dc.decodeAny(d, p)
		if err != nil {
			return err
		}
		if x == nil {
			v.SetZero()
			return nil
		}
		xv := reflect.ValueOf(x)
		if !xv.Type().AssignableTo(v.Type()) {
			return errors.TypeMismatch(d.phase, nil, v.Type().String(), p.f.String())
		}
		v.Set(xv)
		return nil
	case bindMarshal:
		if !inPlace {
			v.SetZero()
		}
		u, ok := v.Addr().Interface().(Unmarshaler)
		if !ok {
			return errors.Unsupported(d.phase, v.Type().String()+" does not implement Unmarshaler")
		}
		return u.UnmarshalFormula(p.f, *d)
	case bindPointer:
		if v.IsNil() || !inPlace {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return dc.decode(d, p.elem, v.Elem(), inPlace)
	case bindBytesString:
		b, err := dc.readBytes(d)
		if err != nil {
			return err
		}
		v.SetString(dc.string(b))
		return nil
	case bindArraySlice:
		it, err := d.IntoArrayIter(p.elem.f, p.f.Len())
		if err != nil {
			return err
		}
		return dc.decodeSeq(it, p, v, inPlace)
	case bindEnumInt, bindEnumPtrs, bindEnumVariant:
		return dc.decodeEnum(d, p, v, inPlace)
	}

	f := p.f
	switch f.Kind() {
	case formula.KindUnit:
		return nil
	case formula.KindBool:
		b, err := d.ReadBytes(1)
		if err != nil {
			return err
		}
		if b[0] > 1 {
			return errors.New(d.phase, errors.KindInvalidData).
				Formula(f.String()).
				Value(b[0]).
				Detail("bool byte must be 0 or 1").
				Build()
		}
		v.SetBool(b[0] == 1)
		return nil
	case formula.KindU8, formula.KindU16, formula.KindU32, formula.KindU64:
		u, err := readUint(d, f.Kind().Width())
		if err != nil {
			return err
		}
		v.SetUint(u)
		return nil
	case formula.KindI8, formula.KindI16, formula.KindI32, formula.KindI64:
		u, err := readUint(d, f.Kind().Width())
		if err != nil {
			return err
		}
		v.SetInt(signExtend(u, f.Kind().Width()))
		return nil
	case formula.KindF32:
		u, err := readUint(d, 4)
		if err != nil {
			return err
		}
		v.SetFloat(float64(math.Float32frombits(uint32(u))))
		return nil
	case formula.KindF64:
		u, err := readUint(d, 8)
		if err != nil {
			return err
		}
		v.SetFloat(math.Float64frombits(u))
		return nil
	case formula.KindBytes:
		b, err := dc.readBytes(d)
		if err != nil {
			return err
		}
		dc.setBytes(v, b, inPlace)
		return nil
	case formula.KindString:
		b, err := dc.readBytes(d)
		if err != nil {
			return err
		}
		if !utf8.Valid(b) {
			return errors.InvalidUTF8(d.phase, nil, b)
		}
		v.SetString(dc.string(b))
		return nil
	case formula.KindRef:
		sub, err := d.Deref(p.payload)
		if err != nil {
			return err
		}
		return dc.decode(&sub, p.elem, v, inPlace)
	case formula.KindSlice:
		it, err := d.IntoUnsizedIter(p.elem.f)
		if err != nil {
			return err
		}
		return dc.decodeSeq(it, p, v, inPlace)
	case formula.KindArray:
		it, err := d.IntoArrayIter(p.elem.f, f.Len())
		if err != nil {
			return err
		}
		return dc.decodeArray(it, p, v, inPlace)
	case formula.KindList, formula.KindDeque:
		it, err := dc.openRun(d, p)
		if err != nil {
			return err
		}
		return dc.decodeSeq(it, p, v, inPlace)
	case formula.KindMap:
		it, err := dc.openRun(d, p)
		if err != nil {
			return err
		}
		return dc.decodeMap(it, p, v, inPlace)
	case formula.KindOption:
		return dc.decodeOption(d, p, v, inPlace)
	case formula.KindTuple, formula.KindStruct:
		return dc.decodeFields(d, p.fields, v, inPlace)
	}

	return errors.Unsupported(d.phase, "formula kind "+f.Kind().String())
}

// openRun follows the reference of an indirect sequence to its elements.
func (dc *Decoder) openRun(d *Deserializer, p *plan) (*Iter, error) {
	sub, err := d.Deref(p.payload)
	if err != nil {
		return nil, err
	}
	return sub.IntoUnsizedIter(p.payload.Elem())
}

func readUint(d *Deserializer, width int) (uint64, error) {
	b, err := d.ReadBytes(width)
	if err != nil {
		return 0, err
	}
	switch width {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(b)), nil
	case 8:
		return binary.LittleEndian.Uint64(b), nil
	}
	return 0, nil
}

func signExtend(u uint64, width int) int64 {
	shift := 64 - 8*width
	return int64(u<<shift) >> shift
}

func (dc *Decoder) readBytes(d *Deserializer) ([]byte, error) {
	if d.Len() > dc.opts.MaxStringSize {
		return nil, errors.Overflow(d.phase, nil, d.Len(), "max string size")
	}
	return d.ReadAllBytes(), nil
}

func (dc *Decoder) string(b []byte) string {
	if dc.opts.Borrow {
		return unsafe.String(unsafe.SliceData(b), len(b))
	}
	return string(b)
}

func (dc *Decoder) setBytes(v reflect.Value, b []byte, inPlace bool) {
	switch {
	case dc.opts.Borrow:
		v.SetBytes(b)
	case inPlace && !v.IsNil():
		v.SetBytes(append(v.Bytes()[:0], b...))
	case len(b) == 0:
		v.SetZero()
	default:
		v.SetBytes(append([]byte(nil), b...))
	}
}

func (dc *Decoder) decodeFields(d *Deserializer, fields []planField, v reflect.Value, inPlace bool) error {
	for i, fd := range fields {
		sub, err := d.Field(fd.plan.f, i == len(fields)-1)
		if err == nil {
			err = dc.decode(&sub, fd.plan, v.Field(fd.index), inPlace)
		}
		if err != nil {
			return withPath(err, fd.name)
		}
	}
	return nil
}

func (dc *Decoder) decodeArray(it *Iter, p *plan, v reflect.Value, inPlace bool) error {
	if p.byteElems() {
		reflect.Copy(v, reflect.ValueOf(it.Bytes()))
		return nil
	}
	for i := 0; it.Next(); i++ {
		if err := dc.decode(it.Elem(), p.elem, v.Index(i), inPlace); err != nil {
			return withIndex(err, i)
		}
	}
	return it.Err()
}

func (dc *Decoder) decodeMap(it *Iter, p *plan, v reflect.Value, inPlace bool) error {
	if inPlace && !v.IsNil() {
		v.Clear()
	} else {
		v.Set(reflect.MakeMapWithSize(v.Type(), it.Remaining()))
	}

	kt, vt := v.Type().Key(), v.Type().Elem()
	for i := 0; it.Next(); i++ {
		entry := it.Elem()
		k := reflect.New(kt).Elem()
		val := reflect.New(vt).Elem()

		kd, err := entry.Field(p.key.f, false)
		if err == nil {
			err = dc.decode(&kd, p.key, k, false)
		}
		if err != nil {
			return withIndex(err, i)
		}
		vd, err := entry.Field(p.elem.f, true)
		if err == nil {
			err = dc.decode(&vd, p.elem, val, false)
		}
		if err != nil {
			return withPath(err, "["+formatKey(k)+"]")
		}
		v.SetMapIndex(k, val)
	}
	return it.Err()
}

func (dc *Decoder) decodeOption(d *Deserializer, p *plan, v reflect.Value, inPlace bool) error {
	b, err := d.ReadBytes(1)
	if err != nil {
		return err
	}
	if b[0] == 0 {
		v.SetZero()
		return nil
	}
	inner, err := d.Field(p.elem.f, true)
	if err != nil {
		return err
	}
	// overwrite a present payload rather than allocating another
	reuse := inPlace && !v.IsNil()
	if !reuse {
		v.Set(reflect.New(v.Type().Elem()))
	}
	return dc.decode(&inner, p.elem, v.Elem(), reuse)
}

func (dc *Decoder) readDisc(d *Deserializer, f *formula.Formula) (int, error) {
	u, err := readUint(d, f.DiscriminantSize())
	if err != nil {
		return 0, err
	}
	if n := len(f.Variants()); u >= uint64(n) {
		return 0, errors.UnexpectedDiscriminant(d.phase, nil, uint32(u), n)
	}
	return int(u), nil
}

func (dc *Decoder) decodeEnum(d *Deserializer, p *plan, v reflect.Value, inPlace bool) error {
	disc, err := dc.readDisc(d, p.f)
	if err != nil {
		return err
	}

	switch p.bind {
	case bindEnumInt:
		if v.CanInt() {
			v.SetInt(int64(disc))
		} else {
			v.SetUint(uint64(disc))
		}
		return nil

	case bindEnumPtrs:
		for i, c := range p.cases {
			if i != disc {
				v.Field(c.index).SetZero()
			}
		}
		c := p.cases[disc]
		fv := v.Field(c.index)
		reuse := inPlace && !fv.IsNil()
		if !reuse {
			fv.Set(reflect.New(fv.Type().Elem()))
		}
		return withPath(dc.decodeFields(d, c.plan.fields, fv.Elem(), reuse), c.name)

	default:
		c := p.cases[disc]
		fields, err := dc.decodeAny(d, c.plan)
		if err != nil {
			return withPath(err, c.name)
		}
		v.Set(reflect.ValueOf(newVariant(c.name, fields)))
		return nil
	}
}
