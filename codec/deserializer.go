package codec

import (
	"reflect"

	"github.com/wippyai/zerocopy/errors"
	"github.com/wippyai/zerocopy/formula"
	"github.com/wippyai/zerocopy/internal/abi"
)

// Deserializer is a read-only cursor over one encoded value: stack is the
// unread window of the value, heap the bytes its references may address.
// Copies are independent cursors over the same input.
type Deserializer struct {
	dec   *Decoder
	heap  []byte
	stack []byte
	phase errors.Phase
	// count is the element count carried by the reference that opened
	// this cursor, or -1.
	count int
	depth int
}

func newDeserializer(dec *Decoder, phase errors.Phase, data []byte, stackSize int) (Deserializer, error) {
	if len(data) < stackSize {
		return Deserializer{}, errors.UnexpectedEnd(phase, nil, stackSize, len(data))
	}
	return Deserializer{
		dec:   dec,
		heap:  data[stackSize:],
		stack: data[:stackSize],
		phase: phase,
		count: -1,
	}, nil
}

// Len returns the number of unread stack bytes.
func (d *Deserializer) Len() int {
	return len(d.stack)
}

// HeapLen returns the number of heap bytes visible to this cursor.
func (d *Deserializer) HeapLen() int {
	return len(d.heap)
}

// ReadBytes consumes the next n stack bytes.
func (d *Deserializer) ReadBytes(n int) ([]byte, error) {
	if n > len(d.stack) {
		return nil, errors.UnexpectedEnd(d.phase, nil, n, len(d.stack))
	}
	b := d.stack[:n:n]
	d.stack = d.stack[n:]
	return b, nil
}

// ReadAllBytes consumes the rest of the window.
func (d *Deserializer) ReadAllBytes() []byte {
	b := d.stack[:len(d.stack):len(d.stack)]
	d.stack = d.stack[len(d.stack):]
	return b
}

// ReadReference consumes a reference.
func (d *Deserializer) ReadReference() (Reference, error) {
	b, err := d.ReadBytes(ReferenceSize)
	if err != nil {
		return Reference{}, err
	}
	return ParseReference(b), nil
}

func (d *Deserializer) child() (Deserializer, error) {
	if d.dec != nil && d.depth >= d.dec.opts.MaxDepth {
		return Deserializer{}, errors.New(d.phase, errors.KindOverflow).
			Detail("nesting deeper than %d", d.dec.opts.MaxDepth).
			Build()
	}
	return Deserializer{dec: d.dec, heap: d.heap, phase: d.phase, count: -1, depth: d.depth + 1}, nil
}

// Deref reads a reference and returns a cursor over the payload of formula
// f it addresses. The payload only sees heap bytes before its own start.
func (d *Deserializer) Deref(f *formula.Formula) (Deserializer, error) {
	ref, err := d.ReadReference()
	if err != nil {
		return Deserializer{}, err
	}
	return d.deref(f, ref)
}

func (d *Deserializer) deref(f *formula.Formula, ref Reference) (Deserializer, error) {
	sub, err := d.child()
	if err != nil {
		return Deserializer{}, err
	}

	n := int(ref.Length)
	if f.Kind() == formula.KindSlice {
		if err := d.checkCount(n); err != nil {
			return Deserializer{}, err
		}
		sub.count = n
		var ok bool
		if n, ok = abi.SafeMul(n, f.Elem().Stride()); !ok {
			return Deserializer{}, errors.InvalidReference(d.phase, nil, ref.Offset, ref.Length, len(d.heap))
		}
	}

	off := int(ref.Offset)
	end, ok := abi.SafeAdd(off, n)
	if !ok || end > len(d.heap) {
		return Deserializer{}, errors.InvalidReference(d.phase, nil, ref.Offset, ref.Length, len(d.heap))
	}
	sub.heap = d.heap[:off:off]
	sub.stack = d.heap[off:end:end]
	return sub, nil
}

func (d *Deserializer) checkCount(n int) error {
	if d.dec != nil && n > d.dec.opts.MaxListLength {
		return errors.Overflow(d.phase, nil, n, "max list length")
	}
	return nil
}

// Field returns the window of the next member of formula f, mirroring how
// it was placed: a dereferenced payload for unbounded non-last members, the
// padded bound for bounded ones, and the rest of the window for the last.
func (d *Deserializer) Field(f *formula.Formula, last bool) (Deserializer, error) {
	maxStack, bounded := f.MaxStackSize().Value()

	switch {
	case !bounded && !last:
		return d.Deref(f)
	case bounded && !last:
		window, err := d.ReadBytes(maxStack)
		if err != nil {
			return Deserializer{}, err
		}
		sub, err := d.child()
		if err != nil {
			return Deserializer{}, err
		}
		sub.stack = window
		return sub, nil
	default:
		sub, err := d.child()
		if err != nil {
			return Deserializer{}, err
		}
		sub.stack = d.ReadAllBytes()
		return sub, nil
	}
}

// Sub returns a copy of the cursor that can be read without advancing d.
func (d *Deserializer) Sub() Deserializer {
	return *d
}

// IntoUnsizedIter consumes the window as a run of elements of formula elem.
// The count comes from the reference that opened the window, or from the
// window length when the run was written inline.
func (d *Deserializer) IntoUnsizedIter(elem *formula.Formula) (*Iter, error) {
	n := d.count
	if n < 0 {
		stride := elem.Stride()
		if stride == 0 {
			return nil, errors.New(d.phase, errors.KindUnsupported).
				Formula(elem.String()).
				Detail("inline run of zero-sized elements has no length").
				Build()
		}
		if len(d.stack)%stride != 0 {
			return nil, errors.InvalidData(d.phase, nil, "sequence window is not a whole number of elements")
		}
		n = len(d.stack) / stride
		if err := d.checkCount(n); err != nil {
			return nil, err
		}
	}
	it := &Iter{d: *d, elem: elem, n: n}
	d.stack = d.stack[len(d.stack):]
	return it, nil
}

// IntoArrayIter consumes exactly n elements of formula elem.
func (d *Deserializer) IntoArrayIter(elem *formula.Formula, n int) (*Iter, error) {
	total, ok := abi.SafeMul(elem.Stride(), n)
	if !ok {
		return nil, errors.Overflow(d.phase, nil, n, "array length")
	}
	window, err := d.ReadBytes(total)
	if err != nil {
		return nil, err
	}
	sub := *d
	sub.stack = window
	return &Iter{d: sub, elem: elem, n: n}, nil
}

// ReadValue decodes the next member of formula f into dst, which must be a
// non-nil pointer.
func (d *Deserializer) ReadValue(f *formula.Formula, last bool, dst any) error {
	return d.read(f, last, dst, false)
}

// ReadInPlace decodes the next member into the existing value at dst,
// reusing its allocations.
func (d *Deserializer) ReadInPlace(f *formula.Formula, last bool, dst any) error {
	return d.read(f, last, dst, true)
}

func (d *Deserializer) read(f *formula.Formula, last bool, dst any, inPlace bool) error {
	if d.dec == nil {
		return errors.InvalidInput(d.phase, "cursor has no decoder")
	}
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New(d.phase, errors.KindNilPointer).
			GoType(abi.TypeName(dst)).
			Detail("destination must be a non-nil pointer").
			Build()
	}
	p, err := d.dec.compiler.plan(f, rv.Type().Elem())
	if err != nil {
		return err
	}
	sub, err := d.Field(f, last)
	if err != nil {
		return err
	}
	return d.dec.decode(&sub, p, rv.Elem(), inPlace)
}
