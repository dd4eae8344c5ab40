package codec

import (
	"math"
	"reflect"

	"github.com/wippyai/zerocopy/errors"
	"github.com/wippyai/zerocopy/formula"
)

// Serializer writes the members of one aggregate into a Buffer. It keeps
// the shared Sizes exact after every call: bytes and counts are committed
// together or not at all.
//
// The first failing write is remembered and returned again by Finish, so
// a sequence of writes may be checked once at the end.
type Serializer struct {
	buf   Buffer
	sizes *Sizes
	enc   *Encoder
	err   error
	count int
	done  bool
}

func newSerializer(enc *Encoder, buf Buffer, sizes *Sizes) *Serializer {
	return &Serializer{buf: buf, sizes: sizes, enc: enc}
}

// Sizes returns the committed totals.
func (s *Serializer) Sizes() Sizes {
	return *s.sizes
}

func (s *Serializer) fail(err error) error {
	if s.err == nil {
		s.err = err
	}
	return err
}

func (s *Serializer) usable() error {
	if s.done {
		return errors.New(errors.PhaseEncode, errors.KindInvalidInput).
			Detail("write after Finish").
			Build()
	}
	return nil
}

// WriteBytes appends raw bytes to the stack.
func (s *Serializer) WriteBytes(p []byte) error {
	if err := s.usable(); err != nil {
		return s.fail(err)
	}
	if err := s.buf.WriteStack(s.sizes.Heap, s.sizes.Stack, p); err != nil {
		return s.fail(err)
	}
	s.sizes.Stack += len(p)
	return nil
}

func (s *Serializer) padStack(n int) error {
	if n == 0 {
		return nil
	}
	if err := s.buf.PadStack(s.sizes.Heap, s.sizes.Stack, n); err != nil {
		return s.fail(err)
	}
	s.sizes.Stack += n
	return nil
}

// WriteValue writes v as a member followed by others: unbounded formulas go
// to the heap behind a reference, bounded ones are padded to their bound.
func (s *Serializer) WriteValue(f *formula.Formula, v any) error {
	return s.writeDynamic(f, v, false)
}

// WriteLastValue writes v as the final member, inline and unpadded.
func (s *Serializer) WriteLastValue(f *formula.Formula, v any) error {
	return s.writeDynamic(f, v, true)
}

func (s *Serializer) writeDynamic(f *formula.Formula, v any, last bool) error {
	if err := s.usable(); err != nil {
		return s.fail(err)
	}
	goType := anyType
	rv := reflect.Zero(anyType)
	if v != nil {
		goType = reflect.TypeOf(v)
		rv = reflect.ValueOf(v)
	}
	p, err := s.enc.compiler.plan(f, goType)
	if err != nil {
		return s.fail(err)
	}
	return s.writeField(p, rv, last)
}

// WriteIndirect writes a payload of formula f through fn, moves it to the
// heap and writes a reference to it. The reference length is the payload
// byte count, or the element count when f is a slice.
func (s *Serializer) WriteIndirect(f *formula.Formula, fn func(*Serializer) error) error {
	if err := s.usable(); err != nil {
		return s.fail(err)
	}

	start := s.sizes.Stack
	inner := &Serializer{buf: s.buf.Reborrow(), sizes: s.sizes, enc: s.enc}
	if err := fn(inner); err != nil {
		return s.fail(err)
	}
	if inner.err != nil {
		return s.fail(inner.err)
	}

	n := s.sizes.Stack - start
	length := n
	if f.Kind() == formula.KindSlice {
		if stride := f.Elem().Stride(); stride > 0 {
			length = n / stride
		} else {
			length = inner.count
		}
	}

	offset := s.sizes.Heap
	if offset > math.MaxUint32 || length > math.MaxUint32 {
		return s.fail(errors.Overflow(errors.PhaseEncode, nil, offset, "u32 reference"))
	}
	if err := s.buf.MoveToHeap(s.sizes.Heap, s.sizes.Stack, n); err != nil {
		return s.fail(err)
	}
	s.sizes.Heap += n
	s.sizes.Stack = start

	var ref [ReferenceSize]byte
	PutReference(ref[:], Reference{Offset: uint32(offset), Length: uint32(length)})
	return s.WriteBytes(ref[:])
}

// Finish ends the aggregate and reports the first write failure, if any.
func (s *Serializer) Finish() error {
	s.done = true
	return s.err
}

// Reborrow returns a second serializer over the same buffer and Sizes.
func (s *Serializer) Reborrow() *Serializer {
	return &Serializer{buf: s.buf.Reborrow(), sizes: s.sizes, enc: s.enc}
}

// writeField applies the placement rule for a member of formula p.f.
func (s *Serializer) writeField(p *plan, v reflect.Value, last bool) error {
	// nested members written through s must not count at this level
	c := s.count
	if err := s.place(p.f, last, func(t *Serializer) error {
		return s.enc.encode(t, p, v)
	}); err != nil {
		return err
	}
	s.count = c + 1
	return nil
}
