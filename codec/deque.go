package codec

import (
	"iter"
	"reflect"

	"github.com/wippyai/zerocopy/errors"
	"github.com/wippyai/zerocopy/formula"
)

// Deque is a double-ended queue over a ring buffer. It encodes as a
// reference to the run of its elements from front to back, so a Deque
// and a slice of the same elements produce identical bytes. A Deque[byte]
// also encodes under bytes and ref<bytes>, like a []byte. The zero value
// is an empty deque.
type Deque[T any] struct {
	buf  []T
	head int
	n    int
}

// NewDeque returns an empty deque with room for capacity elements.
func NewDeque[T any](capacity int) *Deque[T] {
	return &Deque[T]{buf: make([]T, capacity)}
}

// DequeOf returns a deque holding items front to back.
func DequeOf[T any](items ...T) *Deque[T] {
	q := NewDeque[T](len(items))
	for _, x := range items {
		q.PushBack(x)
	}
	return q
}

func (q *Deque[T]) Len() int { return q.n }
func (q *Deque[T]) Cap() int { return len(q.buf) }

func (q *Deque[T]) index(i int) int {
	return (q.head + i) % len(q.buf)
}

func (q *Deque[T]) grow(need int) {
	if need <= len(q.buf) {
		return
	}
	nb := make([]T, max(need, 2*len(q.buf), 8))
	a, b := q.AsSlices()
	copy(nb[copy(nb, a):], b)
	q.buf = nb
	q.head = 0
}

// Reserve makes room for n more elements without further allocation.
func (q *Deque[T]) Reserve(n int) {
	q.grow(q.n + n)
}

func (q *Deque[T]) PushBack(x T) {
	q.grow(q.n + 1)
	q.buf[q.index(q.n)] = x
	q.n++
}

func (q *Deque[T]) PushFront(x T) {
	q.grow(q.n + 1)
	q.head = (q.head - 1 + len(q.buf)) % len(q.buf)
	q.buf[q.head] = x
	q.n++
}

func (q *Deque[T]) PopFront() (T, bool) {
	var zero T
	if q.n == 0 {
		return zero, false
	}
	x := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = q.index(1)
	q.n--
	return x, true
}

func (q *Deque[T]) PopBack() (T, bool) {
	var zero T
	if q.n == 0 {
		return zero, false
	}
	i := q.index(q.n - 1)
	x := q.buf[i]
	q.buf[i] = zero
	q.n--
	return x, true
}

// At returns the element i positions from the front.
func (q *Deque[T]) At(i int) T {
	if i < 0 || i >= q.n {
		panic("codec: Deque index out of range")
	}
	return q.buf[q.index(i)]
}

// AsSlices returns the contents as two spans of the backing array, front
// part first. The second span is empty unless the contents wrap.
func (q *Deque[T]) AsSlices() ([]T, []T) {
	if q.n == 0 {
		return nil, nil
	}
	if q.head+q.n <= len(q.buf) {
		return q.buf[q.head : q.head+q.n], nil
	}
	return q.buf[q.head:], q.buf[:q.head+q.n-len(q.buf)]
}

// Clear removes all elements and keeps the backing array.
func (q *Deque[T]) Clear() {
	a, b := q.AsSlices()
	clear(a)
	clear(b)
	q.head, q.n = 0, 0
}

// All yields the elements front to back.
func (q *Deque[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := range q.n {
			if !yield(i, q.buf[q.index(i)]) {
				return
			}
		}
	}
}

func (q *Deque[T]) bytes() (a, b []byte, ok bool) {
	bq, ok := any(q).(*Deque[byte])
	if !ok {
		return nil, nil, false
	}
	a, b = bq.AsSlices()
	return a, b, true
}

// bytesFormula reports whether f is bytes or a reference to bytes, and
// whether the bytes are written inline.
func bytesFormula(f *formula.Formula) (inline, ok bool) {
	switch {
	case f.Kind() == formula.KindBytes:
		return true, true
	case f.Kind() == formula.KindRef && f.Elem().Kind() == formula.KindBytes:
		return false, true
	}
	return false, false
}

func notByteDeque(f *formula.Formula, phase errors.Phase) error {
	return errors.New(phase, errors.KindTypeMismatch).
		GoType("codec.Deque").
		Formula(f.String()).
		Detail("only a deque of bytes encodes as bytes").
		Build()
}

func runFormula(f *formula.Formula, phase errors.Phase) (*formula.Formula, error) {
	switch {
	case f.Indirect() && f.Kind() != formula.KindMap:
		return f.Payload(), nil
	case f.Kind() == formula.KindSlice:
		return f, nil
	}
	return nil, errors.New(phase, errors.KindTypeMismatch).
		GoType("codec.Deque").
		Formula(f.String()).
		Detail("deque needs a list, deque or slice formula").
		Build()
}

// MarshalFormula writes the elements front to back.
func (q *Deque[T]) MarshalFormula(f *formula.Formula, s *Serializer) error {
	if inline, ok := bytesFormula(f); ok {
		a, b, ok := q.bytes()
		if !ok {
			return notByteDeque(f, errors.PhaseEncode)
		}
		write := func(s *Serializer) error {
			if err := s.WriteBytes(a); err != nil {
				return err
			}
			return s.WriteBytes(b)
		}
		if inline {
			return write(s)
		}
		return s.WriteIndirect(f.Elem(), write)
	}

	run, err := runFormula(f, errors.PhaseEncode)
	if err != nil {
		return err
	}
	write := func(s *Serializer) error {
		if run.Elem().Kind() == formula.KindU8 {
			if a, b, ok := q.bytes(); ok {
				if err := s.WriteBytes(a); err != nil {
					return err
				}
				return s.WriteBytes(b)
			}
		}
		p, err := s.enc.compiler.plan(run.Elem(), reflect.TypeFor[T]())
		if err != nil {
			return err
		}
		for i, x := range q.All() {
			if err := s.writeField(p, reflect.ValueOf(&x).Elem(), false); err != nil {
				return withIndex(err, i)
			}
		}
		return nil
	}
	if run == f {
		return write(s)
	}
	return s.WriteIndirect(run, write)
}

// SizeHint reports the sizes of a deque of exact heapless elements.
func (q *Deque[T]) SizeHint(f *formula.Formula) (Sizes, bool) {
	if inline, ok := bytesFormula(f); ok {
		if _, _, ok := q.bytes(); !ok {
			return Sizes{}, false
		}
		if inline {
			return Sizes{Stack: q.n}, true
		}
		return Sizes{Heap: q.n, Stack: ReferenceSize}, true
	}

	run, err := runFormula(f, errors.PhaseEncode)
	if err != nil {
		return Sizes{}, false
	}
	ef := run.Elem()
	if !ef.ExactSize() || !ef.Heapless() {
		return Sizes{}, false
	}
	n := q.n * ef.Stride()
	if run == f {
		return Sizes{Stack: n}, true
	}
	return Sizes{Heap: n, Stack: ReferenceSize}, true
}

// UnmarshalFormula replaces the contents with the decoded elements,
// reusing the backing array.
func (q *Deque[T]) UnmarshalFormula(f *formula.Formula, d Deserializer) error {
	if inline, ok := bytesFormula(f); ok {
		bq, ok := any(q).(*Deque[byte])
		if !ok {
			return notByteDeque(f, d.phase)
		}
		if !inline {
			var err error
			if d, err = d.Deref(f.Elem()); err != nil {
				return err
			}
		}
		if d.dec != nil && d.Len() > d.dec.opts.MaxStringSize {
			return errors.Overflow(d.phase, nil, d.Len(), "max string size")
		}
		b := d.ReadAllBytes()
		bq.Clear()
		bq.Reserve(len(b))
		bq.n = copy(bq.buf, b)
		return nil
	}

	run, err := runFormula(f, d.phase)
	if err != nil {
		return err
	}
	if run != f {
		if d, err = d.Deref(run); err != nil {
			return err
		}
	}
	it, err := d.IntoUnsizedIter(run.Elem())
	if err != nil {
		return err
	}

	q.Clear()
	q.Reserve(it.Remaining())

	if bq, ok := any(q).(*Deque[byte]); ok && run.Elem().Kind() == formula.KindU8 {
		n := copy(bq.buf, it.Bytes())
		bq.n = n
		return nil
	}

	if d.dec == nil {
		return errors.InvalidInput(d.phase, "cursor has no decoder")
	}
	p, err := d.dec.compiler.plan(run.Elem(), reflect.TypeFor[T]())
	if err != nil {
		return err
	}
	for i := 0; it.Next(); i++ {
		var x T
		if err := d.dec.decode(it.Elem(), p, reflect.ValueOf(&x).Elem(), false); err != nil {
			return withIndex(err, i)
		}
		q.PushBack(x)
	}
	return it.Err()
}
