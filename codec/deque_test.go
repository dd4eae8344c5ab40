package codec

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/zerocopy/formula"
)

func collect[T any](q *Deque[T]) []T {
	var out []T
	for _, x := range q.All() {
		out = append(out, x)
	}
	return out
}

func TestDeque_Ring(t *testing.T) {
	q := NewDeque[int](4)
	for i := range 4 {
		q.PushBack(i)
	}
	for range 2 {
		_, ok := q.PopFront()
		require.True(t, ok)
	}
	q.PushBack(4)
	q.PushBack(5)

	assert.Equal(t, 4, q.Cap(), "wrapping must not grow")
	a, b := q.AsSlices()
	assert.Equal(t, []int{2, 3}, a)
	assert.Equal(t, []int{4, 5}, b)
	assert.Equal(t, []int{2, 3, 4, 5}, collect(q))

	q.PushFront(1)
	assert.Equal(t, 5, q.Len())
	assert.Equal(t, 1, q.At(0))
	assert.Equal(t, 5, q.At(4))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, collect(q))

	x, ok := q.PopBack()
	assert.True(t, ok)
	assert.Equal(t, 5, x)

	q.Clear()
	assert.Equal(t, 0, q.Len())
	_, ok = q.PopFront()
	assert.False(t, ok)
	_, ok = q.PopBack()
	assert.False(t, ok)
	assert.Panics(t, func() { q.At(0) })
}

func TestDeque_ZeroValue(t *testing.T) {
	var q Deque[string]
	q.PushFront("b")
	q.PushFront("a")
	assert.Equal(t, []string{"a", "b"}, collect(&q))
}

func TestDeque_EncodesLikeList(t *testing.T) {
	wrapped := func() *Deque[byte] {
		q := NewDeque[byte](4)
		q.PushBack(0)
		q.PushBack(0)
		q.PushBack(1)
		q.PopFront()
		q.PopFront()
		q.PushBack(2)
		q.PushBack(3)
		q.PushBack(4)
		return q
	}

	tests := []struct {
		f     *formula.Formula
		deque any
		slice any
		name  string
	}{
		{formula.List(formula.U8), wrapped(), []byte{1, 2, 3, 4}, "wrapped bytes"},
		{formula.List(formula.U32), DequeOf[uint32](1, 2), []uint32{1, 2}, "exact elements"},
		{formula.List(formula.String), DequeOf("x", "", "yz"), []string{"x", "", "yz"}, "indirect elements"},
		{formula.Deque(formula.U16), DequeOf[uint16](9), []uint16{9}, "deque formula"},
		{formula.List(formula.U8), NewDeque[byte](0), []byte{}, "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fromDeque, err := Marshal(tt.f, tt.deque)
			require.NoError(t, err)
			fromSlice, err := Marshal(tt.f, tt.slice)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(fromSlice, fromDeque), "deque %v, slice %v", fromDeque, fromSlice)
		})
	}
}

func TestDeque_InlineSlice(t *testing.T) {
	f := formula.Struct("S", formula.F("n", formula.U8), formula.F("xs", formula.Slice(formula.U16)))
	type withDeque struct {
		Xs *Deque[uint16]
		N  uint8
	}
	type withSlice struct {
		Xs []uint16
		N  uint8
	}

	a, err := Marshal(f, withDeque{N: 1, Xs: DequeOf[uint16](5, 6)})
	require.NoError(t, err)
	b, err := Marshal(f, withSlice{N: 1, Xs: []uint16{5, 6}})
	require.NoError(t, err)
	assert.Equal(t, b, a)

	var out withDeque
	require.NoError(t, Unmarshal(f, a, &out))
	assert.Equal(t, []uint16{5, 6}, collect(out.Xs))
}

func TestDeque_Unmarshal(t *testing.T) {
	t.Run("bytes reuse the ring", func(t *testing.T) {
		data, err := Marshal(formula.List(formula.U8), []byte{7, 8, 9})
		require.NoError(t, err)

		q := NewDeque[byte](16)
		q.PushBack(1)
		backing := &q.buf[0]
		require.NoError(t, UnmarshalInPlace(formula.List(formula.U8), data, q))
		assert.Equal(t, []byte{7, 8, 9}, collect(q))
		assert.Same(t, backing, &q.buf[0])
	})

	t.Run("elements", func(t *testing.T) {
		f := formula.List(pointFormula)
		data, err := Marshal(f, []Point{{1, 2}, {3, 4}})
		require.NoError(t, err)

		var q Deque[Point]
		require.NoError(t, Unmarshal(f, data, &q))
		if diff := cmp.Diff([]Point{{1, 2}, {3, 4}}, collect(&q)); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("map formula is rejected", func(t *testing.T) {
		f := formula.Map(formula.U8, formula.U8)
		_, err := Marshal(f, DequeOf[uint8](1))
		assert.Error(t, err)
	})
}

func TestDeque_Bytes(t *testing.T) {
	wrapped := func() *Deque[byte] {
		q := NewDeque[byte](4)
		q.PushBack(0)
		q.PushBack(0)
		q.PushBack(1)
		q.PopFront()
		q.PopFront()
		q.PushBack(2)
		q.PushBack(3)
		q.PushBack(4)
		return q
	}
	require.Equal(t, 4, wrapped().Cap(), "contents wrap the ring")

	tests := []struct {
		f    *formula.Formula
		name string
	}{
		{formula.Bytes, "bytes"},
		{formula.Ref(formula.Bytes), "ref bytes"},
		{formula.Struct("S", formula.F("b", formula.Bytes), formula.F("n", formula.U8)), "field before last"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var deque, slice any = wrapped(), []byte{1, 2, 3, 4}
			if tt.f.Kind() == formula.KindStruct {
				type withDeque struct {
					B *Deque[byte]
					N uint8
				}
				type withSlice struct {
					B []byte
					N uint8
				}
				deque, slice = withDeque{B: wrapped(), N: 9}, withSlice{B: []byte{1, 2, 3, 4}, N: 9}
			}

			fromDeque, err := Marshal(tt.f, deque)
			require.NoError(t, err)
			fromSlice, err := Marshal(tt.f, slice)
			require.NoError(t, err)
			assert.Equal(t, fromSlice, fromDeque)

			dequeHint, err := SizeHint(tt.f, deque)
			require.NoError(t, err)
			sliceHint, err := SizeHint(tt.f, slice)
			require.NoError(t, err)
			assert.Equal(t, sliceHint, dequeHint)
			assert.Equal(t, len(fromDeque), dequeHint.Total())
		})
	}

	t.Run("unmarshal", func(t *testing.T) {
		for _, f := range []*formula.Formula{formula.Bytes, formula.Ref(formula.Bytes)} {
			data, err := Marshal(f, wrapped())
			require.NoError(t, err)

			var q Deque[byte]
			require.NoError(t, Unmarshal(f, data, &q), f.String())
			assert.Equal(t, []byte{1, 2, 3, 4}, collect(&q), f.String())

			in := NewDeque[byte](16)
			in.PushBack(7)
			backing := &in.buf[0]
			require.NoError(t, UnmarshalInPlace(f, data, in), f.String())
			assert.Equal(t, []byte{1, 2, 3, 4}, collect(in), f.String())
			assert.Same(t, backing, &in.buf[0], "in-place decode reuses the ring")
		}
	})

	t.Run("other elements are rejected", func(t *testing.T) {
		_, err := Marshal(formula.Bytes, DequeOf[uint16](1))
		assert.Error(t, err)

		data, err := Marshal(formula.Bytes, []byte{1})
		require.NoError(t, err)
		var q Deque[uint16]
		assert.Error(t, Unmarshal(formula.Bytes, data, &q))
	})
}
