package codec

import (
	"bytes"
	"errors"
	"testing"

	zcerrors "github.com/wippyai/zerocopy/errors"
	"github.com/wippyai/zerocopy/formula"
)

type named struct {
	Name string
	ID   uint32
}

type padded struct {
	A uint8
	B *uint8
	C uint16
}

func ref(off, n uint32) []byte {
	return AppendReference(nil, Reference{Offset: off, Length: n})
}

func cat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func TestMarshal_Layout(t *testing.T) {
	seven := uint32(7)
	nameFormula := formula.Struct("Named", formula.F("name", formula.String), formula.F("id", formula.U32))
	paddedFormula := formula.Struct("Padded",
		formula.F("a", formula.U8),
		formula.F("b", formula.Option(formula.U8)),
		formula.F("c", formula.U16),
	)

	tests := []struct {
		f     *formula.Formula
		value any
		name  string
		want  []byte
	}{
		{formula.U32, uint32(0x04030201), "u32", []byte{1, 2, 3, 4}},
		{formula.I16, int16(-2), "i16", []byte{0xfe, 0xff}},
		{formula.Bool, true, "bool", []byte{1}},
		{formula.Unit, struct{}{}, "unit", nil},
		{formula.Option(formula.U32), (*uint32)(nil), "option none padded", []byte{0, 0, 0, 0, 0}},
		{formula.Option(formula.U32), &seven, "option some", []byte{1, 7, 0, 0, 0}},
		{formula.String, "hi", "string root", cat(ref(0, 2), []byte("hi"))},
		{formula.Bytes, "raw", "bytes from string", cat(ref(0, 3), []byte("raw"))},
		{formula.List(formula.U8), []byte{2, 3, 4}, "list u8", cat(ref(0, 3), []byte{2, 3, 4})},
		{formula.List(formula.U16), []uint16{1, 2}, "list u16 counts elements", cat(ref(0, 2), []byte{1, 0, 2, 0})},
		{formula.Array(formula.U8, 3), [3]byte{9, 8, 7}, "array", []byte{9, 8, 7}},
		{formula.Tuple(formula.U8, formula.U16), struct {
			A uint8
			B uint16
		}{1, 2}, "tuple", []byte{1, 2, 0}},
		{paddedFormula, padded{A: 1, C: 0x0302}, "padded option field", []byte{1, 0, 0, 2, 3}},
		{
			nameFormula, named{Name: "ab", ID: 5}, "nested reference",
			// root ref -> struct payload at heap offset 2, which refers back to "ab" at 0
			cat(ref(2, 12), []byte("ab"), ref(0, 2), []byte{5, 0, 0, 0}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.f, tt.value)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Marshal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMarshal_RootStackIsStride(t *testing.T) {
	formulas := []*formula.Formula{
		formula.U8,
		formula.Option(formula.U64),
		formula.String,
		formula.List(formula.String),
		formula.Struct("S", formula.F("a", formula.U8), formula.F("b", formula.Bytes)),
	}
	values := []any{uint8(1), (*uint64)(nil), "x", []string{"a"}, struct {
		A uint8
		B []byte
	}{1, []byte{1}}}

	for i, f := range formulas {
		_, sizes, err := MarshalAppend(f, values[i], nil)
		if err != nil {
			t.Fatalf("%s: MarshalAppend() error = %v", f, err)
		}
		if sizes.Stack != f.Stride() {
			t.Errorf("%s: root stack = %d, want %d", f, sizes.Stack, f.Stride())
		}
	}
}

func TestMarshalAppend_KeepsPrefix(t *testing.T) {
	dst := []byte("head")
	out, sizes, err := MarshalAppend(formula.String, "xy", dst)
	if err != nil {
		t.Fatalf("MarshalAppend() error = %v", err)
	}
	want := cat([]byte("head"), ref(0, 2), []byte("xy"))
	if !bytes.Equal(out, want) {
		t.Errorf("MarshalAppend() = %v, want %v", out, want)
	}
	if sizes != (Sizes{Heap: 2, Stack: 8}) {
		t.Errorf("sizes = %v, want stack=8 heap=2", sizes)
	}
}

func TestMarshalInto_OutOfSpace(t *testing.T) {
	dst := make([]byte, 4)
	_, _, err := MarshalInto(formula.U64, uint64(1), dst)
	if !errors.Is(err, zcerrors.ErrOutOfSpace) {
		t.Fatalf("MarshalInto() error = %v, want out_of_space", err)
	}

	dst = make([]byte, 11)
	n, _, err := MarshalInto(formula.List(formula.U8), []byte{2, 3, 4}, dst)
	if err != nil {
		t.Fatalf("MarshalInto() error = %v", err)
	}
	if n != 11 || !bytes.Equal(dst, cat(ref(0, 3), []byte{2, 3, 4})) {
		t.Errorf("MarshalInto() = %d %v", n, dst)
	}
}

func TestSerializer_OptionBytes(t *testing.T) {
	enc := NewEncoder(Options{})
	f := formula.Option(formula.U32)
	v := uint32(9)

	tests := []struct {
		value any
		name  string
		want  int
	}{
		{(*uint32)(nil), "none", 1},
		{&v, "some", 1 + 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sizes Sizes
			buf := NewVecBuffer(nil)
			s := newSerializer(enc, buf, &sizes)
			if err := s.WriteLastValue(f, tt.value); err != nil {
				t.Fatalf("WriteLastValue() error = %v", err)
			}
			if err := s.Finish(); err != nil {
				t.Fatalf("Finish() error = %v", err)
			}
			if sizes.Stack != tt.want || sizes.Heap != 0 {
				t.Errorf("sizes = %v, want stack=%d", sizes, tt.want)
			}
		})
	}
}

func TestSerializer_WriteAfterFinish(t *testing.T) {
	var sizes Sizes
	s := newSerializer(NewEncoder(Options{}), NewVecBuffer(nil), &sizes)
	if err := s.Finish(); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if err := s.WriteBytes([]byte{1}); err == nil {
		t.Error("WriteBytes() after Finish should fail")
	}
	if sizes.Stack != 0 {
		t.Errorf("sizes = %v, want untouched", sizes)
	}
}

func TestSerializer_FailedWriteKeepsSizes(t *testing.T) {
	var sizes Sizes
	s := newSerializer(NewEncoder(Options{}), NewFixedBuffer(make([]byte, 3)), &sizes)
	if err := s.WriteBytes([]byte{1, 2}); err != nil {
		t.Fatalf("WriteBytes() error = %v", err)
	}
	if err := s.WriteBytes([]byte{3, 4}); !errors.Is(err, zcerrors.ErrOutOfSpace) {
		t.Fatalf("WriteBytes() error = %v, want out_of_space", err)
	}
	if sizes.Stack != 2 {
		t.Errorf("sizes.Stack = %d, want 2", sizes.Stack)
	}
	if err := s.Finish(); !errors.Is(err, zcerrors.ErrOutOfSpace) {
		t.Errorf("Finish() error = %v, want the first failure", err)
	}
}

func TestMarshal_MapOrder(t *testing.T) {
	f := formula.Map(formula.String, formula.U8)
	m := map[string]uint8{"b": 2, "a": 1, "c": 3}

	first, err := Marshal(f, m)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for range 10 {
		again, err := Marshal(f, map[string]uint8{"c": 3, "a": 1, "b": 2})
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("equal maps encoded differently:\n%v\n%v", first, again)
		}
	}

	dyn, err := Marshal(f, map[any]any{"a": 1, "c": 3, "b": 2})
	if err != nil {
		t.Fatalf("Marshal(dynamic) error = %v", err)
	}
	if !bytes.Equal(first, dyn) {
		t.Errorf("dynamic map = %v, want %v", dyn, first)
	}
}

func TestMarshal_Errors(t *testing.T) {
	enum := formula.Enum("E", formula.V("A"), formula.V("B"))

	tests := []struct {
		f     *formula.Formula
		value any
		name  string
		kind  zcerrors.Kind
	}{
		{formula.U32, "nope", "type mismatch", zcerrors.KindTypeMismatch},
		{formula.String, string([]byte{0xff}), "invalid utf8", zcerrors.KindInvalidUTF8},
		{enum, 5, "discriminant", zcerrors.KindUnexpectedDiscriminant},
		{formula.Array(formula.U8, 2), []byte{1}, "array length", zcerrors.KindInvalidData},
		{formula.List(formula.U8), []any{300}, "overflow", zcerrors.KindOverflow},
		{formula.Struct("S", formula.F("missing", formula.U8)), struct{ Other uint8 }{}, "field missing", zcerrors.KindFieldMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Marshal(tt.f, tt.value)
			var ze *zcerrors.Error
			if !errors.As(err, &ze) {
				t.Fatalf("Marshal() error = %v, want *errors.Error", err)
			}
			if ze.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", ze.Kind, tt.kind)
			}
		})
	}
}

func TestMarshal_ErrorPath(t *testing.T) {
	f := formula.Struct("Outer",
		formula.F("items", formula.List(formula.Struct("Item", formula.F("label", formula.String)))),
	)
	value := map[string]any{
		"items": []any{
			map[string]any{"label": "ok"},
			map[string]any{"label": string([]byte{0xc3})},
		},
	}
	_, err := Marshal(f, value)
	var ze *zcerrors.Error
	if !errors.As(err, &ze) {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := []string{"items", "[1]", "label"}
	if len(ze.Path) != len(want) {
		t.Fatalf("Path = %v, want %v", ze.Path, want)
	}
	for i := range want {
		if ze.Path[i] != want[i] {
			t.Errorf("Path = %v, want %v", ze.Path, want)
			break
		}
	}
}
