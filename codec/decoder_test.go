package codec

import (
	"errors"
	"math"
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	zcerrors "github.com/wippyai/zerocopy/errors"
	"github.com/wippyai/zerocopy/formula"
)

type Point struct {
	X int32
	Y int32
}

type Circle struct {
	Radius float64
}

type Rect struct {
	W uint16
	H uint16
}

type Shape struct {
	Circle *Circle
	Rect   *Rect
	Empty  *struct{}
}

type Record struct {
	Labels map[string]uint32
	Parent *Point
	Name   string
	Path   []Point
	Tags   []string
	Blob   []byte
	Shape  Shape
	Flags  [2]bool
	ID     uint64
}

var (
	pointFormula = formula.Struct("Point", formula.F("x", formula.I32), formula.F("y", formula.I32))
	shapeFormula = formula.Enum("Shape",
		formula.V("Circle", formula.F("radius", formula.F64)),
		formula.V("Rect", formula.F("w", formula.U16), formula.F("h", formula.U16)),
		formula.V("Empty"),
	)
	recordFormula = formula.Struct("Record",
		formula.F("id", formula.U64),
		formula.F("name", formula.String),
		formula.F("path", formula.List(pointFormula)),
		formula.F("tags", formula.List(formula.String)),
		formula.F("labels", formula.Map(formula.String, formula.U32)),
		formula.F("parent", formula.Option(pointFormula)),
		formula.F("shape", shapeFormula),
		formula.F("flags", formula.Array(formula.Bool, 2)),
		formula.F("blob", formula.Bytes),
	)
)

func roundTrip[T any](t *testing.T, f *formula.Formula, v T) T {
	t.Helper()
	data, err := Marshal(f, v)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var out T
	if err := Unmarshal(f, data, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	return out
}

func TestRoundTrip_Scalars(t *testing.T) {
	check := func(name string, got, want any) {
		t.Helper()
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", name, diff)
		}
	}

	check("u8", roundTrip(t, formula.U8, uint8(200)), uint8(200))
	check("i8", roundTrip(t, formula.I8, int8(-100)), int8(-100))
	check("u16", roundTrip(t, formula.U16, uint16(65535)), uint16(65535))
	check("i32", roundTrip(t, formula.I32, int32(math.MinInt32)), int32(math.MinInt32))
	check("u64", roundTrip(t, formula.U64, uint64(math.MaxUint64)), uint64(math.MaxUint64))
	check("i64", roundTrip(t, formula.I64, int64(-1)), int64(-1))
	check("int", roundTrip(t, formula.I64, -42), -42)
	check("f32", roundTrip(t, formula.F32, float32(1.5)), float32(1.5))
	check("f64", roundTrip(t, formula.F64, math.Pi), math.Pi)
	check("bool", roundTrip(t, formula.Bool, true), true)
	check("string", roundTrip(t, formula.String, "héllo"), "héllo")
	check("empty string", roundTrip(t, formula.String, ""), "")
	check("bytes", roundTrip(t, formula.Bytes, []byte{0, 1, 2}), []byte{0, 1, 2})
	check("bytes as string", roundTrip(t, formula.Bytes, "raw"), "raw")
}

func TestRoundTrip_Record(t *testing.T) {
	tests := []struct {
		name  string
		value Record
	}{
		{"zero", Record{Shape: Shape{Empty: &struct{}{}}}},
		{"full", Record{
			ID:     7,
			Name:   "track",
			Path:   []Point{{1, 2}, {-3, 4}, {5, -6}},
			Tags:   []string{"a", "", "ccc"},
			Labels: map[string]uint32{"x": 1, "y": 2},
			Parent: &Point{X: 9, Y: 9},
			Shape:  Shape{Rect: &Rect{W: 3, H: 4}},
			Flags:  [2]bool{true, false},
			Blob:   []byte("tail bytes"),
		}},
		{"circle", Record{Shape: Shape{Circle: &Circle{Radius: 2.5}}, Tags: []string{"only"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundTrip(t, recordFormula, tt.value)
			if diff := cmp.Diff(tt.value, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRoundTrip_Containers(t *testing.T) {
	t.Run("nested lists", func(t *testing.T) {
		f := formula.List(formula.List(formula.U16))
		v := [][]uint16{{1}, {}, {2, 3, 4}}
		got := roundTrip(t, f, v)
		if diff := cmp.Diff(v, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("array of strings", func(t *testing.T) {
		f := formula.Array(formula.String, 3)
		v := [3]string{"x", "yy", ""}
		if got := roundTrip(t, f, v); got != v {
			t.Errorf("got %v, want %v", got, v)
		}
	})

	t.Run("array into slice", func(t *testing.T) {
		f := formula.Array(formula.U32, 2)
		v := []uint32{10, 20}
		if diff := cmp.Diff(v, roundTrip(t, f, v)); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("map with struct keys", func(t *testing.T) {
		f := formula.Map(pointFormula, formula.String)
		v := map[Point]string{{1, 2}: "a", {0, 0}: "origin"}
		if diff := cmp.Diff(v, roundTrip(t, f, v)); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("ref", func(t *testing.T) {
		f := formula.Ref(pointFormula)
		v := Point{X: 5, Y: 6}
		if got := roundTrip(t, f, v); got != v {
			t.Errorf("got %v, want %v", got, v)
		}
	})

	t.Run("inline slice tail", func(t *testing.T) {
		f := formula.Struct("S", formula.F("n", formula.U8), formula.F("xs", formula.Slice(formula.U32)))
		type S struct {
			N  uint8
			Xs []uint32
		}
		v := S{N: 2, Xs: []uint32{7, 8}}
		if diff := cmp.Diff(v, roundTrip(t, f, v)); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("zero sized elements", func(t *testing.T) {
		f := formula.List(formula.Unit)
		v := []struct{}{{}, {}, {}}
		if got := roundTrip(t, f, v); len(got) != 3 {
			t.Errorf("len = %d, want 3", len(got))
		}
	})

	t.Run("enum as integer", func(t *testing.T) {
		f := formula.Enum("Color", formula.V("Red"), formula.V("Green"), formula.V("Blue"))
		type Color uint8
		if got := roundTrip(t, f, Color(2)); got != 2 {
			t.Errorf("got %d, want 2", got)
		}
	})

	t.Run("open enum", func(t *testing.T) {
		f := formula.OpenEnum("Op", formula.V("Get"), formula.V("Put", formula.F("key", formula.String)))
		v := Variant{Name: "Put", Value: map[string]any{"key": "k"}}
		if diff := cmp.Diff(v, roundTrip(t, f, v)); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestUnmarshal_SequenceScenario(t *testing.T) {
	f := formula.List(formula.U8)
	data, err := Marshal(f, []byte{2, 3, 4})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	r := ParseReference(data)
	if r.Length != 3 {
		t.Errorf("reference length = %d, want 3", r.Length)
	}
	heap := data[ReferenceSize:]
	if got := heap[r.Offset : r.Offset+r.Length]; string(got) != "\x02\x03\x04" {
		t.Errorf("payload = %v, want [2 3 4]", got)
	}

	var out []byte
	if err := Unmarshal(f, data, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if diff := cmp.Diff([]byte{2, 3, 4}, out); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshal_OptionDiscriminant(t *testing.T) {
	f := formula.Option(formula.U8)
	tests := []struct {
		want *uint8
		name string
		data []byte
	}{
		{nil, "absent", []byte{0, 0}},
		{ptr(uint8(9)), "present", []byte{1, 9}},
		{ptr(uint8(9)), "any nonzero is present", []byte{2, 9}},
		{ptr(uint8(9)), "0xff is present", []byte{0xff, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *uint8
			if err := Unmarshal(f, tt.data, &got); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestUnmarshal_Errors(t *testing.T) {
	twoVariants := formula.Enum("E", formula.V("A"), formula.V("B"))

	tests := []struct {
		f      *formula.Formula
		target any
		want   error
		name   string
		data   []byte
	}{
		{formula.U32, new(uint32), zcerrors.ErrUnexpectedEnd, "short root", []byte{1, 2}},
		{formula.List(formula.U8), new([]byte), zcerrors.ErrInvalidReference, "reference past heap", cat(ref(0, 10), []byte{1, 2, 3})},
		{formula.List(formula.U8), new([]byte), zcerrors.ErrInvalidReference, "offset overflow", cat(ref(math.MaxUint32, 2), []byte{1})},
		{
			formula.List(formula.List(formula.U8)), new([][]byte), zcerrors.ErrInvalidReference,
			"reference into its own payload", cat(ref(0, 1), ref(0, 1)),
		},
		{formula.List(formula.U32), new([]uint32), zcerrors.ErrInvalidReference, "count past heap", cat(ref(0, 2), []byte{1, 0, 0, 0})},
		{twoVariants, new(int), zcerrors.ErrUnexpectedDiscriminant, "unknown variant", []byte{5}},
		{shapeFormula, new(Shape), zcerrors.ErrUnexpectedDiscriminant, "unknown shape", []byte{3, 0, 0, 0, 0, 0, 0, 0, 0}},
		{shapeFormula, new(Variant), zcerrors.ErrUnexpectedDiscriminant, "unknown dynamic shape", []byte{3, 0, 0, 0, 0, 0, 0, 0, 0}},
		{pointFormula, new(Point), zcerrors.ErrUnexpectedEnd, "truncated struct", []byte{1, 0, 0, 0, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Unmarshal(tt.f, tt.data, tt.target)
			if !errors.Is(err, tt.want) {
				t.Errorf("Unmarshal() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUnmarshal_InvalidData(t *testing.T) {
	tests := []struct {
		f      *formula.Formula
		target any
		name   string
		kind   zcerrors.Kind
		data   []byte
	}{
		{formula.Bool, new(bool), "bool byte", zcerrors.KindInvalidData, []byte{2}},
		{formula.String, new(string), "utf8", zcerrors.KindInvalidUTF8, cat(ref(0, 1), []byte{0xff})},
		{formula.U32, new(string), "binding", zcerrors.KindTypeMismatch, []byte{0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Unmarshal(tt.f, tt.data, tt.target)
			var ze *zcerrors.Error
			if !errors.As(err, &ze) || ze.Kind != tt.kind {
				t.Errorf("Unmarshal() error = %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestUnmarshal_NonPointerTarget(t *testing.T) {
	var v uint8
	if err := Unmarshal(formula.U8, []byte{1}, v); err == nil {
		t.Error("Unmarshal() into a non-pointer should fail")
	}
	if err := Unmarshal(formula.U8, []byte{1}, (*uint8)(nil)); err == nil {
		t.Error("Unmarshal() into a nil pointer should fail")
	}
}

func TestUnmarshal_FailureLeavesTarget(t *testing.T) {
	target := Point{X: 1, Y: 2}
	if err := Unmarshal(pointFormula, []byte{9, 9}, &target); err == nil {
		t.Fatal("Unmarshal() error = nil")
	}
	if target != (Point{X: 1, Y: 2}) {
		t.Errorf("target = %v, want unchanged", target)
	}
}

func TestDecoder_Limits(t *testing.T) {
	data, err := Marshal(formula.List(formula.U8), []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	dec := NewDecoder(Options{MaxListLength: 2})
	var out []byte
	err = dec.Unmarshal(formula.List(formula.U8), data, &out)
	var ze *zcerrors.Error
	if !errors.As(err, &ze) || ze.Kind != zcerrors.KindOverflow {
		t.Errorf("Unmarshal() error = %v, want overflow", err)
	}

	str, err := Marshal(formula.String, "abcdef")
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var s string
	err = NewDecoder(Options{MaxStringSize: 4}).Unmarshal(formula.String, str, &s)
	if !errors.As(err, &ze) || ze.Kind != zcerrors.KindOverflow {
		t.Errorf("Unmarshal() error = %v, want overflow", err)
	}

	deep := formula.U8
	value := any(uint8(1))
	for range 5 {
		deep = formula.Ref(deep)
	}
	nested, err := Marshal(deep, value)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var x uint8
	err = NewDecoder(Options{MaxDepth: 3}).Unmarshal(deep, nested, &x)
	if !errors.As(err, &ze) || ze.Kind != zcerrors.KindOverflow {
		t.Errorf("Unmarshal() error = %v, want overflow", err)
	}
	if err := NewDecoder(Options{}).Unmarshal(deep, nested, &x); err != nil || x != 1 {
		t.Errorf("Unmarshal() = %d, %v", x, err)
	}
}

func TestDecoder_Borrow(t *testing.T) {
	type Msg struct {
		Name string
		Data []byte
	}
	f := formula.Struct("Msg", formula.F("name", formula.String), formula.F("data", formula.Bytes))
	data, err := Marshal(f, Msg{Name: "abc", Data: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	inRange := func(p unsafe.Pointer) bool {
		lo := uintptr(unsafe.Pointer(&data[0]))
		hi := lo + uintptr(len(data))
		return uintptr(p) >= lo && uintptr(p) < hi
	}

	var borrowed Msg
	if err := NewDecoder(Options{Borrow: true}).Unmarshal(f, data, &borrowed); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !inRange(unsafe.Pointer(unsafe.StringData(borrowed.Name))) {
		t.Error("borrowed string does not alias the input")
	}
	if !inRange(unsafe.Pointer(&borrowed.Data[0])) {
		t.Error("borrowed bytes do not alias the input")
	}
	if cap(borrowed.Data) != len(borrowed.Data) {
		t.Errorf("cap = %d, want %d so appends cannot clobber the input", cap(borrowed.Data), len(borrowed.Data))
	}

	var owned Msg
	if err := Unmarshal(f, data, &owned); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if inRange(unsafe.Pointer(unsafe.StringData(owned.Name))) || inRange(unsafe.Pointer(&owned.Data[0])) {
		t.Error("owned decode aliases the input")
	}
}

func TestDeserializer_Cursor(t *testing.T) {
	f := formula.List(formula.String)
	data, err := Marshal(f, []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	dec := NewDecoder(Options{})
	d, err := dec.NewDeserializer(f, data)
	if err != nil {
		t.Fatalf("NewDeserializer() error = %v", err)
	}
	run, err := d.Deref(f.Payload())
	if err != nil {
		t.Fatalf("Deref() error = %v", err)
	}
	it, err := run.IntoUnsizedIter(formula.String)
	if err != nil {
		t.Fatalf("IntoUnsizedIter() error = %v", err)
	}
	if it.Remaining() != 3 {
		t.Fatalf("Remaining() = %d, want 3", it.Remaining())
	}

	var got []string
	for it.Next() {
		got = append(got, string(it.Elem().ReadAllBytes()))
	}
	if err := it.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if diff := cmp.Diff([]string{"a", "bb", "ccc"}, got); diff != "" {
		t.Errorf("elements mismatch (-want +got):\n%s", diff)
	}
	if it.Next() || it.Remaining() != 0 {
		t.Error("iterator should be exhausted")
	}
}

func TestDeserializer_ReadBytes(t *testing.T) {
	dec := NewDecoder(Options{})
	d, err := newDeserializer(dec, zcerrors.PhaseDecode, []byte{1, 2, 3}, 3)
	if err != nil {
		t.Fatalf("newDeserializer() error = %v", err)
	}
	b, err := d.ReadBytes(2)
	if err != nil || string(b) != "\x01\x02" {
		t.Fatalf("ReadBytes(2) = %v, %v", b, err)
	}
	if _, err := d.ReadBytes(2); !errors.Is(err, zcerrors.ErrUnexpectedEnd) {
		t.Errorf("ReadBytes(2) error = %v, want unexpected_end", err)
	}
	if d.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after a failed read", d.Len())
	}
	if rest := d.ReadAllBytes(); len(rest) != 1 || rest[0] != 3 {
		t.Errorf("ReadAllBytes() = %v, want [3]", rest)
	}
}

func TestReadValue_FromUnmarshaler(t *testing.T) {
	f := formula.Struct("Pair", formula.F("a", formula.U16), formula.F("b", formula.String))
	data, err := Marshal(f, struct {
		A uint16
		B string
	}{7, "seven"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var p pair
	if err := Unmarshal(f, data, &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if p.a != 7 || p.b != "seven" {
		t.Errorf("got %+v", p)
	}

	again, err := Marshal(f, &p)
	if err != nil {
		t.Fatalf("Marshal(pair) error = %v", err)
	}
	if string(again) != string(data) {
		t.Errorf("Marshaler bytes = %v, want %v", again, data)
	}
}

// pair reads and writes its fields by hand.
type pair struct {
	b string
	a uint16
}

func (p *pair) MarshalFormula(f *formula.Formula, s *Serializer) error {
	if err := s.WriteValue(f.Fields()[0].Formula, p.a); err != nil {
		return err
	}
	return s.WriteLastValue(f.Fields()[1].Formula, p.b)
}

func (p *pair) UnmarshalFormula(f *formula.Formula, d Deserializer) error {
	if err := d.ReadValue(f.Fields()[0].Formula, false, &p.a); err != nil {
		return err
	}
	return d.ReadValue(f.Fields()[1].Formula, true, &p.b)
}
