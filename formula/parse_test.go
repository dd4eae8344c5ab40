package formula

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		want *Formula
		src  string
	}{
		{U32, "u32"},
		{Bytes, "bytes"},
		{Slice(U8), "[u8]"},
		{Ref(String), "ref<string>"},
		{List(Option(I16)), "list<option<i16>>"},
		{Deque(U8), "deque<u8>"},
		{Map(String, List(U8)), "map<string, list<u8>>"},
		{Array(F64, 3), "array<f64, 3>"},
		{Tuple(), "tuple<>"},
		{Tuple(U8, Bool), "tuple<u8, bool,>"},
		{Struct("Point", F("x", I32), F("y", I32)), "struct Point { x: i32, y: i32 }"},
		{Struct("", F("a", U8)), "struct { a: u8 }"},
		{OpenStruct("P", F("a", U8)), "struct P { a: u8, .. }"},
		{OpenStruct("P"), "struct P { .. }"},
		{Struct("E"), "struct E {}"},
		{Enum("Shape", V("Empty"), V("Circle", F("r", F32))), "enum Shape { Empty, Circle { r: f32 } }"},
		{OpenEnum("Shape", V("Empty")), "enum Shape { Empty, .. }"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.src, err)
			}
			if !Equal(got, tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.src, got, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"",
		"u33",
		"list<u8",
		"map<u8>",
		"array<u8, x>",
		"struct { a u8 }",
		"enum { A { b: u8, .. } }",
		"u8 u8",
		"[u8",
		"option<$>",
	}

	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			if _, err := Parse(src); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", src)
			}
		})
	}
}

func TestParseWith(t *testing.T) {
	point := Struct("Point", F("x", I32), F("y", I32))
	got, err := ParseWith("struct Path { points: list<Point> }", map[string]*Formula{"Point": point})
	if err != nil {
		t.Fatalf("ParseWith error: %v", err)
	}
	if !Equal(got.Fields()[0].Formula, List(point)) {
		t.Errorf("points = %v, want list<Point>", got.Fields()[0].Formula)
	}
}

func TestStringRoundTrip(t *testing.T) {
	formulas := []*Formula{
		Unit,
		Option(Slice(Array(U8, 4))),
		Map(Tuple(U8, I64), Deque(String)),
		OpenStruct("Config", F("name", String), F("tags", List(String))),
		OpenEnum("Event", V("Start"), V("Data", F("chunk", Bytes), F("seq", U64))),
		Enum("Empty"),
	}

	for _, f := range formulas {
		t.Run(f.String(), func(t *testing.T) {
			back, err := Parse(f.String())
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", f.String(), err)
			}
			if !Equal(back, f) {
				t.Errorf("round trip = %v, want %v", back, f)
			}
		})
	}
}

func TestGoSource(t *testing.T) {
	f := Struct("P", F("a", List(U8)), F("b", Map(String, Option(I32))))
	got := f.GoSource("formula")
	want := `formula.Struct("P", formula.F("a", formula.List(formula.U8)), formula.F("b", formula.Map(formula.String, formula.Option(formula.I32))))`
	if got != want {
		t.Errorf("GoSource() =\n%s\nwant\n%s", got, want)
	}

	e := OpenEnum("E", V("A"), V("B", F("x", Array(U16, 2))))
	if src := e.GoSource(""); !strings.HasPrefix(src, `OpenEnum("E", V("A"), V("B", F("x", Array(U16, 2))))`) {
		t.Errorf("GoSource(\"\") = %s", src)
	}
}
