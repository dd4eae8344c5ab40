package derive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/zerocopy/errors"
	"github.com/wippyai/zerocopy/formula"
)

func named(name string) *string { return &name }

func TestFromWIT_Record(t *testing.T) {
	pointType := &wit.TypeDef{
		Name: named("point"),
		Kind: &wit.Record{
			Fields: []wit.Field{
				{Name: "x", Type: wit.S32{}},
				{Name: "y", Type: wit.S32{}},
			},
		},
	}
	person := &wit.TypeDef{
		Name: named("person"),
		Kind: &wit.Record{
			Fields: []wit.Field{
				{Name: "name", Type: wit.String{}},
				{Name: "initial", Type: wit.Char{}},
				{Name: "home", Type: &wit.TypeDef{Kind: &wit.Option{Type: pointType}}},
				{Name: "path", Type: &wit.TypeDef{Kind: &wit.List{Type: pointType}}},
				{Name: "pair", Type: &wit.TypeDef{Kind: &wit.Tuple{Types: []wit.Type{wit.U8{}, wit.Bool{}}}}},
				{Name: "flags", Type: &wit.TypeDef{Kind: &wit.Flags{Flags: make([]wit.Flag, 9)}}},
			},
		},
	}

	decl, err := FromWIT(person)
	require.NoError(t, err)
	assert.Equal(t, KindStruct, decl.Kind)
	assert.True(t, decl.Attrs.Formula)

	s, err := Derive(decl)
	require.NoError(t, err)

	pointF := formula.Struct("point", formula.F("x", formula.I32), formula.F("y", formula.I32))
	want := formula.Struct("person",
		formula.F("name", formula.String),
		formula.F("initial", formula.U32),
		formula.F("home", formula.Option(pointF)),
		formula.F("path", formula.List(pointF)),
		formula.F("pair", formula.Tuple(formula.U8, formula.Bool)),
		formula.F("flags", formula.U16),
	)
	assert.True(t, formula.Equal(want, s.Formula), "got %v", s.Formula)
}

func TestFromWIT_Variants(t *testing.T) {
	event := &wit.TypeDef{
		Name: named("event"),
		Kind: &wit.Variant{
			Cases: []wit.Case{
				{Name: "tick"},
				{Name: "key", Type: wit.U32{}},
				{Name: "text", Type: wit.String{}},
			},
		},
	}
	s, err := Derive(mustWIT(t, event))
	require.NoError(t, err)
	want := formula.Enum("event",
		formula.V("tick"),
		formula.V("key", formula.F("value", formula.U32)),
		formula.V("text", formula.F("value", formula.String)),
	)
	assert.True(t, formula.Equal(want, s.Formula), "got %v", s.Formula)

	color := &wit.TypeDef{
		Name: named("color"),
		Kind: &wit.Enum{Cases: []wit.EnumCase{{Name: "red"}, {Name: "green"}}},
	}
	s, err = Derive(mustWIT(t, color))
	require.NoError(t, err)
	assert.True(t, formula.Equal(formula.Enum("color", formula.V("red"), formula.V("green")), s.Formula))
	assert.Equal(t, formula.Bounded(0), s.Bound)
}

func mustWIT(t *testing.T, td *wit.TypeDef) Declaration {
	t.Helper()
	decl, err := FromWIT(td)
	require.NoError(t, err)
	return decl
}

func TestWITFormula(t *testing.T) {
	tests := []struct {
		in   wit.Type
		want *formula.Formula
		name string
	}{
		{wit.Bool{}, formula.Bool, "bool"},
		{wit.S8{}, formula.I8, "s8"},
		{wit.U64{}, formula.U64, "u64"},
		{wit.F32{}, formula.F32, "f32"},
		{&wit.TypeDef{Kind: &wit.Own{}}, formula.U32, "own"},
		{&wit.TypeDef{Kind: &wit.Borrow{}}, formula.U32, "borrow"},
		{&wit.TypeDef{Kind: &wit.Flags{Flags: make([]wit.Flag, 3)}}, formula.U8, "small flags"},
		{&wit.TypeDef{Kind: &wit.Flags{Flags: make([]wit.Flag, 40)}}, formula.U64, "wide flags"},
		{
			&wit.TypeDef{Kind: &wit.Result{OK: wit.U32{}, Err: wit.String{}}},
			formula.Enum("result",
				formula.V("ok", formula.F("value", formula.U32)),
				formula.V("err", formula.F("value", formula.String))),
			"result",
		},
		{
			&wit.TypeDef{Kind: &wit.Result{}},
			formula.Enum("result", formula.V("ok"), formula.V("err")),
			"bare result",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WITFormula(tt.in)
			require.NoError(t, err)
			assert.True(t, formula.Equal(tt.want, got), "got %v, want %v", got, tt.want)
		})
	}

	_, err := WITFormula(&wit.TypeDef{Kind: &wit.Flags{Flags: make([]wit.Flag, 65)}})
	assert.ErrorIs(t, err, isKind(errors.KindUnsupported))

	_, err = FromWIT(&wit.TypeDef{Kind: &wit.List{Type: wit.U8{}}})
	assert.ErrorIs(t, err, isKind(errors.KindUnsupported))
}
