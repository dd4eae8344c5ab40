package derive

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/wippyai/zerocopy/errors"
	"github.com/wippyai/zerocopy/formula"
)

// Schema is the result of deriving a formula from a declaration.
type Schema struct {
	Formula *formula.Formula
	Markers Markers
	Name    string
	// Bound is the folded member bound: the field sum of a struct, or the
	// largest variant sum of an enum. It excludes the enum discriminant,
	// which Formula.MaxStackSize includes.
	Bound       formula.Size
	Fingerprint uint64
	Kind        Kind
}

// Derive builds the schema of a formula declaration.
func Derive(decl Declaration) (*Schema, error) {
	if err := checkFormulaAttrs(&decl); err != nil {
		return nil, err
	}
	if err := checkMembers(&decl); err != nil {
		return nil, err
	}

	var (
		f     *formula.Formula
		bound formula.Size
	)
	open := decl.Attrs.NonExhaustive

	switch decl.Kind {
	case KindStruct:
		bound = fieldsBound(decl.Fields)
		if open {
			f = formula.OpenStruct(decl.Name, toFormulaFields(decl.Fields)...)
		} else {
			f = formula.Struct(decl.Name, toFormulaFields(decl.Fields)...)
		}
	case KindEnum:
		bound = formula.Bounded(0)
		variants := make([]formula.Variant, len(decl.Variants))
		for i, v := range decl.Variants {
			bound = formula.MaxSize(bound, fieldsBound(v.Fields))
			variants[i] = formula.V(v.Name, toFormulaFields(v.Fields)...)
		}
		if open {
			f = formula.OpenEnum(decl.Name, variants...)
		} else {
			f = formula.Enum(decl.Name, variants...)
		}
	}
	if open {
		bound = formula.Unbounded
	}

	if err := formula.Check(f); err != nil {
		return nil, err
	}

	m := markersOf(&decl)
	s := &Schema{
		Name:        decl.Name,
		Kind:        decl.Kind,
		Formula:     f,
		Bound:       bound,
		Markers:     m,
		Fingerprint: m.fingerprint(decl.Name),
	}
	Logger().Debug("derived schema",
		zap.String("name", s.Name),
		zap.Stringer("kind", s.Kind),
		zap.Stringer("bound", s.Bound),
		zap.Uint64("fingerprint", s.Fingerprint))
	return s, nil
}

func checkFormulaAttrs(decl *Declaration) error {
	switch {
	case decl.Kind == KindUnion:
		return errors.SchemaConflict(decl.Name, "formula cannot be derived for unions")
	case decl.Kind != KindStruct && decl.Kind != KindEnum:
		return errors.InvalidInput(errors.PhaseDerive, "unknown declaration kind")
	case decl.IsCodec():
		return errors.SchemaConflict(decl.Name, "a formula declaration cannot also name the formula it encodes with")
	case decl.Attrs.Variant != "":
		return errors.SchemaConflict(decl.Name, "variant selection applies to encoders, not to formulas")
	case decl.Kind == KindStruct && len(decl.Variants) > 0:
		return errors.SchemaConflict(decl.Name, "struct declaration has variants")
	case decl.Kind == KindEnum && len(decl.Fields) > 0:
		return errors.SchemaConflict(decl.Name, "enum declaration has top-level fields")
	}
	return nil
}

// checkMembers rejects fields and variant fields without a formula.
func checkMembers(decl *Declaration) error {
	check := func(where string, fields []Field) error {
		for _, fd := range fields {
			if fd.Formula == nil {
				return errors.InvalidInput(errors.PhaseDerive,
					fmt.Sprintf("field %s of %s has no formula", fd.Name, where))
			}
		}
		return nil
	}
	if err := check(decl.Name, decl.Fields); err != nil {
		return err
	}
	for _, v := range decl.Variants {
		if err := check(decl.Name+"::"+v.Name, v.Fields); err != nil {
			return err
		}
	}
	return nil
}

// Resolver finds a schema by name.
type Resolver func(name string) (*Schema, bool)

// Resolve returns a Resolver over schemas.
func Resolve(schemas ...*Schema) Resolver {
	byName := make(map[string]*Schema, len(schemas))
	for _, s := range schemas {
		byName[s.Name] = s
	}
	return func(name string) (*Schema, bool) {
		s, ok := byName[name]
		return s, ok
	}
}

// Codec is a type that encodes or decodes against a schema it does not
// own, checked for marker agreement.
type Codec struct {
	// Serialize and Deserialize are the schemas the type writes and reads.
	// Either may be nil.
	Serialize   *Schema
	Deserialize *Schema
	Markers     Markers
	Name        string
	// Variant is the enum variant a struct codec encodes as, or -1.
	Variant int
}

// DeriveCodec checks an encoder or decoder declaration against the schemas
// it names.
func DeriveCodec(decl Declaration, resolve Resolver) (*Codec, error) {
	switch {
	case decl.Kind == KindUnion:
		return nil, errors.SchemaConflict(decl.Name, "codecs cannot be derived for unions")
	case decl.Attrs.Formula:
		return nil, errors.SchemaConflict(decl.Name, "a formula declaration cannot also name the formula it encodes with")
	case !decl.IsCodec():
		return nil, errors.InvalidInput(errors.PhaseDerive, "declaration "+decl.Name+" names no formula to encode or decode with")
	case decl.Attrs.Variant != "" && decl.Kind != KindStruct:
		return nil, errors.SchemaConflict(decl.Name, "variant selection needs a struct declaration")
	case decl.Attrs.Variant != "" && decl.Attrs.Deserialize != "":
		return nil, errors.SchemaConflict(decl.Name, "variant selection applies to serialization only")
	}

	c := &Codec{Name: decl.Name, Variant: -1, Markers: markersOf(&decl)}
	lookup := func(name string) (*Schema, error) {
		if name == "" {
			return nil, nil
		}
		if resolve != nil {
			if s, ok := resolve(name); ok {
				return s, nil
			}
		}
		return nil, errors.New(errors.PhaseDerive, errors.KindNotFound).
			Formula(name).
			Detail("schema %q named by %s is not known", name, decl.Name).
			Build()
	}

	var err error
	if c.Serialize, err = lookup(decl.Attrs.Serialize); err != nil {
		return nil, err
	}
	if c.Deserialize, err = lookup(decl.Attrs.Deserialize); err != nil {
		return nil, err
	}

	for _, s := range []*Schema{c.Serialize, c.Deserialize} {
		if s == nil {
			continue
		}
		if decl.Attrs.Variant != "" {
			vm, ok := s.Markers.Variants[decl.Attrs.Variant]
			if s.Kind != KindEnum || !ok {
				return nil, errors.MarkerMismatch(s.Name, []string{decl.Attrs.Variant},
					"variant "+decl.Attrs.Variant+" is not declared by the schema")
			}
			c.Variant = vm.Index
			if err := agreeFields(s.Name, []string{decl.Attrs.Variant}, vm.Fields, vm.FieldCount, c.Markers); err != nil {
				return nil, err
			}
			continue
		}
		if err := CheckAgreement(s, c.Markers); err != nil {
			return nil, err
		}
	}

	Logger().Debug("derived codec",
		zap.String("name", c.Name),
		zap.String("serialize", decl.Attrs.Serialize),
		zap.String("deserialize", decl.Attrs.Deserialize),
		zap.Int("variant", c.Variant))
	return c, nil
}

// Formula returns the formula the codec writes with, else the one it reads.
func (c *Codec) Formula() *formula.Formula {
	f := c.Serialize
	if f == nil {
		f = c.Deserialize
	}
	if f == nil {
		return nil
	}
	if c.Variant >= 0 {
		return f.Formula.VariantFormula(c.Variant)
	}
	return f.Formula
}

func fingerprintOf(h *xxhash.Digest, s string) {
	_, _ = h.WriteString(s)
	_, _ = h.Write([]byte{0})
}
