package derive

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/wippyai/zerocopy/errors"
	"github.com/wippyai/zerocopy/formula"
)

// FromType reads a formula declaration from a Go struct type.
//
// Exported fields become formula fields in declaration order, named by their
// zc tag or the snake_case of the Go name. A blank field tagged
// `zc:",enum"` turns the struct into an enum whose variants are its
// pointer-to-struct fields; `zc:",open"` marks the declaration
// non-exhaustive. A field tagged `zc:"name,formula=..."` takes its formula
// from the text after formula=.
func FromType(goType reflect.Type) (Declaration, error) {
	for goType.Kind() == reflect.Pointer {
		goType = goType.Elem()
	}
	if goType.Kind() != reflect.Struct {
		return Declaration{}, errors.TypeMismatch(errors.PhaseDerive, nil, goType.String(), "struct")
	}
	r := &typeReader{visiting: map[reflect.Type]bool{}}
	return r.declaration(goType, nil)
}

// Of derives the schema of T.
func Of[T any]() (*Schema, error) {
	decl, err := FromType(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	return Derive(decl)
}

type typeReader struct {
	visiting map[reflect.Type]bool
}

type structTags struct {
	enum bool
	open bool
}

func markerTags(goType reflect.Type) structTags {
	var tags structTags
	for i := range goType.NumField() {
		sf := goType.Field(i)
		if sf.Name != "_" {
			continue
		}
		_, opts, _ := strings.Cut(sf.Tag.Get("zc"), ",")
		for _, o := range strings.Split(opts, ",") {
			switch o {
			case "enum":
				tags.enum = true
			case "open":
				tags.open = true
			}
		}
	}
	return tags
}

func (r *typeReader) declaration(goType reflect.Type, path []string) (Declaration, error) {
	if r.visiting[goType] {
		return Declaration{}, errors.New(errors.PhaseDerive, errors.KindUnsupported).
			Path(path...).
			GoType(goType.String()).
			Detail("recursive type has no finite formula").
			Build()
	}
	r.visiting[goType] = true
	defer delete(r.visiting, goType)

	tags := markerTags(goType)
	decl := Declaration{
		Name:  goType.Name(),
		Kind:  KindStruct,
		Attrs: Attrs{Formula: true, NonExhaustive: tags.open},
	}
	if decl.Name == "" {
		decl.Name = "struct"
	}

	if !tags.enum {
		fields, err := r.fields(goType, path)
		if err != nil {
			return Declaration{}, err
		}
		decl.Fields = fields
		return decl, nil
	}

	decl.Kind = KindEnum
	for i := range goType.NumField() {
		sf := goType.Field(i)
		if !sf.IsExported() || sf.Tag.Get("zc") == "-" {
			continue
		}
		name, _ := fieldName(sf, false)
		vp := append(path[:len(path):len(path)], name)
		if sf.Type.Kind() != reflect.Pointer || sf.Type.Elem().Kind() != reflect.Struct {
			return Declaration{}, errors.TypeMismatch(errors.PhaseDerive, vp, sf.Type.String(), "pointer to struct")
		}
		fields, err := r.fields(sf.Type.Elem(), vp)
		if err != nil {
			return Declaration{}, err
		}
		decl.Variants = append(decl.Variants, Variant{Name: name, Fields: fields})
	}
	return decl, nil
}

func (r *typeReader) fields(goType reflect.Type, path []string) ([]Field, error) {
	var out []Field
	for i := range goType.NumField() {
		sf := goType.Field(i)
		if !sf.IsExported() || sf.Tag.Get("zc") == "-" {
			continue
		}
		name, src := fieldName(sf, true)
		fp := append(path[:len(path):len(path)], name)

		var (
			f   *formula.Formula
			err error
		)
		if src != "" {
			f, err = formula.Parse(src)
			if err != nil {
				return nil, errors.Wrap(errors.PhaseDerive, errors.KindInvalidInput, err,
					"formula tag of "+strings.Join(fp, "."))
			}
		} else {
			f, err = r.formula(sf.Type, fp)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, Field{Name: name, Formula: f})
	}
	return out, nil
}

// fieldName returns the formula name of sf and its formula= override.
func fieldName(sf reflect.StructField, snake bool) (name, src string) {
	tag := sf.Tag.Get("zc")
	name, opts, _ := strings.Cut(tag, ",")
	if _, rest, ok := strings.Cut(opts, "formula="); ok {
		src = rest
	}
	if name == "" {
		name = sf.Name
		if snake {
			name = snakeCase(name)
		}
	}
	return name, src
}

func (r *typeReader) formula(t reflect.Type, path []string) (*formula.Formula, error) {
	switch t.Kind() {
	case reflect.Bool:
		return formula.Bool, nil
	case reflect.Uint8:
		return formula.U8, nil
	case reflect.Int8:
		return formula.I8, nil
	case reflect.Uint16:
		return formula.U16, nil
	case reflect.Int16:
		return formula.I16, nil
	case reflect.Uint32:
		return formula.U32, nil
	case reflect.Int32:
		return formula.I32, nil
	case reflect.Uint64, reflect.Uint:
		return formula.U64, nil
	case reflect.Int64, reflect.Int:
		return formula.I64, nil
	case reflect.Float32:
		return formula.F32, nil
	case reflect.Float64:
		return formula.F64, nil
	case reflect.String:
		return formula.String, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return formula.Bytes, nil
		}
		elem, err := r.formula(t.Elem(), path)
		if err != nil {
			return nil, err
		}
		return formula.List(elem), nil
	case reflect.Array:
		elem, err := r.formula(t.Elem(), path)
		if err != nil {
			return nil, err
		}
		return formula.Array(elem, t.Len()), nil
	case reflect.Map:
		key, err := r.formula(t.Key(), path)
		if err != nil {
			return nil, err
		}
		val, err := r.formula(t.Elem(), path)
		if err != nil {
			return nil, err
		}
		return formula.Map(key, val), nil
	case reflect.Pointer:
		elem, err := r.formula(t.Elem(), path)
		if err != nil {
			return nil, err
		}
		return formula.Option(elem), nil
	case reflect.Struct:
		if t.NumField() == 0 {
			return formula.Unit, nil
		}
		decl, err := r.declaration(t, path)
		if err != nil {
			return nil, err
		}
		s, err := Derive(decl)
		if err != nil {
			return nil, err
		}
		return s.Formula, nil
	}
	return nil, errors.New(errors.PhaseDerive, errors.KindUnsupported).
		Path(path...).
		GoType(t.String()).
		Detail("%s has no formula", t.Kind()).
		Build()
}

// snakeCase converts a Go identifier: UserID becomes user_id.
func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, c := range runes {
		if unicode.IsUpper(c) {
			if i > 0 && (unicode.IsLower(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			c = unicode.ToLower(c)
		}
		b.WriteRune(c)
	}
	return b.String()
}
