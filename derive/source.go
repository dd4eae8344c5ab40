package derive

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/wippyai/zerocopy/errors"
	"github.com/wippyai/zerocopy/formula"
)

// Directives recognized in the doc comment of a type declaration.
const (
	directiveFormula     = "//zc:formula"
	directiveOpen        = "//zc:open"
	directiveEnum        = "//zc:enum"
	directiveSerialize   = "//zc:serialize"
	directiveDeserialize = "//zc:deserialize"
	directiveVariant     = "//zc:variant"
)

// Package is the set of annotated declarations of one Go package.
type Package struct {
	Name  string
	Decls []Declaration
}

// ParseFS reads the non-test Go files of dir and returns their annotated
// type declarations in file and source order.
func ParseFS(fsys afero.Fs, dir string) (*Package, error) {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDerive, errors.KindInvalidInput, err, "reading "+dir)
	}

	fset := token.NewFileSet()
	var files []*ast.File
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		path := filepath.Join(dir, name)
		src, err := afero.ReadFile(fsys, path)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseDerive, errors.KindInvalidInput, err, "reading "+path)
		}
		if isGenerated(src) {
			continue
		}
		f, err := parser.ParseFile(fset, path, src, parser.ParseComments)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseDerive, errors.KindInvalidInput, err, "parsing "+path)
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool {
		return fset.File(files[i].Pos()).Name() < fset.File(files[j].Pos()).Name()
	})
	return readPackage(fset, files)
}

// ParseSource reads the annotated declarations of a single file.
func ParseSource(filename string, src []byte) (*Package, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDerive, errors.KindInvalidInput, err, "parsing "+filename)
	}
	return readPackage(fset, []*ast.File{f})
}

func isGenerated(src []byte) bool {
	head := string(src[:min(len(src), 512)])
	return strings.Contains(head, "// Code generated") && strings.Contains(head, "DO NOT EDIT.")
}

type annotated struct {
	spec  *ast.TypeSpec
	attrs Attrs
	enum  bool
}

type sourceReader struct {
	fset     *token.FileSet
	specs    map[string]*ast.TypeSpec
	docs     map[string]*ast.CommentGroup
	memo     map[string]*formula.Formula
	visiting map[string]bool
}

func readPackage(fset *token.FileSet, files []*ast.File) (*Package, error) {
	if len(files) == 0 {
		return nil, errors.InvalidInput(errors.PhaseDerive, "no Go files")
	}
	r := &sourceReader{
		fset:     fset,
		specs:    map[string]*ast.TypeSpec{},
		docs:     map[string]*ast.CommentGroup{},
		memo:     map[string]*formula.Formula{},
		visiting: map[string]bool{},
	}
	pkg := &Package{Name: files[0].Name.Name}

	var found []annotated
	for _, f := range files {
		for _, d := range f.Decls {
			gd, ok := d.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, s := range gd.Specs {
				ts := s.(*ast.TypeSpec)
				doc := ts.Doc
				if doc == nil && len(gd.Specs) == 1 {
					doc = gd.Doc
				}
				r.specs[ts.Name.Name] = ts
				r.docs[ts.Name.Name] = doc
				a, ok, err := r.directives(ts, doc)
				if err != nil {
					return nil, err
				}
				if ok {
					found = append(found, a)
				}
			}
		}
	}

	for _, a := range found {
		decl, err := r.declaration(a)
		if err != nil {
			return nil, err
		}
		pkg.Decls = append(pkg.Decls, decl)
	}
	Logger().Debug("parsed package", zap.String("package", pkg.Name), zap.Int("declarations", len(pkg.Decls)))
	return pkg, nil
}

func (r *sourceReader) errorf(pos token.Pos, format string, args ...any) error {
	return errors.New(errors.PhaseDerive, errors.KindInvalidInput).
		Detail("%s: %s", r.fset.Position(pos), fmt.Sprintf(format, args...)).
		Build()
}

func (r *sourceReader) directives(ts *ast.TypeSpec, doc *ast.CommentGroup) (annotated, bool, error) {
	a := annotated{spec: ts}
	if doc == nil {
		return a, false, nil
	}
	seen := false
	for _, c := range doc.List {
		if !strings.HasPrefix(c.Text, "//zc:") {
			continue
		}
		seen = true
		directive, arg, _ := strings.Cut(c.Text, " ")
		arg = strings.TrimSpace(arg)
		switch directive {
		case directiveFormula:
			a.attrs.Formula = true
		case directiveOpen:
			a.attrs.NonExhaustive = true
		case directiveEnum:
			a.enum = true
		case directiveSerialize, directiveDeserialize, directiveVariant:
			if arg == "" {
				return a, false, r.errorf(c.Pos(), "%s needs a name", directive)
			}
			switch directive {
			case directiveSerialize:
				a.attrs.Serialize = arg
			case directiveDeserialize:
				a.attrs.Deserialize = arg
			default:
				a.attrs.Variant = arg
			}
		default:
			return a, false, r.errorf(c.Pos(), "unknown directive %s", directive)
		}
	}
	return a, seen, nil
}

func (r *sourceReader) declaration(a annotated) (Declaration, error) {
	ts := a.spec
	decl := Declaration{Name: ts.Name.Name, Attrs: a.attrs}

	switch t := ts.Type.(type) {
	case *ast.InterfaceType:
		decl.Kind = KindUnion
		return decl, nil
	case *ast.StructType:
		tags := sourceMarkerTags(t)
		if tags.open {
			decl.Attrs.NonExhaustive = true
		}
		// Only schemas need member formulas; codecs are checked by name.
		typed := decl.Attrs.Formula
		if a.enum || tags.enum {
			decl.Kind = KindEnum
			variants, err := r.variants(t, typed)
			if err != nil {
				return Declaration{}, err
			}
			decl.Variants = variants
			return decl, nil
		}
		decl.Kind = KindStruct
		fields, err := r.fields(t, typed)
		if err != nil {
			return Declaration{}, err
		}
		decl.Fields = fields
		return decl, nil
	}
	return Declaration{}, r.errorf(ts.Pos(), "%s: only struct and interface types can be annotated", ts.Name.Name)
}

func tagOf(fd *ast.Field) reflect.StructTag {
	if fd.Tag == nil {
		return ""
	}
	s, err := strconv.Unquote(fd.Tag.Value)
	if err != nil {
		return ""
	}
	return reflect.StructTag(s)
}

func sourceMarkerTags(st *ast.StructType) structTags {
	var tags structTags
	for _, fd := range st.Fields.List {
		for _, n := range fd.Names {
			if n.Name != "_" {
				continue
			}
			_, opts, _ := strings.Cut(tagOf(fd).Get("zc"), ",")
			for _, o := range strings.Split(opts, ",") {
				tags.enum = tags.enum || o == "enum"
				tags.open = tags.open || o == "open"
			}
		}
	}
	return tags
}

// members walks the exported named fields of st.
func members(st *ast.StructType, yield func(fd *ast.Field, sf reflect.StructField) error) error {
	for _, fd := range st.Fields.List {
		tag := tagOf(fd)
		if tag.Get("zc") == "-" {
			continue
		}
		for _, n := range fd.Names {
			if !n.IsExported() {
				continue
			}
			if err := yield(fd, reflect.StructField{Name: n.Name, Tag: tag}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *sourceReader) fields(st *ast.StructType, typed bool) ([]Field, error) {
	var out []Field
	err := members(st, func(fd *ast.Field, sf reflect.StructField) error {
		name, src := fieldName(sf, true)
		field := Field{Name: name}
		if typed {
			var err error
			if src != "" {
				field.Formula, err = formula.Parse(src)
			} else {
				field.Formula, err = r.formula(fd.Type)
			}
			if err != nil {
				return err
			}
		}
		out = append(out, field)
		return nil
	})
	return out, err
}

func (r *sourceReader) variants(st *ast.StructType, typed bool) ([]Variant, error) {
	var out []Variant
	err := members(st, func(fd *ast.Field, sf reflect.StructField) error {
		name, _ := fieldName(sf, false)
		star, ok := fd.Type.(*ast.StarExpr)
		if !ok {
			return r.errorf(fd.Pos(), "variant %s must be a pointer to a struct", name)
		}
		body, err := r.structOf(star.X)
		if err != nil {
			return err
		}
		fields, err := r.fields(body, typed)
		if err != nil {
			return err
		}
		out = append(out, Variant{Name: name, Fields: fields})
		return nil
	})
	return out, err
}

func (r *sourceReader) structOf(expr ast.Expr) (*ast.StructType, error) {
	switch t := expr.(type) {
	case *ast.StructType:
		return t, nil
	case *ast.Ident:
		if ts, ok := r.specs[t.Name]; ok {
			if st, ok := ts.Type.(*ast.StructType); ok {
				return st, nil
			}
		}
	}
	return nil, r.errorf(expr.Pos(), "expected a struct type")
}

var sourcePrimitives = map[string]*formula.Formula{
	"bool":    formula.Bool,
	"uint8":   formula.U8,
	"byte":    formula.U8,
	"int8":    formula.I8,
	"uint16":  formula.U16,
	"int16":   formula.I16,
	"uint32":  formula.U32,
	"int32":   formula.I32,
	"rune":    formula.I32,
	"uint64":  formula.U64,
	"uint":    formula.U64,
	"int64":   formula.I64,
	"int":     formula.I64,
	"float32": formula.F32,
	"float64": formula.F64,
	"string":  formula.String,
}

func (r *sourceReader) formula(expr ast.Expr) (*formula.Formula, error) {
	switch t := expr.(type) {
	case *ast.ParenExpr:
		return r.formula(t.X)
	case *ast.Ident:
		if f, ok := sourcePrimitives[t.Name]; ok {
			return f, nil
		}
		return r.named(t)
	case *ast.StarExpr:
		elem, err := r.formula(t.X)
		if err != nil {
			return nil, err
		}
		return formula.Option(elem), nil
	case *ast.ArrayType:
		if t.Len == nil {
			if id, ok := t.Elt.(*ast.Ident); ok && (id.Name == "byte" || id.Name == "uint8") {
				return formula.Bytes, nil
			}
		}
		elem, err := r.formula(t.Elt)
		if err != nil {
			return nil, err
		}
		if t.Len == nil {
			return formula.List(elem), nil
		}
		lit, ok := t.Len.(*ast.BasicLit)
		if !ok || lit.Kind != token.INT {
			return nil, r.errorf(t.Pos(), "array length must be an integer literal")
		}
		n, err := strconv.Atoi(lit.Value)
		if err != nil {
			return nil, r.errorf(t.Pos(), "array length %s: %v", lit.Value, err)
		}
		return formula.Array(elem, n), nil
	case *ast.MapType:
		key, err := r.formula(t.Key)
		if err != nil {
			return nil, err
		}
		val, err := r.formula(t.Value)
		if err != nil {
			return nil, err
		}
		return formula.Map(key, val), nil
	case *ast.StructType:
		if t.Fields.NumFields() == 0 {
			return formula.Unit, nil
		}
		fields, err := r.fields(t, true)
		if err != nil {
			return nil, err
		}
		return formula.Struct("struct", toFormulaFields(fields)...), nil
	}
	return nil, r.errorf(expr.Pos(), "type has no formula; add a formula= tag")
}

// named resolves a package-local type to its formula.
func (r *sourceReader) named(id *ast.Ident) (*formula.Formula, error) {
	if f, ok := r.memo[id.Name]; ok {
		return f, nil
	}
	ts, ok := r.specs[id.Name]
	if !ok {
		return nil, r.errorf(id.Pos(), "type %s is not declared in this package; add a formula= tag", id.Name)
	}
	if r.visiting[id.Name] {
		return nil, errors.New(errors.PhaseDerive, errors.KindUnsupported).
			GoType(id.Name).
			Detail("recursive type has no finite formula").
			Build()
	}
	r.visiting[id.Name] = true
	defer delete(r.visiting, id.Name)

	var (
		f   *formula.Formula
		err error
	)
	if st, isStruct := ts.Type.(*ast.StructType); isStruct && st.Fields.NumFields() > 0 {
		a, _, derr := r.directives(ts, r.docs[id.Name])
		if derr != nil {
			return nil, derr
		}
		a.attrs = Attrs{Formula: true, NonExhaustive: a.attrs.NonExhaustive}
		var decl Declaration
		if decl, err = r.declaration(a); err != nil {
			return nil, err
		}
		var s *Schema
		if s, err = Derive(decl); err != nil {
			return nil, err
		}
		f = s.Formula
	} else {
		if f, err = r.formula(ts.Type); err != nil {
			return nil, err
		}
	}
	r.memo[id.Name] = f
	return f, nil
}

// Result is a derived package.
type Result struct {
	Package string
	Schemas []*Schema
	Codecs  []*Codec
}

// Build derives every declaration of pkg. Codecs resolve schema names
// against the package first, then extern.
func Build(pkg *Package, extern Resolver) (*Result, error) {
	res := &Result{Package: pkg.Name}
	local := map[string]*Schema{}

	for _, decl := range pkg.Decls {
		if !decl.Attrs.Formula {
			continue
		}
		s, err := Derive(decl)
		if err != nil {
			return nil, err
		}
		local[s.Name] = s
		res.Schemas = append(res.Schemas, s)
	}

	resolve := func(name string) (*Schema, bool) {
		if s, ok := local[name]; ok {
			return s, true
		}
		if extern != nil {
			return extern(name)
		}
		return nil, false
	}
	for _, decl := range pkg.Decls {
		if decl.Attrs.Formula {
			continue
		}
		if !decl.IsCodec() {
			return nil, errors.InvalidInput(errors.PhaseDerive,
				decl.Name+" has zc directives but neither //zc:formula nor //zc:serialize or //zc:deserialize")
		}
		c, err := DeriveCodec(decl, resolve)
		if err != nil {
			return nil, err
		}
		res.Codecs = append(res.Codecs, c)
	}
	return res, nil
}
