package codec

import (
	"reflect"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/wippyai/zerocopy/errors"
	"github.com/wippyai/zerocopy/formula"
	"github.com/wippyai/zerocopy/internal/abi"
)

// DefaultPlanCacheSize bounds the number of compiled plans a Compiler keeps.
const DefaultPlanCacheSize = 1024

var (
	anyType         = reflect.TypeFor[any]()
	variantType     = reflect.TypeFor[Variant]()
	marshalerType   = reflect.TypeFor[Marshaler]()
	unmarshalerType = reflect.TypeFor[Unmarshaler]()

	// dynamic containers bind like any at every level
	dynamicTypes = map[reflect.Type]bool{
		reflect.TypeFor[map[string]any](): true,
		reflect.TypeFor[map[any]any]():    true,
		reflect.TypeFor[[]any]():          true,
	}
)

// Compiler binds formulas to Go types and caches the result. It is safe for
// concurrent use.
type Compiler struct {
	cache *lru.Cache[planKey, *plan]
	obs   Observer
}

type planKey struct {
	f      *formula.Formula
	goType reflect.Type
}

// NewCompiler returns a compiler caching up to size plans. obs may be nil.
func NewCompiler(size int, obs Observer) *Compiler {
	if size <= 0 {
		size = DefaultPlanCacheSize
	}
	cache, err := lru.New[planKey, *plan](size)
	if err != nil {
		// lru.New only fails for non-positive sizes
		panic(err)
	}
	return &Compiler{cache: cache, obs: obs}
}

// Compile checks that values of goType can be encoded and decoded with f,
// caching the binding.
func (c *Compiler) Compile(f *formula.Formula, goType reflect.Type) error {
	_, err := c.plan(f, goType)
	return err
}

// Len returns the number of cached plans.
func (c *Compiler) Len() int {
	return c.cache.Len()
}

func (c *Compiler) plan(f *formula.Formula, goType reflect.Type) (*plan, error) {
	if goType == nil {
		return nil, errors.New(errors.PhaseCompile, errors.KindNilPointer).
			Detail("Go type cannot be nil").
			Build()
	}
	if f == nil {
		return nil, errors.New(errors.PhaseCompile, errors.KindNilPointer).
			Detail("formula cannot be nil").
			Build()
	}

	key := planKey{f: f, goType: goType}
	if cached, ok := c.cache.Get(key); ok {
		if c.obs != nil {
			c.obs.ObservePlan(true)
		}
		return cached, nil
	}
	if c.obs != nil {
		c.obs.ObservePlan(false)
	}

	if err := formula.Check(f); err != nil {
		return nil, err
	}
	p, err := c.compile(f, goType, nil)
	if err != nil {
		Logger().Debug("plan compilation failed",
			zap.Stringer("formula", f),
			zap.Stringer("go_type", goType),
			zap.Error(err))
		return nil, err
	}

	c.cache.Add(key, p)
	Logger().Debug("compiled plan",
		zap.Stringer("formula", f),
		zap.Stringer("go_type", goType),
		zap.Stringer("bind", p.bind))
	return p, nil
}

func childPath(path []string, seg string) []string {
	return append(append(make([]string, 0, len(path)+1), path...), seg)
}

func (c *Compiler) compile(f *formula.Formula, goType reflect.Type, path []string) (*plan, error) {
	if goType.Kind() == reflect.Interface {
		if goType.NumMethod() != 0 {
			return nil, errors.New(errors.PhaseCompile, errors.KindUnsupported).
				Path(path...).
				GoType(goType.String()).
				Detail("only the empty interface can hold dynamic values").
				Build()
		}
		return c.compileAny(f, path)
	}
	if dynamicTypes[goType] {
		return c.compileAny(f, path)
	}

	if goType.Kind() != reflect.Pointer {
		ptr := reflect.PointerTo(goType)
		if ptr.Implements(marshalerType) || ptr.Implements(unmarshalerType) {
			return &plan{f: f, goType: goType, bind: bindMarshal}, nil
		}
	}

	if goType.Kind() == reflect.Pointer && f.Kind() != formula.KindOption {
		elem, err := c.compile(f, goType.Elem(), path)
		if err != nil {
			return nil, err
		}
		return &plan{f: f, goType: goType, elem: elem, bind: bindPointer}, nil
	}

	if f.Kind().IsPrimitive() {
		return c.compilePrimitive(f, goType, path)
	}

	switch f.Kind() {
	case formula.KindBytes:
		return c.compileBytes(f, goType, path)
	case formula.KindString:
		if goType.Kind() != reflect.String {
			return nil, errors.TypeMismatch(errors.PhaseCompile, path, goType.String(), f.String())
		}
		return &plan{f: f, goType: goType}, nil
	case formula.KindRef:
		elem, err := c.compile(f.Elem(), goType, childPath(path, "ref"))
		if err != nil {
			return nil, err
		}
		return &plan{f: f, payload: f.Payload(), goType: goType, elem: elem}, nil
	case formula.KindSlice, formula.KindList, formula.KindDeque:
		return c.compileSequence(f, goType, path)
	case formula.KindArray:
		return c.compileArray(f, goType, path)
	case formula.KindMap:
		return c.compileMap(f, goType, path)
	case formula.KindOption:
		return c.compileOption(f, goType, path)
	case formula.KindTuple:
		return c.compileTuple(f, goType, path)
	case formula.KindStruct:
		return c.compileStruct(f, goType, path)
	case formula.KindEnum:
		return c.compileEnum(f, goType, path)
	default:
		return nil, errors.New(errors.PhaseCompile, errors.KindUnsupported).
			Path(path...).
			Detail("unsupported formula kind: %s", f.Kind()).
			Build()
	}
}

func (c *Compiler) compilePrimitive(f *formula.Formula, goType reflect.Type, path []string) (*plan, error) {
	var valid bool
	gk := goType.Kind()

	switch f.Kind() {
	case formula.KindUnit:
		valid = gk == reflect.Struct && goType.NumField() == 0
	case formula.KindBool:
		valid = gk == reflect.Bool
	case formula.KindU8:
		valid = gk == reflect.Uint8
	case formula.KindI8:
		valid = gk == reflect.Int8
	case formula.KindU16:
		valid = gk == reflect.Uint16
	case formula.KindI16:
		valid = gk == reflect.Int16
	case formula.KindU32:
		valid = gk == reflect.Uint32
	case formula.KindI32:
		valid = gk == reflect.Int32
	case formula.KindU64:
		valid = gk == reflect.Uint64 || ((gk == reflect.Uint || gk == reflect.Uintptr) && goType.Size() == 8)
	case formula.KindI64:
		valid = gk == reflect.Int64 || (gk == reflect.Int && goType.Size() == 8)
	case formula.KindF32:
		valid = gk == reflect.Float32
	case formula.KindF64:
		valid = gk == reflect.Float64
	}

	if !valid {
		return nil, errors.TypeMismatch(errors.PhaseCompile, path, goType.String(), f.String())
	}
	return &plan{f: f, goType: goType}, nil
}

func (c *Compiler) compileBytes(f *formula.Formula, goType reflect.Type, path []string) (*plan, error) {
	switch {
	case goType.Kind() == reflect.Slice && goType.Elem().Kind() == reflect.Uint8:
		return &plan{f: f, goType: goType}, nil
	case goType.Kind() == reflect.String:
		return &plan{f: f, goType: goType, bind: bindBytesString}, nil
	}
	return nil, errors.TypeMismatch(errors.PhaseCompile, path, goType.String(), "[]byte or string")
}

func (c *Compiler) compileSequence(f *formula.Formula, goType reflect.Type, path []string) (*plan, error) {
	if goType.Kind() != reflect.Slice {
		return nil, errors.TypeMismatch(errors.PhaseCompile, path, goType.String(), "slice")
	}
	elem, err := c.compile(f.Elem(), goType.Elem(), childPath(path, "[elem]"))
	if err != nil {
		return nil, err
	}
	return &plan{f: f, payload: f.Payload(), goType: goType, elem: elem}, nil
}

func (c *Compiler) compileArray(f *formula.Formula, goType reflect.Type, path []string) (*plan, error) {
	b := bindNative
	switch goType.Kind() {
	case reflect.Array:
		if goType.Len() != f.Len() {
			return nil, errors.New(errors.PhaseCompile, errors.KindTypeMismatch).
				Path(path...).
				GoType(goType.String()).
				Formula(f.String()).
				Detail("array length %d, formula length %d", goType.Len(), f.Len()).
				Build()
		}
	case reflect.Slice:
		b = bindArraySlice
	default:
		return nil, errors.TypeMismatch(errors.PhaseCompile, path, goType.String(), "array or slice")
	}

	elem, err := c.compile(f.Elem(), goType.Elem(), childPath(path, "[elem]"))
	if err != nil {
		return nil, err
	}
	return &plan{f: f, goType: goType, elem: elem, bind: b}, nil
}

func (c *Compiler) compileMap(f *formula.Formula, goType reflect.Type, path []string) (*plan, error) {
	if goType.Kind() != reflect.Map {
		return nil, errors.TypeMismatch(errors.PhaseCompile, path, goType.String(), "map")
	}
	key, err := c.compile(f.Key(), goType.Key(), childPath(path, "[key]"))
	if err != nil {
		return nil, err
	}
	val, err := c.compile(f.Value(), goType.Elem(), childPath(path, "[value]"))
	if err != nil {
		return nil, err
	}
	return &plan{f: f, payload: f.Payload(), goType: goType, key: key, elem: val}, nil
}

func (c *Compiler) compileOption(f *formula.Formula, goType reflect.Type, path []string) (*plan, error) {
	if goType.Kind() != reflect.Pointer {
		return nil, errors.TypeMismatch(errors.PhaseCompile, path, goType.String(), "pointer")
	}
	elem, err := c.compile(f.Elem(), goType.Elem(), childPath(path, "?"))
	if err != nil {
		return nil, err
	}
	return &plan{f: f, goType: goType, elem: elem}, nil
}

func exportedFields(goType reflect.Type) []reflect.StructField {
	var out []reflect.StructField
	for i := 0; i < goType.NumField(); i++ {
		sf := goType.Field(i)
		if sf.IsExported() && sf.Tag.Get("zc") != "-" {
			out = append(out, sf)
		}
	}
	return out
}

func (c *Compiler) compileTuple(f *formula.Formula, goType reflect.Type, path []string) (*plan, error) {
	if goType.Kind() != reflect.Struct {
		return nil, errors.TypeMismatch(errors.PhaseCompile, path, goType.String(), "struct")
	}

	goFields := exportedFields(goType)
	members := f.Fields()
	if len(goFields) != len(members) {
		return nil, errors.New(errors.PhaseCompile, errors.KindTypeMismatch).
			Path(path...).
			GoType(goType.String()).
			Detail("tuple has %d elements but struct has %d fields", len(members), len(goFields)).
			Build()
	}

	fields := make([]planField, len(members))
	for i, m := range members {
		fp, err := c.compile(m.Formula, goFields[i].Type, childPath(path, "["+strconv.Itoa(i)+"]"))
		if err != nil {
			return nil, err
		}
		fields[i] = planField{plan: fp, name: m.Name, index: goFields[i].Index[0]}
	}
	return &plan{f: f, goType: goType, fields: fields}, nil
}

func (c *Compiler) compileStruct(f *formula.Formula, goType reflect.Type, path []string) (*plan, error) {
	if goType.Kind() != reflect.Struct {
		return nil, errors.TypeMismatch(errors.PhaseCompile, path, goType.String(), "struct")
	}

	fields, err := c.compileFields(f.Fields(), goType, path)
	if err != nil {
		return nil, err
	}
	return &plan{f: f, goType: goType, fields: fields}, nil
}

func (c *Compiler) compileFields(members []formula.Field, goType reflect.Type, path []string) ([]planField, error) {
	fields := make([]planField, 0, len(members))
	for _, m := range members {
		sf, found := findGoField(goType, m.Name)
		if !found {
			return nil, errors.FieldMissing(errors.PhaseCompile, path, m.Name)
		}
		fp, err := c.compile(m.Formula, sf.Type, childPath(path, m.Name))
		if err != nil {
			return nil, err
		}
		fields = append(fields, planField{plan: fp, name: m.Name, index: sf.Index[0]})
	}
	return fields, nil
}

// findGoField matches by: 1) zc:"name" tag, 2) case-insensitive, 3) ignoring '_' and '-'.
func findGoField(goType reflect.Type, name string) (reflect.StructField, bool) {
	for _, sf := range exportedFields(goType) {
		if tag, _, _ := strings.Cut(sf.Tag.Get("zc"), ","); tag != "" {
			if tag == name {
				return sf, true
			}
			continue
		}
		if strings.EqualFold(sf.Name, name) || strings.EqualFold(sf.Name, squash(name)) {
			return sf, true
		}
	}
	return reflect.StructField{}, false
}

func squash(s string) string {
	return strings.NewReplacer("_", "", "-", "").Replace(s)
}

func (c *Compiler) compileEnum(f *formula.Formula, goType reflect.Type, path []string) (*plan, error) {
	variants := f.Variants()

	switch {
	case goType == variantType:
		cases := make([]planCase, len(variants))
		for i, v := range variants {
			cp, err := c.compileAny(f.VariantFormula(i), childPath(path, v.Name))
			if err != nil {
				return nil, err
			}
			cases[i] = planCase{plan: cp, name: v.Name}
		}
		return &plan{f: f, goType: goType, cases: cases, bind: bindEnumVariant}, nil

	case isInteger(goType.Kind()):
		for _, v := range variants {
			if len(v.Fields) > 0 {
				return nil, errors.New(errors.PhaseCompile, errors.KindTypeMismatch).
					Path(path...).
					GoType(goType.String()).
					Formula(f.String()).
					Detail("variant %q has fields and cannot be held in an integer", v.Name).
					Build()
			}
		}
		if !fitsDiscriminant(goType, len(variants)) {
			return nil, errors.Overflow(errors.PhaseCompile, path, len(variants), goType.String())
		}
		return &plan{f: f, goType: goType, bind: bindEnumInt}, nil

	case goType.Kind() == reflect.Struct:
		cases := make([]planCase, len(variants))
		for i, v := range variants {
			sf, found := findGoField(goType, v.Name)
			if !found {
				return nil, errors.FieldMissing(errors.PhaseCompile, path, v.Name)
			}
			if sf.Type.Kind() != reflect.Pointer || sf.Type.Elem().Kind() != reflect.Struct {
				return nil, errors.TypeMismatch(errors.PhaseCompile, childPath(path, v.Name), sf.Type.String(), "pointer to struct")
			}
			vp := childPath(path, v.Name)
			fields, err := c.compileFields(v.Fields, sf.Type.Elem(), vp)
			if err != nil {
				return nil, err
			}
			cp := &plan{f: f.VariantFormula(i), goType: sf.Type.Elem(), fields: fields}
			cases[i] = planCase{plan: cp, name: v.Name, index: sf.Index[0]}
		}
		return &plan{f: f, goType: goType, cases: cases, bind: bindEnumPtrs}, nil
	}

	return nil, errors.TypeMismatch(errors.PhaseCompile, path, goType.String(), "integer, codec.Variant or struct of variant pointers")
}

func isInteger(k reflect.Kind) bool {
	return (k >= reflect.Int && k <= reflect.Int64) || (k >= reflect.Uint && k <= reflect.Uintptr)
}

func fitsDiscriminant(goType reflect.Type, n int) bool {
	if n == 0 {
		return true
	}
	maxDisc := uint64(n - 1)
	width := int(goType.Size())
	if goType.Kind() >= reflect.Uint {
		return abi.FitsUnsigned(maxDisc, width)
	}
	return abi.FitsSigned(int64(maxDisc), width)
}

// compileAny builds a dynamic plan: every level holds an interface value.
func (c *Compiler) compileAny(f *formula.Formula, path []string) (*plan, error) {
	p := &plan{f: f, payload: f.Payload(), goType: anyType, bind: bindAny}

	switch f.Kind() {
	case formula.KindRef, formula.KindOption, formula.KindSlice, formula.KindArray,
		formula.KindList, formula.KindDeque:
		elem, err := c.compileAny(f.Elem(), childPath(path, "[elem]"))
		if err != nil {
			return nil, err
		}
		p.elem = elem
	case formula.KindMap:
		key, err := c.compileAny(f.Key(), childPath(path, "[key]"))
		if err != nil {
			return nil, err
		}
		val, err := c.compileAny(f.Value(), childPath(path, "[value]"))
		if err != nil {
			return nil, err
		}
		p.key, p.elem = key, val
	case formula.KindTuple, formula.KindStruct:
		p.fields = make([]planField, len(f.Fields()))
		for i, m := range f.Fields() {
			fp, err := c.compileAny(m.Formula, childPath(path, m.Name))
			if err != nil {
				return nil, err
			}
			p.fields[i] = planField{plan: fp, name: m.Name, index: i}
		}
	case formula.KindEnum:
		p.cases = make([]planCase, len(f.Variants()))
		for i, v := range f.Variants() {
			cp, err := c.compileAny(f.VariantFormula(i), childPath(path, v.Name))
			if err != nil {
				return nil, err
			}
			p.cases[i] = planCase{plan: cp, name: v.Name, index: i}
		}
	}
	return p, nil
}
