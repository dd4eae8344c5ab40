package errors

import (
	"fmt"
	"strings"
)

// Phase names the stage that failed.
type Phase string

const (
	PhaseCompile  Phase = "compile"  // formula to Go type binding
	PhaseEncode   Phase = "encode"   // Go to wire
	PhaseDecode   Phase = "decode"   // wire to Go
	PhaseValidate Phase = "validate" // buffer walk without a target
	PhaseDerive   Phase = "derive"   // schema derivation
	PhaseGenerate Phase = "generate" // source generation
)

// Kind is the failure category, independent of phase.
type Kind string

const (
	KindOutOfSpace             Kind = "out_of_space"
	KindUnexpectedEnd          Kind = "unexpected_end"
	KindInvalidReference       Kind = "invalid_reference"
	KindUnexpectedDiscriminant Kind = "unexpected_discriminant"
	KindTypeMismatch           Kind = "type_mismatch"
	KindInvalidData            Kind = "invalid_data"
	KindUnsupported            Kind = "unsupported"
	KindOverflow               Kind = "overflow"
	KindInvalidUTF8            Kind = "invalid_utf8"
	KindNilPointer             Kind = "nil_pointer"
	KindFieldMissing           Kind = "field_missing"
	KindSchemaConflict         Kind = "schema_conflict"
	KindMarkerMismatch         Kind = "marker_mismatch"
	KindInvalidInput           Kind = "invalid_input"
	KindNotFound               Kind = "not_found"
)

// Sentinels for errors.Is checks that only care about the failure kind.
var (
	ErrOutOfSpace             = &Error{Kind: KindOutOfSpace}
	ErrUnexpectedEnd          = &Error{Kind: KindUnexpectedEnd}
	ErrInvalidReference       = &Error{Kind: KindInvalidReference}
	ErrUnexpectedDiscriminant = &Error{Kind: KindUnexpectedDiscriminant}
)

// Error is returned by every package of the module.
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	GoType  string
	Formula string
	Detail  string
	Path    []string
}

func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.Formula != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.Formula != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", formula ")
			b.WriteString(e.Formula)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("formula ")
			b.WriteString(e.Formula)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.Formula != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target without a phase
// matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// WithPath returns a copy of e with segments prepended to its path.
func (e *Error) WithPath(segments ...string) *Error {
	c := *e
	c.Path = append(append(make([]string, 0, len(segments)+len(e.Path)), segments...), e.Path...)
	return &c
}

// Builder assembles an Error field by field.
type Builder struct {
	err Error
}

// New starts an error of the given phase and kind.
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

func (b *Builder) Formula(f string) *Builder {
	b.err.Formula = f
	return b
}

func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail formats the message with fmt.Sprintf when args are given.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

func (b *Builder) Build() *Error {
	return &b.err
}


// OutOfSpace reports a fixed-capacity destination that cannot take n more bytes.
func OutOfSpace(need, capacity int) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindOutOfSpace,
		Detail: fmt.Sprintf("need %d bytes, capacity %d", need, capacity),
		Value:  need,
	}
}

// UnexpectedEnd reports a read past the available stack bytes.
func UnexpectedEnd(phase Phase, path []string, want, have int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnexpectedEnd,
		Path:   path,
		Detail: fmt.Sprintf("need %d bytes, %d remain", want, have),
	}
}

// InvalidReference reports a reference outside the readable heap range.
func InvalidReference(phase Phase, path []string, offset, length uint32, heap int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidReference,
		Path:   path,
		Detail: fmt.Sprintf("reference (offset %d, length %d) outside heap of %d bytes", offset, length, heap),
	}
}

// UnexpectedDiscriminant reports an enum tag with no variant.
func UnexpectedDiscriminant(phase Phase, path []string, disc uint32, variants int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnexpectedDiscriminant,
		Path:   path,
		Detail: fmt.Sprintf("discriminant %d does not name one of %d variants", disc, variants),
		Value:  disc,
	}
}

// TypeMismatch reports a Go type that cannot hold a formula.
func TypeMismatch(phase Phase, path []string, goType, formula string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindTypeMismatch,
		Path:    path,
		GoType:  goType,
		Formula: formula,
	}
}

// InvalidUTF8 reports string bytes that are not UTF-8. At most 32 bytes
// are quoted.
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// FieldMissing reports a formula field with no Go counterpart.
func FieldMissing(phase Phase, path []string, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldMissing,
		Path:   path,
		Detail: fmt.Sprintf("required field %q not found", fieldName),
	}
}

func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

func NilPointer(phase Phase, path []string, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilPointer,
		Path:   path,
		GoType: goType,
		Detail: "nil pointer",
	}
}

// Overflow reports a value too wide for its formula.
func Overflow(phase Phase, path []string, value any, limit string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Detail: fmt.Sprintf("value %v overflows %s", value, limit),
		Value:  value,
	}
}

func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// SchemaConflict reports a declaration the deriver refuses.
func SchemaConflict(name, detail string) *Error {
	return &Error{
		Phase:   PhaseDerive,
		Kind:    KindSchemaConflict,
		Formula: name,
		Detail:  detail,
	}
}

// MarkerMismatch reports drift between two declarations of one schema.
func MarkerMismatch(name string, path []string, detail string) *Error {
	return &Error{
		Phase:   PhaseDerive,
		Kind:    KindMarkerMismatch,
		Path:    path,
		Formula: name,
		Detail:  detail,
	}
}

// InvalidInput reports a bad argument or declaration.
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Wrap attaches phase and kind to a foreign error.
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
