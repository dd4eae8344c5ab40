package formula

import (
	"fmt"
	"strconv"

	"github.com/wippyai/zerocopy/errors"
)

var primitiveByName = map[string]*Formula{
	"unit":   Unit,
	"bool":   Bool,
	"u8":     U8,
	"i8":     I8,
	"u16":    U16,
	"i16":    I16,
	"u32":    U32,
	"i32":    I32,
	"u64":    U64,
	"i64":    I64,
	"f32":    F32,
	"f64":    F64,
	"bytes":  Bytes,
	"string": String,
}

// Parse reads a formula in the syntax produced by String:
//
//	struct Point { x: i32, y: i32 }
//	enum Shape { Empty, Circle { r: f32 }, .. }
//	map<string, list<u8>>
func Parse(src string) (*Formula, error) {
	return ParseWith(src, nil)
}

// ParseWith is Parse with named formulas that identifiers may refer to.
func ParseWith(src string, env map[string]*Formula) (*Formula, error) {
	p := &parser{src: src, env: env}
	p.next()
	f, err := p.formula()
	if err != nil {
		return nil, err
	}
	if p.tok != tokEOF {
		return nil, p.errorf("unexpected %q after formula", p.lit)
	}
	return f, nil
}

type token uint8

const (
	tokEOF token = iota
	tokIdent
	tokInt
	tokPunct
	tokRest // ".."
	tokIllegal
)

type parser struct {
	env map[string]*Formula
	src string
	lit string
	pos int
	at  int
	tok token
}

func (p *parser) errorf(format string, args ...any) error {
	return errors.New(errors.PhaseCompile, errors.KindInvalidInput).
		Detail("parse formula at offset %d: %s", p.at, fmt.Sprintf(format, args...)).Build()
}

func (p *parser) next() {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			break
		}
		p.pos++
	}
	p.at = p.pos
	if p.pos >= len(p.src) {
		p.tok, p.lit = tokEOF, ""
		return
	}

	c := p.src[p.pos]
	switch {
	case isIdentStart(c):
		start := p.pos
		for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
			p.pos++
		}
		p.tok, p.lit = tokIdent, p.src[start:p.pos]
	case c >= '0' && c <= '9':
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		p.tok, p.lit = tokInt, p.src[start:p.pos]
	case c == '.' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '.':
		p.pos += 2
		p.tok, p.lit = tokRest, ".."
	case c == '<' || c == '>' || c == '[' || c == ']' || c == '{' || c == '}' || c == ',' || c == ':':
		p.pos++
		p.tok, p.lit = tokPunct, string(c)
	default:
		p.pos++
		p.tok, p.lit = tokIllegal, string(c)
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (p *parser) expect(punct string) error {
	if p.tok != tokPunct || p.lit != punct {
		return p.errorf("expected %q, found %q", punct, p.lit)
	}
	p.next()
	return nil
}

func (p *parser) accept(punct string) bool {
	if p.tok == tokPunct && p.lit == punct {
		p.next()
		return true
	}
	return false
}

func (p *parser) ident() (string, error) {
	if p.tok != tokIdent {
		return "", p.errorf("expected identifier, found %q", p.lit)
	}
	name := p.lit
	p.next()
	return name, nil
}

func (p *parser) formula() (*Formula, error) {
	if p.accept("[") {
		elem, err := p.formula()
		if err != nil {
			return nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		return Slice(elem), nil
	}

	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	if f, ok := primitiveByName[name]; ok {
		return f, nil
	}

	switch name {
	case "ref", "list", "deque", "option":
		elems, err := p.params(1)
		if err != nil {
			return nil, err
		}
		switch name {
		case "ref":
			return Ref(elems[0]), nil
		case "list":
			return List(elems[0]), nil
		case "deque":
			return Deque(elems[0]), nil
		default:
			return Option(elems[0]), nil
		}
	case "map":
		elems, err := p.params(2)
		if err != nil {
			return nil, err
		}
		return Map(elems[0], elems[1]), nil
	case "tuple":
		elems, err := p.params(-1)
		if err != nil {
			return nil, err
		}
		return Tuple(elems...), nil
	case "array":
		return p.array()
	case "struct":
		typeName := ""
		if p.tok == tokIdent {
			typeName = p.lit
			p.next()
		}
		fields, open, err := p.fields()
		if err != nil {
			return nil, err
		}
		if open {
			return OpenStruct(typeName, fields...), nil
		}
		return Struct(typeName, fields...), nil
	case "enum":
		return p.enum()
	}

	if f, ok := p.env[name]; ok {
		return f, nil
	}
	return nil, p.errorf("unknown formula %q", name)
}

// params parses "<f, ...>"; want < 0 accepts any count.
func (p *parser) params(want int) ([]*Formula, error) {
	if err := p.expect("<"); err != nil {
		return nil, err
	}
	var out []*Formula
	for !p.accept(">") {
		if len(out) > 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
			if p.accept(">") {
				break
			}
		}
		f, err := p.formula()
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if want >= 0 && len(out) != want {
		return nil, p.errorf("expected %d type parameters, found %d", want, len(out))
	}
	return out, nil
}

func (p *parser) array() (*Formula, error) {
	if err := p.expect("<"); err != nil {
		return nil, err
	}
	elem, err := p.formula()
	if err != nil {
		return nil, err
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	if p.tok != tokInt {
		return nil, p.errorf("expected array length, found %q", p.lit)
	}
	n, err := strconv.Atoi(p.lit)
	if err != nil {
		return nil, p.errorf("array length %q: %v", p.lit, err)
	}
	p.next()
	if err := p.expect(">"); err != nil {
		return nil, err
	}
	return Array(elem, n), nil
}

// fields parses "{ name: f, ..., [..] }".
func (p *parser) fields() ([]Field, bool, error) {
	if err := p.expect("{"); err != nil {
		return nil, false, err
	}
	var fields []Field
	for {
		if p.accept("}") {
			return fields, false, nil
		}
		if p.tok == tokRest {
			p.next()
			p.accept(",")
			return fields, true, p.expect("}")
		}
		name, err := p.ident()
		if err != nil {
			return nil, false, err
		}
		if err := p.expect(":"); err != nil {
			return nil, false, err
		}
		f, err := p.formula()
		if err != nil {
			return nil, false, err
		}
		fields = append(fields, F(name, f))
		if !p.accept(",") {
			if p.tok == tokRest {
				continue
			}
			return fields, false, p.expect("}")
		}
	}
}

func (p *parser) enum() (*Formula, error) {
	typeName := ""
	if p.tok == tokIdent {
		typeName = p.lit
		p.next()
	}
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	var variants []Variant
	open := false
	for !p.accept("}") {
		if p.tok == tokRest {
			p.next()
			p.accept(",")
			open = true
			if err := p.expect("}"); err != nil {
				return nil, err
			}
			break
		}
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		v := Variant{Name: name}
		if p.tok == tokPunct && p.lit == "{" {
			fields, fopen, err := p.fields()
			if err != nil {
				return nil, err
			}
			if fopen {
				return nil, p.errorf("variant %q cannot be open", name)
			}
			v.Fields = fields
		}
		variants = append(variants, v)
		if !p.accept(",") && !(p.tok == tokPunct && p.lit == "}") && p.tok != tokRest {
			return nil, p.errorf("expected \",\" or \"}\", found %q", p.lit)
		}
	}
	if open {
		return OpenEnum(typeName, variants...), nil
	}
	return Enum(typeName, variants...), nil
}
