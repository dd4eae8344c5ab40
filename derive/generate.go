package derive

import (
	"bytes"
	"fmt"
	"go/format"
	"strings"
	"unicode"

	"github.com/wippyai/zerocopy/errors"
)

// Generate renders res as a Go file declaring each schema's formula and
// markers, plus compile-time assertions that every codec's markers agree
// with the package-local schema it names.
func Generate(res *Result) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString("// Code generated by zcgen. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", res.Package)
	if len(res.Schemas) > 0 || hasExternCodec(res) {
		b.WriteString("import \"github.com/wippyai/zerocopy/formula\"\n\n")
	}

	local := map[*Schema]bool{}
	for _, s := range res.Schemas {
		local[s] = true
		fmt.Fprintf(&b, "// %sFormula is the formula of %s.\n", s.Name, s.Name)
		fmt.Fprintf(&b, "var %sFormula = formula.MustCheck(%s)\n\n", s.Name, s.Formula.GoSource("formula"))
		writeMarkers(&b, s.Name, s.Markers)
		fmt.Fprintf(&b, "// %sFingerprint identifies the member layout of %s.\n", s.Name, s.Name)
		fmt.Fprintf(&b, "const %sFingerprint uint64 = %#016x\n\n", s.Name, s.Fingerprint)
	}

	for _, c := range res.Codecs {
		s := c.Serialize
		if s == nil {
			s = c.Deserialize
		}
		fmt.Fprintf(&b, "// %sFormula is the formula %s encodes with.\n", c.Name, c.Name)
		switch {
		case !local[s]:
			fmt.Fprintf(&b, "var %sFormula = formula.MustCheck(%s)\n\n", c.Name, c.Formula().GoSource("formula"))
		case c.Variant >= 0:
			fmt.Fprintf(&b, "var %sFormula = %sFormula.VariantFormula(%d)\n\n", c.Name, s.Name, c.Variant)
		default:
			fmt.Fprintf(&b, "var %sFormula = %sFormula\n\n", c.Name, s.Name)
		}
		writeMarkers(&b, c.Name, c.Markers)
		for _, target := range []*Schema{c.Serialize, c.Deserialize} {
			if target != nil && local[target] {
				writeAssertions(&b, c, target)
			}
		}
	}

	out, err := format.Source(b.Bytes())
	if err != nil {
		return nil, errors.Wrap(errors.PhaseGenerate, errors.KindInvalidData, err, "formatting generated source")
	}
	return out, nil
}

func hasExternCodec(res *Result) bool {
	for _, c := range res.Codecs {
		found := false
		for _, s := range res.Schemas {
			if s == c.Serialize || s == c.Deserialize {
				found = true
			}
		}
		if !found {
			return true
		}
	}
	return false
}

func markerIdent(owner, marker string) string {
	return owner + "_" + strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return '_'
	}, marker)
}

func writeMarkers(b *bytes.Buffer, owner string, m Markers) {
	names := m.Names()
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(b, "// Member markers of %s.\nconst (\n", owner)
	for _, mk := range names {
		fmt.Fprintf(b, "\t%s = %d\n", markerIdent(owner, mk.Name), mk.Value)
	}
	b.WriteString(")\n\n")
}

// writeAssertions emits one constant array index per marker. The index is 0
// when the markers agree and fails to compile otherwise.
func writeAssertions(b *bytes.Buffer, c *Codec, s *Schema) {
	prefix := ""
	if c.Variant >= 0 {
		for vn, vm := range s.Markers.Variants {
			if vm.Index == c.Variant {
				prefix = "VARIANT_" + vn + "_"
			}
		}
	}

	fmt.Fprintf(b, "// %s must keep the member layout of %s.\nvar (\n", c.Name, s.Name)
	for _, mk := range c.Markers.Names() {
		fmt.Fprintf(b, "\t_ = [1]struct{}{}[%s-%s]\n", markerIdent(c.Name, mk.Name), markerIdent(s.Name, prefix+mk.Name))
	}
	b.WriteString(")\n\n")
}
