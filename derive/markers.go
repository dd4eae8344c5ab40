package derive

import (
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/wippyai/zerocopy/errors"
)

// Markers record the member positions of a declaration. A codec agrees with
// a schema when every marker it carries has the schema's value.
type Markers struct {
	Fields     map[string]int
	Variants   map[string]VariantMarkers
	FieldCount int
}

// VariantMarkers are the markers of one enum variant.
type VariantMarkers struct {
	Fields     map[string]int
	Index      int
	FieldCount int
}

func fieldMarkers(fields []Field) map[string]int {
	m := make(map[string]int, len(fields))
	for i, fd := range fields {
		m[fd.Name] = i
	}
	return m
}

func markersOf(decl *Declaration) Markers {
	var m Markers
	switch decl.Kind {
	case KindStruct:
		m.Fields = fieldMarkers(decl.Fields)
		m.FieldCount = len(decl.Fields)
	case KindEnum:
		m.Variants = make(map[string]VariantMarkers, len(decl.Variants))
		for i, v := range decl.Variants {
			m.Variants[v.Name] = VariantMarkers{
				Index:      i,
				Fields:     fieldMarkers(v.Fields),
				FieldCount: len(v.Fields),
			}
		}
	}
	return m
}

// Names returns the marker constant names and values in a stable order.
func (m Markers) Names() []Marker {
	var out []Marker
	for _, name := range sortedKeys(m.Fields) {
		out = append(out, Marker{Name: "FIELD_" + name + "_IDX", Value: m.Fields[name]})
	}
	if m.Fields != nil {
		out = append(out, Marker{Name: "FIELD_COUNT", Value: m.FieldCount})
	}
	for _, vn := range sortedKeys(m.Variants) {
		v := m.Variants[vn]
		out = append(out, Marker{Name: "VARIANT_" + vn + "_IDX", Value: v.Index})
		for _, name := range sortedKeys(v.Fields) {
			out = append(out, Marker{Name: "VARIANT_" + vn + "_FIELD_" + name + "_IDX", Value: v.Fields[name]})
		}
		out = append(out, Marker{Name: "VARIANT_" + vn + "_FIELD_COUNT", Value: v.FieldCount})
	}
	return out
}

// Marker is one named position constant.
type Marker struct {
	Name  string
	Value int
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m Markers) fingerprint(name string) uint64 {
	h := xxhash.New()
	fingerprintOf(h, name)
	for _, mk := range m.Names() {
		fingerprintOf(h, mk.Name)
		fingerprintOf(h, strconv.Itoa(mk.Value))
	}
	return h.Sum64()
}

// CheckAgreement reports the first marker of codec that disagrees with s.
func CheckAgreement(s *Schema, codec Markers) error {
	switch s.Kind {
	case KindStruct:
		if codec.Variants != nil {
			return errors.MarkerMismatch(s.Name, nil, "enum codec against a struct schema")
		}
		return agreeFields(s.Name, nil, s.Markers.Fields, s.Markers.FieldCount, codec)
	case KindEnum:
		if codec.Fields != nil {
			return errors.MarkerMismatch(s.Name, nil, "struct codec against an enum schema")
		}
		for _, vn := range sortedKeys(codec.Variants) {
			cv := codec.Variants[vn]
			sv, ok := s.Markers.Variants[vn]
			if !ok {
				return errors.MarkerMismatch(s.Name, []string{vn}, "variant is not declared by the schema")
			}
			if cv.Index != sv.Index {
				return errors.MarkerMismatch(s.Name, []string{vn},
					"variant index "+strconv.Itoa(cv.Index)+", schema has "+strconv.Itoa(sv.Index))
			}
			inner := Markers{Fields: cv.Fields, FieldCount: cv.FieldCount}
			if err := agreeFields(s.Name, []string{vn}, sv.Fields, sv.FieldCount, inner); err != nil {
				return err
			}
		}
		if len(codec.Variants) != len(s.Markers.Variants) {
			for _, vn := range sortedKeys(s.Markers.Variants) {
				if _, ok := codec.Variants[vn]; !ok {
					return errors.MarkerMismatch(s.Name, []string{vn}, "variant is missing from the codec")
				}
			}
		}
		return nil
	}
	return errors.InvalidInput(errors.PhaseDerive, "schema "+s.Name+" has no markers")
}

func agreeFields(schema string, path []string, fields map[string]int, count int, codec Markers) error {
	for _, name := range sortedKeys(codec.Fields) {
		want, ok := fields[name]
		if !ok {
			return errors.MarkerMismatch(schema, append(path, name), "field is not declared by the schema")
		}
		if got := codec.Fields[name]; got != want {
			return errors.MarkerMismatch(schema, append(path, name),
				"field index "+strconv.Itoa(got)+", schema has "+strconv.Itoa(want))
		}
	}
	if codec.FieldCount != count {
		return errors.MarkerMismatch(schema, path,
			"field count "+strconv.Itoa(codec.FieldCount)+", schema has "+strconv.Itoa(count))
	}
	return nil
}
