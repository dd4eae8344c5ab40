package formula

import (
	"fmt"

	"github.com/wippyai/zerocopy/errors"
)

// Check verifies that f and everything it contains is encodable: the exact
// size invariant, unique member names, non-negative array lengths, and no
// zero-stride slice whose element count would have to come from a window.
func Check(f *Formula) error {
	return check(f, nil, false)
}

func check(f *Formula, path []string, window bool) error {
	if f == nil {
		return errors.New(errors.PhaseCompile, errors.KindInvalidInput).
			Path(path...).Detail("nil formula").Build()
	}
	if f.exact && !f.max.bounded {
		return errors.New(errors.PhaseCompile, errors.KindInvalidInput).
			Path(path...).Formula(f.String()).Detail("exact size without a bound").Build()
	}

	switch f.kind {
	case KindRef:
		return check(f.elem, append(path, "ref"), false)
	case KindSlice:
		if window && f.elem.Stride() == 0 {
			return errors.New(errors.PhaseCompile, errors.KindUnsupported).
				Path(path...).Formula(f.String()).
				Detail("zero-width elements need a counted sequence such as list").Build()
		}
		return check(f.elem, append(path, "[]"), false)
	case KindArray:
		if f.n < 0 {
			return errors.New(errors.PhaseCompile, errors.KindInvalidInput).
				Path(path...).Detail("negative array length %d", f.n).Build()
		}
		return check(f.elem, append(path, "[]"), false)
	case KindList, KindDeque, KindMap:
		return check(f.elem, append(path, "[]"), false)
	case KindOption:
		return check(f.elem, append(path, "?"), true)
	case KindTuple, KindStruct:
		return checkFields(f.fields, path)
	case KindEnum:
		seen := make(map[string]struct{}, len(f.variants))
		for _, v := range f.variants {
			if _, dup := seen[v.Name]; dup {
				return errors.New(errors.PhaseCompile, errors.KindInvalidInput).
					Path(path...).Formula(f.String()).Detail("duplicate variant %q", v.Name).Build()
			}
			seen[v.Name] = struct{}{}
			if err := checkFields(v.Fields, append(path, v.Name)); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkFields walks members. The last one is always read from the rest of
// a window; the others are either fixed windows or references.
func checkFields(fields []Field, path []string) error {
	seen := make(map[string]struct{}, len(fields))
	for i, fd := range fields {
		if _, dup := seen[fd.Name]; dup {
			return errors.New(errors.PhaseCompile, errors.KindInvalidInput).
				Path(path...).Detail("duplicate field %q", fd.Name).Build()
		}
		seen[fd.Name] = struct{}{}
		if err := check(fd.Formula, append(path, fd.Name), i == len(fields)-1); err != nil {
			return err
		}
	}
	return nil
}

// MustCheck panics if Check fails. Intended for package-level formulas.
func MustCheck(f *Formula) *Formula {
	if err := Check(f); err != nil {
		panic(fmt.Sprintf("formula: %v", err))
	}
	return f
}
