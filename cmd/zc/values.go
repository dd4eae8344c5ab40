package main

import (
	"bytes"
	"fmt"
	"sort"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/zerocopy/codec"
)

// parseValue reads a YAML document as a dynamic value. Structs are
// mappings, enums a variant name or a one-key mapping of name to fields.
func parseValue(data []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse value: %w", err)
	}
	return v, nil
}

// plain turns a decoded dynamic value into the shape parseValue accepts, so
// decode output can be fed back to encode. Bytes that are not UTF-8 become
// a list of octets.
func plain(v any) any {
	switch x := v.(type) {
	case struct{}:
		return nil
	case codec.Variant:
		if x.Value == nil {
			return x.Name
		}
		return map[string]any{x.Name: plain(x.Value)}
	case []byte:
		if utf8.Valid(x) {
			return string(x)
		}
		out := make([]any, len(x))
		for i, b := range x {
			out[i] = b
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plain(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = plain(e)
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(x))
		for k, e := range x {
			out[plain(k)] = plain(e)
		}
		return out
	}
	return v
}

func renderValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(plain(v)); err != nil {
		return nil, fmt.Errorf("render value: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("render value: %w", err)
	}
	return buf.Bytes(), nil
}

// node is one line of a flattened value tree.
type node struct {
	path  string
	label string
	value string
	depth int
}

// flatten lists v depth first. Mapping keys are visited in sorted order.
func flatten(v any) []node {
	var out []node
	var walk func(path, label string, v any, depth int)
	walk = func(path, label string, v any, depth int) {
		switch x := v.(type) {
		case map[string]any:
			out = append(out, node{path: path, label: label, value: fmt.Sprintf("{%d}", len(x)), depth: depth})
			keys := make([]string, 0, len(x))
			for k := range x {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(join(path, k), k, x[k], depth+1)
			}
		case map[any]any:
			out = append(out, node{path: path, label: label, value: fmt.Sprintf("{%d}", len(x)), depth: depth})
			keys := make([]string, 0, len(x))
			byKey := make(map[string]any, len(x))
			for k, e := range x {
				ks := fmt.Sprint(k)
				keys = append(keys, ks)
				byKey[ks] = e
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(join(path, "["+k+"]"), "["+k+"]", byKey[k], depth+1)
			}
		case []any:
			out = append(out, node{path: path, label: label, value: fmt.Sprintf("[%d]", len(x)), depth: depth})
			for i, e := range x {
				idx := fmt.Sprintf("[%d]", i)
				walk(join(path, idx), idx, e, depth+1)
			}
		case nil:
			out = append(out, node{path: path, label: label, value: "~", depth: depth})
		case string:
			out = append(out, node{path: path, label: label, value: fmt.Sprintf("%q", x), depth: depth})
		default:
			out = append(out, node{path: path, label: label, value: fmt.Sprint(x), depth: depth})
		}
	}
	walk("", "value", plain(v), 0)
	return out
}

func join(path, seg string) string {
	switch {
	case path == "":
		return seg
	case seg != "" && seg[0] == '[':
		return path + seg
	}
	return path + "." + seg
}
