// Package abi provides internal utilities shared by the formula and codec
// packages.
//
// # Contents
//
//   - coerce.go: numeric coercion from dynamic values (YAML, JSON, any)
//   - helpers.go: overflow-checked arithmetic, wire constants and limits
//
// This package is internal to the module.
package abi
