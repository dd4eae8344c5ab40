// Package derive builds formulas from type declarations.
//
// A Declaration is a struct or enum as the deriver sees it. It comes from a
// Go type (FromType), a WIT type definition (FromWIT) or annotated Go source
// (ParseFS). Derive turns a formula declaration into a Schema; DeriveCodec
// checks a type that encodes with someone else's schema against that
// schema's markers.
//
// Source annotations are doc-comment directives:
//
//	//zc:formula
//	type Point struct {
//		X int32
//		Y int32
//	}
//
//	//zc:serialize Point
//	type PointView struct {
//		X int32
//		Y int32
//	}
//
// Generate renders a derived package as Go source. The cmd/zcgen command
// wraps ParseFS, Build and Generate for use with go:generate.
package derive
