// Package codec encodes Go values into the stack/heap layout of a formula
// and decodes them back without intermediate copies.
//
// # Wire Layout
//
// One encoded value is a single buffer:
//
//	┌──────────────────────┬───────────────────────────────────┐
//	│ root stack           │ heap                              │
//	│ stride(F) bytes      │ payloads addressed by references  │
//	└──────────────────────┴───────────────────────────────────┘
//
// Every member is placed by the same rule:
//
//	member                       written as
//	───────────────────────────────────────────────────────────
//	not last, unbounded          payload on heap, reference on stack
//	not last, bounded, inexact   inline, zero padded to the bound
//	otherwise                    inline
//
// A reference is 8 bytes: u32 offset then u32 length, little-endian. The
// offset counts from the start of the heap region. The length is a byte
// count, or an element count when the payload is a slice. A payload is
// always written before the reference to it, so references only point
// backward and decoding any input terminates.
//
// # Key Types
//
//	Encoder       - Writes Go values into a Buffer
//	Decoder       - Reads buffers into Go values, fresh or in place
//	Compiler      - Binds formulas to Go types, cached
//	Serializer    - Per-aggregate write handle, for Marshaler
//	Deserializer  - Read-only cursor, for Unmarshaler
//	Deque         - Ring buffer that encodes like a list
//
// # Buffers
//
//	VecBuffer     grows as needed
//	FixedBuffer   caller-owned slice, out_of_space when full
//	DryBuffer     counts bytes only
//
// # Go Bindings
//
//	formula         Go type
//	──────────────────────────────────────────────────────────
//	unit            struct{}
//	bool            bool
//	u8..i64         the integer type of the same width
//	f32, f64        float32, float64
//	bytes           []byte or string
//	string          string
//	ref(F)          the Go type of F
//	slice, list     []T or Deque[T]
//	deque           Deque[T] or []T
//	array(F, n)     [n]T or []T of length n
//	map(K, V)       map[K]V
//	option(F)       *T
//	tuple, struct   struct, fields by position or by name
//	enum            integer, Variant, or struct of variant pointers
//	any formula     any, see Variant
//
// Struct fields are matched by zc tag, then case-insensitively by name.
//
// # Borrowing
//
// With Options.Borrow, decoded []byte and string values alias the input.
// The input must outlive them and must not be modified.
//
// # Thread Safety
//
// Encoder, Decoder and Compiler are safe for concurrent use. Serializer and
// Deserializer values belong to one call.
package codec
