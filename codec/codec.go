package codec

import (
	"sync"

	"github.com/wippyai/zerocopy/formula"
)

// Marshaler is implemented by types that write their own representation.
// MarshalFormula writes the value as the final member of s; placement in
// the enclosing aggregate is handled by the caller.
type Marshaler interface {
	MarshalFormula(f *formula.Formula, s *Serializer) error
}

// Unmarshaler is implemented by types that read their own representation
// from the window d. The receiver may hold a previous value to reuse.
type Unmarshaler interface {
	UnmarshalFormula(f *formula.Formula, d Deserializer) error
}

// SizeHinter lets a Marshaler report the Sizes MarshalFormula will commit.
// Returning false falls back to measuring a dry run.
type SizeHinter interface {
	SizeHint(f *formula.Formula) (Sizes, bool)
}

var (
	defaultOnce    sync.Once
	defaultEncoder *Encoder
	defaultDecoder *Decoder
)

func defaults() (*Encoder, *Decoder) {
	defaultOnce.Do(func() {
		opts := DefaultOptions().withDefaults()
		defaultEncoder = NewEncoder(opts)
		defaultDecoder = NewDecoder(opts)
	})
	return defaultEncoder, defaultDecoder
}

// Marshal encodes v with f using default options.
func Marshal(f *formula.Formula, v any) ([]byte, error) {
	enc, _ := defaults()
	return enc.Marshal(f, v)
}

// MarshalAppend appends the encoding of v to dst.
func MarshalAppend(f *formula.Formula, v any, dst []byte) ([]byte, Sizes, error) {
	enc, _ := defaults()
	return enc.MarshalAppend(f, v, dst)
}

// MarshalInto encodes v into dst and fails with out_of_space when it does
// not fit.
func MarshalInto(f *formula.Formula, v any, dst []byte) (int, Sizes, error) {
	enc, _ := defaults()
	return enc.MarshalInto(f, v, dst)
}

// SizeHint returns the Sizes that encoding v with f commits.
func SizeHint(f *formula.Formula, v any) (Sizes, error) {
	enc, _ := defaults()
	return enc.SizeHint(f, v)
}

// Unmarshal decodes data into ptr using default options.
func Unmarshal(f *formula.Formula, data []byte, ptr any) error {
	_, dec := defaults()
	return dec.Unmarshal(f, data, ptr)
}

// UnmarshalInPlace decodes data into the existing value at ptr.
func UnmarshalInPlace(f *formula.Formula, data []byte, ptr any) error {
	_, dec := defaults()
	return dec.UnmarshalInPlace(f, data, ptr)
}

// Validate checks data against f without decoding it.
func Validate(f *formula.Formula, data []byte) error {
	_, dec := defaults()
	return dec.Validate(f, data)
}
