package codec

import (
	"github.com/wippyai/zerocopy/formula"
	"github.com/wippyai/zerocopy/internal/abi"
)

// Options configures an Encoder or Decoder.
type Options struct {
	// Observer receives encode, decode and plan cache events. May be nil.
	Observer Observer
	// Compiler shares a plan cache between codecs. When nil a private
	// compiler of PlanCacheSize entries is created.
	Compiler *Compiler
	// Borrow makes decoded []byte and string values alias the input
	// instead of copying it. The input must then outlive the result and
	// must not be modified.
	Borrow bool
	// MaxDepth limits nesting while decoding.
	MaxDepth int
	// MaxListLength limits the element count of any decoded sequence.
	MaxListLength int
	// MaxStringSize limits the byte length of decoded bytes and strings.
	MaxStringSize int
	// PlanCacheSize bounds the private plan cache.
	PlanCacheSize int
}

// DefaultOptions returns owned decoding with the default limits.
func DefaultOptions() Options {
	return Options{
		MaxDepth:      abi.MaxDepth,
		MaxListLength: abi.MaxListLength,
		MaxStringSize: abi.MaxStringSize,
		PlanCacheSize: DefaultPlanCacheSize,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxDepth <= 0 {
		o.MaxDepth = d.MaxDepth
	}
	if o.MaxListLength <= 0 {
		o.MaxListLength = d.MaxListLength
	}
	if o.MaxStringSize <= 0 {
		o.MaxStringSize = d.MaxStringSize
	}
	if o.PlanCacheSize <= 0 {
		o.PlanCacheSize = d.PlanCacheSize
	}
	if o.Compiler == nil {
		o.Compiler = NewCompiler(o.PlanCacheSize, o.Observer)
	}
	return o
}

// Observer is notified of codec activity. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveEncode(f *formula.Formula, sizes Sizes, err error)
	ObserveDecode(f *formula.Formula, n int, err error)
	ObservePlan(hit bool)
}
