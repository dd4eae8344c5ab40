package wasmmem

import (
	"context"
	"slices"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/zerocopy/codec"
	"github.com/wippyai/zerocopy/errors"
	"github.com/wippyai/zerocopy/formula"
)

// Buffer is a codec.Buffer over the window [base, base+size) of a guest
// memory. Bytes are written straight into guest memory; nothing is staged
// on the Go heap.
type Buffer struct {
	mem  api.Memory
	base uint32
	size uint32
}

var _ codec.Buffer = (*Buffer)(nil)

// NewBuffer returns a buffer over size bytes of mem starting at base.
func NewBuffer(mem api.Memory, base, size uint32) (*Buffer, error) {
	if mem == nil {
		return nil, errors.InvalidInput(errors.PhaseEncode, "nil guest memory")
	}
	if uint64(base)+uint64(size) > uint64(mem.Size()) {
		return nil, errors.InvalidReference(errors.PhaseEncode, nil, base, size, int(mem.Size()))
	}
	return &Buffer{mem: mem, base: base, size: size}, nil
}

// view returns the guest bytes [at, at+n) of the window. The slice aliases
// guest memory until the memory grows.
func (b *Buffer) view(at, n int) ([]byte, error) {
	if at+n > int(b.size) {
		return nil, errors.OutOfSpace(at+n, int(b.size))
	}
	p, ok := b.mem.Read(b.base+uint32(at), uint32(n))
	if !ok {
		return nil, errors.OutOfSpace(at+n, int(b.size))
	}
	return p, nil
}

func (b *Buffer) WriteStack(heap, stack int, p []byte) error {
	dst, err := b.view(heap+stack, len(p))
	if err != nil {
		return err
	}
	copy(dst, p)
	return nil
}

func (b *Buffer) PadStack(heap, stack, n int) error {
	dst, err := b.view(heap+stack, n)
	if err != nil {
		return err
	}
	clear(dst)
	return nil
}

func (b *Buffer) MoveToHeap(heap, stack, n int) error {
	p, err := b.view(heap, stack)
	if err != nil {
		return err
	}
	rotateRight(p, n)
	return nil
}

func (b *Buffer) Finish(heap, stack int) (int, error) {
	p, err := b.view(0, heap+stack)
	if err != nil {
		return 0, err
	}
	rotateRight(p, stack)
	return heap + stack, nil
}

func (b *Buffer) Reborrow() codec.Buffer {
	return b
}

// rotateRight moves the last n bytes of p to its front in place.
func rotateRight(p []byte, n int) {
	if n <= 0 || n >= len(p) {
		return
	}
	slices.Reverse(p)
	slices.Reverse(p[:n])
	slices.Reverse(p[n:])
}

// Allocator reserves guest memory.
type Allocator interface {
	Alloc(ctx context.Context, size, align uint32) (uint32, error)
}

// FuncAllocator allocates by calling a guest export with the canonical ABI
// realloc signature (old_ptr, old_size, align, new_size) -> ptr.
type FuncAllocator struct {
	Fn api.Function
}

// NewFuncAllocator looks up the realloc export of mod, usually
// "cabi_realloc".
func NewFuncAllocator(mod api.Module, name string) (*FuncAllocator, error) {
	fn := mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseEncode, "guest export", name)
	}
	return &FuncAllocator{Fn: fn}, nil
}

func (a *FuncAllocator) Alloc(ctx context.Context, size, align uint32) (uint32, error) {
	results, err := a.Fn.Call(ctx, 0, 0, uint64(align), uint64(size))
	if err != nil {
		return 0, errors.Wrap(errors.PhaseEncode, errors.KindOutOfSpace, err, "guest allocation failed")
	}
	if len(results) == 0 {
		return 0, errors.InvalidInput(errors.PhaseEncode, "realloc returned no pointer")
	}
	return uint32(results[0]), nil
}

// Codec encodes into and decodes out of one guest memory.
type Codec struct {
	enc *codec.Encoder
	dec *codec.Decoder
	mem api.Memory
}

// New returns a Codec over mem. Decoded bytes and strings are copied
// unless opts.Borrow is set, in which case they alias guest memory and are
// valid only until the guest next writes or grows it.
func New(mem api.Memory, opts codec.Options) *Codec {
	return &Codec{enc: codec.NewEncoder(opts), dec: codec.NewDecoder(opts), mem: mem}
}

// Memory returns the guest memory.
func (c *Codec) Memory() api.Memory {
	return c.mem
}

// EncodeAt writes v at base and fails with out_of_space when it does not
// fit in size bytes.
func (c *Codec) EncodeAt(f *formula.Formula, v any, base, size uint32) (int, codec.Sizes, error) {
	buf, err := NewBuffer(c.mem, base, size)
	if err != nil {
		return 0, codec.Sizes{}, err
	}
	return c.enc.Encode(buf, f, v)
}

// Encode measures v, allocates exactly that many guest bytes and writes v
// there. It returns the guest pointer and length.
func (c *Codec) Encode(ctx context.Context, alloc Allocator, f *formula.Formula, v any) (ptr, length uint32, err error) {
	sizes, err := c.enc.SizeHint(f, v)
	if err != nil {
		return 0, 0, err
	}
	total := uint32(sizes.Total())
	ptr, err = alloc.Alloc(ctx, total, 1)
	if err != nil {
		return 0, 0, err
	}
	n, _, err := c.EncodeAt(f, v, ptr, total)
	if err != nil {
		return 0, 0, err
	}
	return ptr, uint32(n), nil
}

// read returns guest bytes [ptr, ptr+length) without copying.
func (c *Codec) read(phase errors.Phase, ptr, length uint32) ([]byte, error) {
	data, ok := c.mem.Read(ptr, length)
	if !ok {
		return nil, errors.InvalidReference(phase, nil, ptr, length, int(c.mem.Size()))
	}
	return data, nil
}

// Decode decodes the value at [ptr, ptr+length) into out.
func (c *Codec) Decode(f *formula.Formula, ptr, length uint32, out any) error {
	data, err := c.read(errors.PhaseDecode, ptr, length)
	if err != nil {
		return err
	}
	return c.dec.Unmarshal(f, data, out)
}

// DecodeInPlace is Decode reusing the existing value at out.
func (c *Codec) DecodeInPlace(f *formula.Formula, ptr, length uint32, out any) error {
	data, err := c.read(errors.PhaseDecode, ptr, length)
	if err != nil {
		return err
	}
	return c.dec.UnmarshalInPlace(f, data, out)
}

// Validate checks the value at [ptr, ptr+length) against f.
func (c *Codec) Validate(f *formula.Formula, ptr, length uint32) error {
	data, err := c.read(errors.PhaseValidate, ptr, length)
	if err != nil {
		return err
	}
	return c.dec.Validate(f, data)
}

// Deserializer opens a cursor over the value at [ptr, ptr+length) for
// lazy, field-by-field reads.
func (c *Codec) Deserializer(f *formula.Formula, ptr, length uint32) (codec.Deserializer, error) {
	data, err := c.read(errors.PhaseDecode, ptr, length)
	if err != nil {
		return codec.Deserializer{}, err
	}
	return c.dec.NewDeserializer(f, data)
}
