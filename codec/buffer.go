package codec

import (
	"slices"

	"github.com/wippyai/zerocopy/errors"
)

// Buffer is the destination of one encode call.
//
// While encoding, heap bytes occupy [0, heap) and pending stack bytes occupy
// [heap, heap+stack). Each method receives the current Sizes so that
// implementations hold no bookkeeping of their own; a method that fails must
// leave the bytes it was given untouched.
type Buffer interface {
	// WriteStack appends p to the pending stack.
	WriteStack(heap, stack int, p []byte) error
	// PadStack appends n zero bytes to the pending stack.
	PadStack(heap, stack, n int) error
	// MoveToHeap turns the last n pending stack bytes into heap bytes at
	// offset heap, shifting the rest of the pending stack up by n.
	MoveToHeap(heap, stack, n int) error
	// Finish rotates the buffer into its final form, stack then heap, and
	// returns the total length.
	Finish(heap, stack int) (int, error)
	// Reborrow returns a handle to the same destination for a nested write.
	Reborrow() Buffer
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

// VecBuffer grows as needed and never runs out of space. Encoded bytes are
// appended after any bytes the initial slice already held.
type VecBuffer struct {
	buf  []byte
	base int
}

// NewVecBuffer returns a buffer appending to dst.
func NewVecBuffer(dst []byte) *VecBuffer {
	return &VecBuffer{buf: dst, base: len(dst)}
}

// Grow reserves room for n more bytes.
func (b *VecBuffer) Grow(n int) {
	b.buf = slices.Grow(b.buf, n)
}

// Bytes returns the initial bytes followed by everything written so far.
func (b *VecBuffer) Bytes() []byte {
	return b.buf
}

// Reset discards everything after the initial bytes.
func (b *VecBuffer) Reset() {
	b.buf = b.buf[:b.base]
}

func (b *VecBuffer) WriteStack(heap, stack int, p []byte) error {
	b.buf = append(b.buf[:b.base+heap+stack], p...)
	return nil
}

func (b *VecBuffer) PadStack(heap, stack, n int) error {
	at := b.base + heap + stack
	b.buf = slices.Grow(b.buf[:at], n)[:at+n]
	clear(b.buf[at:])
	return nil
}

func (b *VecBuffer) MoveToHeap(heap, stack, n int) error {
	rotateRight(b.buf[b.base+heap:b.base+heap+stack], n)
	return nil
}

func (b *VecBuffer) Finish(heap, stack int) (int, error) {
	b.buf = b.buf[:b.base+heap+stack]
	rotateRight(b.buf[b.base:], stack)
	return heap + stack, nil
}

func (b *VecBuffer) Reborrow() Buffer {
	return b
}

// FixedBuffer writes into a caller-owned slice and fails with out_of_space
// instead of growing.
type FixedBuffer struct {
	p []byte
}

// NewFixedBuffer returns a buffer over p.
func NewFixedBuffer(p []byte) *FixedBuffer {
	return &FixedBuffer{p: p}
}

func (b *FixedBuffer) reserve(at, n int) error {
	if at+n > len(b.p) {
		return errors.OutOfSpace(at+n, len(b.p))
	}
	return nil
}

func (b *FixedBuffer) WriteStack(heap, stack int, p []byte) error {
	at := heap + stack
	if err := b.reserve(at, len(p)); err != nil {
		return err
	}
	copy(b.p[at:], p)
	return nil
}

func (b *FixedBuffer) PadStack(heap, stack, n int) error {
	at := heap + stack
	if err := b.reserve(at, n); err != nil {
		return err
	}
	clear(b.p[at : at+n])
	return nil
}

func (b *FixedBuffer) MoveToHeap(heap, stack, n int) error {
	rotateRight(b.p[heap:heap+stack], n)
	return nil
}

func (b *FixedBuffer) Finish(heap, stack int) (int, error) {
	rotateRight(b.p[:heap+stack], stack)
	return heap + stack, nil
}

func (b *FixedBuffer) Reborrow() Buffer {
	return b
}

// DryBuffer discards bytes and only lets Sizes advance. Encoding into it
// measures a value exactly.
type DryBuffer struct{}

func (DryBuffer) WriteStack(int, int, []byte) error   { return nil }
func (DryBuffer) PadStack(int, int, int) error        { return nil }
func (DryBuffer) MoveToHeap(int, int, int) error      { return nil }
func (DryBuffer) Finish(heap, stack int) (int, error) { return heap + stack, nil }
func (d DryBuffer) Reborrow() Buffer                  { return d }
