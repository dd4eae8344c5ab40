package codec

import (
	"reflect"

	"github.com/wippyai/zerocopy/errors"
	"github.com/wippyai/zerocopy/formula"
)

// UnmarshalInPlace decodes data into the existing value ptr points to,
// reusing the slices, maps and pointees it already holds.
//
// The buffer is validated in full before the target is touched, so
// malformed input leaves the target unchanged. Errors returned by an
// Unmarshaler or failures of the Go binding may leave the target
// partially updated but structurally valid.
func (dc *Decoder) UnmarshalInPlace(f *formula.Formula, data []byte, ptr any) error {
	target, err := targetOf(errors.PhaseDecode, ptr)
	if err != nil {
		return err
	}
	p, err := dc.compiler.plan(f, target.Type())
	if err != nil {
		return err
	}
	if err := dc.Validate(f, data); err != nil {
		dc.observe(f, data, err)
		return err
	}
	err = dc.decodeRoot(f, data, p, target, true)
	dc.observe(f, data, err)
	return err
}

// decodeSeq fills the Go slice v from it. In place, the backing array of v
// is kept when its capacity suffices and retained elements are decoded
// over; otherwise a new array is allocated and the old elements are moved
// into it first.
func (dc *Decoder) decodeSeq(it *Iter, p *plan, v reflect.Value, inPlace bool) error {
	n := it.Remaining()
	if p.byteElems() {
		b := it.Bytes()[:n:n]
		dc.setBytes(v, b, inPlace)
		return nil
	}

	old := 0
	switch {
	case !inPlace:
		if n == 0 {
			v.SetZero()
			return nil
		}
		v.Set(reflect.MakeSlice(v.Type(), n, n))
	case v.IsNil() && n == 0:
		return nil
	case v.Cap() >= n:
		old = min(v.Len(), n)
		for i := n; i < v.Len(); i++ {
			v.Index(i).SetZero()
		}
		v.SetLen(n)
		for i := old; i < n; i++ {
			v.Index(i).SetZero()
		}
	default:
		old = v.Len()
		grown := reflect.MakeSlice(v.Type(), n, n)
		reflect.Copy(grown, v)
		v.Set(grown)
	}

	for i := 0; it.Next(); i++ {
		if err := dc.decode(it.Elem(), p.elem, v.Index(i), i < old); err != nil {
			return withIndex(err, i)
		}
	}
	return it.Err()
}
