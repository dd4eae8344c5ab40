package codec

import "github.com/wippyai/zerocopy/formula"

// Iter walks a run of encoded elements once, front to back. Each element
// cursor is cut from the run as it is produced:
//
//	for it.Next() {
//		el := it.Elem()
//		...
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
type Iter struct {
	d    Deserializer
	elem *formula.Formula
	cur  Deserializer
	err  error
	n    int
}

// Next advances to the next element and reports whether there is one.
func (it *Iter) Next() bool {
	if it.err != nil || it.n == 0 {
		return false
	}
	it.cur, it.err = it.d.Field(it.elem, false)
	if it.err != nil {
		return false
	}
	it.n--
	return true
}

// Elem returns the cursor of the current element.
func (it *Iter) Elem() *Deserializer {
	return &it.cur
}

// Err returns the error that stopped iteration, if any.
func (it *Iter) Err() error {
	return it.err
}

// Remaining returns the number of elements not yet produced.
func (it *Iter) Remaining() int {
	return it.n
}

// Bytes returns the unconsumed element bytes without advancing.
func (it *Iter) Bytes() []byte {
	return it.d.stack
}
