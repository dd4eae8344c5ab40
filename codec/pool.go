package codec

import "sync"

const (
	// Pool limits to prevent memory bloat
	poolMaxCap  = 64 << 10
	poolInitCap = 64
)

// scratch buffers for encoding map keys before sorting
var scratchPool = sync.Pool{
	New: func() any {
		return NewVecBuffer(make([]byte, 0, poolInitCap))
	},
}

func getScratch() *VecBuffer {
	b := scratchPool.Get().(*VecBuffer)
	b.Reset()
	return b
}

func putScratch(b *VecBuffer) {
	if b == nil || cap(b.buf) > poolMaxCap {
		return // reject oversized
	}
	b.Reset()
	scratchPool.Put(b)
}
