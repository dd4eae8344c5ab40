package codec

import (
	"encoding/binary"

	"github.com/wippyai/zerocopy/internal/abi"
)

// ReferenceSize is the wire width of a Reference.
const ReferenceSize = abi.ReferenceSize

// Reference locates a heap payload. Offset is measured from the start of the
// heap region. Length is a byte count, or an element count for slice
// payloads.
type Reference struct {
	Offset uint32
	Length uint32
}

// AppendReference appends the 8-byte little-endian form of r.
func AppendReference(dst []byte, r Reference) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, r.Offset)
	return binary.LittleEndian.AppendUint32(dst, r.Length)
}

// PutReference writes r into p, which must hold ReferenceSize bytes.
func PutReference(p []byte, r Reference) {
	_ = p[ReferenceSize-1]
	binary.LittleEndian.PutUint32(p[0:4], r.Offset)
	binary.LittleEndian.PutUint32(p[4:8], r.Length)
}

// ParseReference reads a Reference from the first ReferenceSize bytes of p.
func ParseReference(p []byte) Reference {
	_ = p[ReferenceSize-1]
	return Reference{
		Offset: binary.LittleEndian.Uint32(p[0:4]),
		Length: binary.LittleEndian.Uint32(p[4:8]),
	}
}
