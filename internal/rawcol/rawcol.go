// Package rawcol provides bounds-checked typed views over the raw byte
// buffers that hold unquantized feature values.
//
// A raw buffer stores one fixed-width element per document: 4 bytes for
// float32-encoded numeric and categorical values, 1 byte for pre-binarized
// values. Views validate the buffer length once at construction so element
// access needs no per-call checks beyond the slice bounds Go already
// enforces.
package rawcol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Float32Stride is the element stride of numeric and categorical buffers.
const Float32Stride = 4

// Float32View is a little-endian float32 view over a byte buffer.
type Float32View struct {
	buf []byte
}

// ViewFloat32 wraps buf. The buffer length must be a multiple of the
// 4-byte stride and cover exactly docCount elements.
func ViewFloat32(buf []byte, docCount int) (Float32View, error) {
	if len(buf) != docCount*Float32Stride {
		return Float32View{}, fmt.Errorf("rawcol: buffer is %d bytes, want %d (%d docs x %d)",
			len(buf), docCount*Float32Stride, docCount, Float32Stride)
	}
	return Float32View{buf: buf}, nil
}

// Len returns the element count.
func (v Float32View) Len() int { return len(v.buf) / Float32Stride }

// At returns element i.
func (v Float32View) At(i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(v.buf[i*Float32Stride:]))
}

// Set stores element i.
func (v Float32View) Set(i int, val float32) {
	binary.LittleEndian.PutUint32(v.buf[i*Float32Stride:], math.Float32bits(val))
}

// SetBits stores element i from its raw bit pattern. Categorical buffers
// carry 32-bit hash values in the same 4-byte slots.
func (v Float32View) SetBits(i int, bits uint32) {
	binary.LittleEndian.PutUint32(v.buf[i*Float32Stride:], bits)
}

// BitsAt returns the raw bit pattern of element i.
func (v Float32View) BitsAt(i int) uint32 {
	return binary.LittleEndian.Uint32(v.buf[i*Float32Stride:])
}

// Floats copies the elements out as a float32 slice ordered by perm:
// out[i] = element at perm[i]. perm must be a permutation of [0, Len).
func (v Float32View) Floats(perm []int) []float32 {
	out := make([]float32, len(perm))
	for i, src := range perm {
		out[i] = v.At(src)
	}
	return out
}

// Bits copies the elements out as raw 32-bit values ordered by perm.
func (v Float32View) Bits(perm []int) []uint32 {
	out := make([]uint32, len(perm))
	for i, src := range perm {
		out[i] = v.BitsAt(src)
	}
	return out
}

// Uint8View is a 1-byte-per-element view for pre-binarized buffers.
type Uint8View struct {
	buf []byte
}

// ViewUint8 wraps buf, which must hold exactly docCount bytes.
func ViewUint8(buf []byte, docCount int) (Uint8View, error) {
	if len(buf) != docCount {
		return Uint8View{}, fmt.Errorf("rawcol: buffer is %d bytes, want %d", len(buf), docCount)
	}
	return Uint8View{buf: buf}, nil
}

// Len returns the element count.
func (v Uint8View) Len() int { return len(v.buf) }

// At returns element i.
func (v Uint8View) At(i int) uint8 { return v.buf[i] }

// Set stores element i.
func (v Uint8View) Set(i int, val uint8) { v.buf[i] = val }

// Bins copies the elements out as uint32 bin indices ordered by perm.
func (v Uint8View) Bins(perm []int) []uint32 {
	out := make([]uint32, len(perm))
	for i, src := range perm {
		out[i] = uint32(v.buf[src])
	}
	return out
}
