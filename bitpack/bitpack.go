// Package bitpack packs small unsigned integers into dense 64-bit words.
//
// Quantized feature columns store one bin index per document. Bin indices
// are tiny (a 255-border grid needs 8 bits), so storing them as full bytes
// or uint32s wastes most of the space. This package packs them at the
// minimal bit width for a given bin count and unpacks them losslessly.
package bitpack

import (
	"fmt"
	"math/bits"
)

// Width returns the number of bits required to address binCount distinct
// bins. Zero or one bin needs no storage at all; callers treat width 0 as
// a degenerate column and skip it.
func Width(binCount uint32) uint {
	if binCount <= 1 {
		return 0
	}
	return uint(bits.Len32(binCount - 1))
}

// Packed is a bit-packed sequence of unsigned integers.
//
// Values are laid out LSB-first inside each 64-bit word and never straddle
// a word boundary, so a word holds exactly 64/width values. The layout is
// fixed; the same input always produces the same words.
type Packed struct {
	words []uint64
	width uint
	count int
}

// Compress packs values at the given bit width.
//
// It returns an error if any value does not fit in width bits. A width of
// zero is allowed only when every value is zero; the result then carries
// no words at all.
func Compress(values []uint32, width uint) (*Packed, error) {
	if width > 32 {
		return nil, fmt.Errorf("bitpack: width %d exceeds 32", width)
	}

	if width == 0 {
		for i, v := range values {
			if v != 0 {
				return nil, fmt.Errorf("bitpack: value %d at index %d does not fit in width 0", v, i)
			}
		}
		return &Packed{count: len(values)}, nil
	}

	limit := uint32(1) << width
	perWord := 64 / width
	words := make([]uint64, (uint(len(values))+perWord-1)/perWord)

	for i, v := range values {
		if v >= limit && width < 32 {
			return nil, fmt.Errorf("bitpack: value %d at index %d does not fit in width %d", v, i, width)
		}
		word := uint(i) / perWord
		shift := (uint(i) % perWord) * width
		words[word] |= uint64(v) << shift
	}

	return &Packed{
		words: words,
		width: width,
		count: len(values),
	}, nil
}

// Decompress unpacks the original values. The result is always exactly the
// sequence passed to Compress.
func (p *Packed) Decompress() []uint32 {
	values := make([]uint32, p.count)
	if p.width == 0 {
		return values
	}

	perWord := 64 / p.width
	mask := uint64(1)<<p.width - 1

	for i := range values {
		word := uint(i) / perWord
		shift := (uint(i) % perWord) * p.width
		values[i] = uint32(p.words[word] >> shift & mask)
	}

	return values
}

// At returns the value at index i without unpacking the whole buffer.
func (p *Packed) At(i int) uint32 {
	if i < 0 || i >= p.count {
		panic(fmt.Sprintf("bitpack: index %d out of range [0,%d)", i, p.count))
	}
	if p.width == 0 {
		return 0
	}
	perWord := 64 / p.width
	mask := uint64(1)<<p.width - 1
	word := uint(i) / perWord
	shift := (uint(i) % perWord) * p.width
	return uint32(p.words[word] >> shift & mask)
}

// Len returns the number of packed values.
func (p *Packed) Len() int { return p.count }

// Width returns the bit width per value.
func (p *Packed) Width() uint { return p.width }

// Words exposes the backing words for accelerator upload.
// The slice must be treated as read-only.
func (p *Packed) Words() []uint64 { return p.words }

// SizeBytes returns the size of the packed payload in bytes.
func (p *Packed) SizeBytes() int { return len(p.words) * 8 }
