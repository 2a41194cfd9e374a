package codec

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Zstd wraps an inner codec with zstd compression.
//
// Border grids for wide feature spaces compress well (long runs of
// near-identical floats), so this is the recommended codec for schema
// documents stored in object storage.
type Zstd struct {
	Inner Codec
}

var (
	zstdEncOnce sync.Once
	zstdEnc     *zstd.Encoder
	zstdDecOnce sync.Once
	zstdDec     *zstd.Decoder
)

func zstdEncoder() *zstd.Encoder {
	zstdEncOnce.Do(func() {
		// Error only occurs for invalid options; defaults are valid.
		zstdEnc, _ = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	})
	return zstdEnc
}

func zstdDecoder() *zstd.Decoder {
	zstdDecOnce.Do(func() {
		zstdDec, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	})
	return zstdDec
}

// Marshal encodes with the inner codec and compresses the result.
func (c Zstd) Marshal(v any) ([]byte, error) {
	inner := c.inner()
	raw, err := inner.Marshal(v)
	if err != nil {
		return nil, err
	}
	return zstdEncoder().EncodeAll(raw, nil), nil
}

// Unmarshal decompresses and decodes with the inner codec.
func (c Zstd) Unmarshal(data []byte, v any) error {
	raw, err := zstdDecoder().DecodeAll(data, nil)
	if err != nil {
		return err
	}
	return c.inner().Unmarshal(raw, v)
}

// Name returns "zstd+<inner>".
func (c Zstd) Name() string { return "zstd+" + c.inner().Name() }

func (c Zstd) inner() Codec {
	if c.Inner == nil {
		return Default
	}
	return c.Inner
}
