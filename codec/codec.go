// Package codec centralizes the encoding of quantization-schema payloads.
//
// Schema documents (per-feature border grids and NaN modes) are small and
// read far more often than written, so the codec name is stored alongside
// the payload by schema sources and resolved here on load. Changing the
// codec of an existing schema store is a breaking change.
package codec

import "fmt"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
//
// Compressed variants are named "<compression>+<inner>", e.g.
// "zstd+json".
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	case "zstd+json":
		return Zstd{Inner: JSON{}}, true
	case "zstd+go-json":
		return Zstd{Inner: GoJSON{}}, true
	case "lz4+json":
		return LZ4{Inner: JSON{}}, true
	case "lz4+go-json":
		return LZ4{Inner: GoJSON{}}, true
	default:
		return nil, false
	}
}

// Default is the codec used when none is configured.
var Default Codec = JSON{}

// MustMarshal is a helper for internal tests.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
